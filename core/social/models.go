package social

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
)

// Author is the public profile shown next to posts and comments.
type Author struct {
	ID        string      `json:"id"`
	FullName  null.String `json:"full_name"`
	AvatarURL null.String `json:"avatar_url"`
}

type Post struct {
	ID           string      `json:"id"`
	AuthorID     string      `json:"author_id"`
	Content      string      `json:"content"`
	ImageURL     null.String `json:"image_url"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	Author       *Author     `json:"author,omitempty"`
	LikeCount    int         `json:"like_count"`
	CommentCount int         `json:"comment_count"`
	LikedByMe    bool        `json:"liked_by_me"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"` // UTC
	Author    *Author   `json:"author,omitempty"`
}

type NewPost struct {
	Content  string `json:"content" validate:"notblank,max=5000"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Content = core.CleanString(np.Content)
	np.ImageURL = core.CleanString(np.ImageURL)
	return validate.Struct(np)
}

type NewComment struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

// FeedFilter pages through the feed, latest first.
type FeedFilter struct {
	Before time.Time `query:"before"`
	Limit  int       `query:"limit"`
}

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

func (ff *FeedFilter) Clean() {
	if ff.Limit <= 0 {
		ff.Limit = defaultFeedLimit
	} else if ff.Limit > maxFeedLimit {
		ff.Limit = maxFeedLimit
	}
	if !ff.Before.IsZero() {
		ff.Before = ff.Before.UTC()
	}
}
