package social

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
)

var (
	// errors
	ErrPostNotFound    = core.NewNotFoundError("post not found")
	ErrCommentNotFound = core.NewNotFoundError("comment not found")
	ErrAlreadyLiked    = core.NewConflictError("post already liked")
	ErrNotLiked        = core.NewNotFoundError("post not liked")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, post Post) (Post, error)
		// GetPost returns the post with its counters, LikedByMe as seen by viewerID.
		GetPost(ctx context.Context, id, viewerID string) (Post, error)
		// Feed lists the posts created before filter.Before (any time if zero), latest first.
		Feed(ctx context.Context, viewerID string, filter FeedFilter) ([]Post, error)
		DeletePost(ctx context.Context, id string) error

		// Like returns ErrAlreadyLiked if the pair exists.
		Like(ctx context.Context, postID, userID string, at time.Time) error
		// Unlike returns ErrNotLiked if the pair does not exist.
		Unlike(ctx context.Context, postID, userID string) error

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		GetComment(ctx context.Context, id string) (Comment, error)
		// QueryComments lists the comments of a post, oldest first.
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
		DeleteComment(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) CreatePost(ctx context.Context, actor access.Actor, np NewPost) (Post, error) {
	post, err := svc.repo.CreatePost(ctx, Post{
		AuthorID:  actor.UserID,
		Content:   core.CleanString(np.Content),
		ImageURL:  null.NewString(np.ImageURL, np.ImageURL != ""),
		CreatedAt: time.Now().UTC(),
	})
	return post, errors.Wrap(err, "creating post")
}

func (svc *Service) Feed(ctx context.Context, actor access.Actor, filter FeedFilter) ([]Post, error) {
	filter.Clean()
	return svc.repo.Feed(ctx, actor.UserID, filter)
}

// canModerate reports whether the actor may delete content authored by authorID.
func canModerate(ctx context.Context, actor access.Actor, authorID string) error {
	if authorID == actor.UserID {
		return nil
	}
	return access.RequireSuperAdmin(ctx, actor)
}

func (svc *Service) DeletePost(ctx context.Context, actor access.Actor, id string) error {
	post, err := svc.repo.GetPost(ctx, id, actor.UserID)
	if err != nil {
		return err
	}
	if err = canModerate(ctx, actor, post.AuthorID); err != nil {
		return err
	}
	return svc.repo.DeletePost(ctx, id)
}

// ToggleLike likes the post if the actor has not yet, unlikes it otherwise.
// It returns the post as it stands afterwards.
func (svc *Service) ToggleLike(ctx context.Context, actor access.Actor, postID string) (Post, error) {
	post, err := svc.repo.GetPost(ctx, postID, actor.UserID)
	if err != nil {
		return Post{}, err
	}
	if post.LikedByMe {
		err = svc.repo.Unlike(ctx, postID, actor.UserID)
	} else {
		err = svc.repo.Like(ctx, postID, actor.UserID, time.Now().UTC())
	}
	// a concurrent toggle got there first: the pair is already in the wanted state
	if err != nil && errors.Cause(err) != ErrAlreadyLiked && errors.Cause(err) != ErrNotLiked {
		return Post{}, errors.Wrap(err, "toggling like")
	}
	return svc.repo.GetPost(ctx, postID, actor.UserID)
}

func (svc *Service) Comment(ctx context.Context, actor access.Actor, postID string, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetPost(ctx, postID, actor.UserID); err != nil {
		return Comment{}, err
	}
	c, err := svc.repo.CreateComment(ctx, Comment{
		PostID:    postID,
		AuthorID:  actor.UserID,
		Content:   core.CleanString(nc.Content),
		CreatedAt: time.Now().UTC(),
	})
	return c, errors.Wrap(err, "creating comment")
}

func (svc *Service) Comments(ctx context.Context, actor access.Actor, postID string) ([]Comment, error) {
	if _, err := svc.repo.GetPost(ctx, postID, actor.UserID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, postID)
}

func (svc *Service) DeleteComment(ctx context.Context, actor access.Actor, id string) error {
	c, err := svc.repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err = canModerate(ctx, actor, c.AuthorID); err != nil {
		return err
	}
	return svc.repo.DeleteComment(ctx, id)
}
