package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tasksphere/core/social"
)

type socialRepository struct {
	db *DB
}

var _ social.Repository = (*socialRepository)(nil)

func NewSocialRepository(db *DB) social.Repository {
	return &socialRepository{db: db}
}

func author(t *tables, id string) *social.Author {
	usr, ok := t.users[id]
	if !ok {
		return nil
	}
	return &social.Author{ID: usr.ID, FullName: usr.FullName, AvatarURL: usr.AvatarURL}
}

func (repo *socialRepository) withCounts(t *tables, post social.Post, viewerID string) social.Post {
	post.LikeCount, post.CommentCount, post.LikedByMe = 0, 0, false
	for k := range t.likes {
		if k.postID == post.ID {
			post.LikeCount++
			if k.userID == viewerID {
				post.LikedByMe = true
			}
		}
	}
	for _, c := range t.comments {
		if c.PostID == post.ID {
			post.CommentCount++
		}
	}
	post.Author = author(t, post.AuthorID)
	return post
}

func (repo *socialRepository) CreatePost(ctx context.Context, post social.Post) (social.Post, error) {
	_ = repo.db.write(ctx, func(t *tables) error {
		if post.ID == "" {
			post.ID = newID()
		}
		post.Author = nil
		t.posts[post.ID] = post
		post = repo.withCounts(t, post, post.AuthorID)
		return nil
	})
	return post, nil
}

func (repo *socialRepository) GetPost(_ context.Context, id, viewerID string) (social.Post, error) {
	var post social.Post
	err := repo.db.read(func(t *tables) error {
		p, ok := t.posts[id]
		if !ok {
			return social.ErrPostNotFound
		}
		post = repo.withCounts(t, p, viewerID)
		return nil
	})
	return post, err
}

func (repo *socialRepository) Feed(_ context.Context, viewerID string, filter social.FeedFilter) ([]social.Post, error) {
	posts := make([]social.Post, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, p := range t.posts {
			if filter.Before.IsZero() || p.CreatedAt.Before(filter.Before) {
				posts = append(posts, repo.withCounts(t, p, viewerID))
			}
		}
		return nil
	})
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	if filter.Limit > 0 && len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (repo *socialRepository) DeletePost(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.posts[id]; !ok {
			return social.ErrPostNotFound
		}
		delete(t.posts, id)
		// cascade
		for k := range t.likes {
			if k.postID == id {
				delete(t.likes, k)
			}
		}
		for cid, c := range t.comments {
			if c.PostID == id {
				delete(t.comments, cid)
			}
		}
		return nil
	})
}

func (repo *socialRepository) Like(ctx context.Context, postID, userID string, _ time.Time) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.posts[postID]; !ok {
			return social.ErrPostNotFound
		}
		key := likeKey{postID, userID}
		if _, ok := t.likes[key]; ok {
			return social.ErrAlreadyLiked
		}
		t.likes[key] = struct{}{}
		return nil
	})
}

func (repo *socialRepository) Unlike(ctx context.Context, postID, userID string) error {
	return repo.db.write(ctx, func(t *tables) error {
		key := likeKey{postID, userID}
		if _, ok := t.likes[key]; !ok {
			return social.ErrNotLiked
		}
		delete(t.likes, key)
		return nil
	})
}

func (repo *socialRepository) CreateComment(ctx context.Context, c social.Comment) (social.Comment, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.posts[c.PostID]; !ok {
			return social.ErrPostNotFound
		}
		if c.ID == "" {
			c.ID = newID()
		}
		c.Author = nil
		t.comments[c.ID] = c
		c.Author = author(t, c.AuthorID)
		return nil
	})
	if err != nil {
		return social.Comment{}, err
	}
	return c, nil
}

func (repo *socialRepository) GetComment(_ context.Context, id string) (social.Comment, error) {
	var c social.Comment
	err := repo.db.read(func(t *tables) error {
		cmt, ok := t.comments[id]
		if !ok {
			return social.ErrCommentNotFound
		}
		c = cmt
		c.Author = author(t, c.AuthorID)
		return nil
	})
	return c, err
}

func (repo *socialRepository) QueryComments(_ context.Context, postID string) ([]social.Comment, error) {
	comments := make([]social.Comment, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, c := range t.comments {
			if c.PostID == postID {
				c.Author = author(t, c.AuthorID)
				comments = append(comments, c)
			}
		}
		return nil
	})
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *socialRepository) DeleteComment(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.comments[id]; !ok {
			return social.ErrCommentNotFound
		}
		delete(t.comments, id)
		return nil
	})
}
