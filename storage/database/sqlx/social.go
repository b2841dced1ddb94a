package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core/social"
)

// $1 is the viewer
const postSelect = `
	SELECT p.id, p.author_id, p.content, p.image_url, p.created_at,
		u.full_name AS author_name, u.avatar_url AS author_avatar,
		(SELECT COUNT(*) FROM post_like l WHERE l.post_id = p.id) AS like_count,
		(SELECT COUNT(*) FROM post_comment c WHERE c.post_id = p.id) AS comment_count,
		EXISTS(SELECT 1 FROM post_like l WHERE l.post_id = p.id AND l.user_id = $1) AS liked_by_me
	FROM post p
	LEFT JOIN "user" u ON u.id = p.author_id`

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, c.content, c.created_at,
		u.full_name AS author_name, u.avatar_url AS author_avatar
	FROM post_comment c
	LEFT JOIN "user" u ON u.id = c.author_id`

type postRow struct {
	social.Post
	AuthorName   null.String
	AuthorAvatar null.String
}

func (row postRow) toPost() social.Post {
	p := row.Post
	p.CreatedAt = p.CreatedAt.UTC()
	p.Author = &social.Author{ID: p.AuthorID, FullName: row.AuthorName, AvatarURL: row.AuthorAvatar}
	return p
}

type commentRow struct {
	social.Comment
	AuthorName   null.String
	AuthorAvatar null.String
}

func (row commentRow) toComment() social.Comment {
	c := row.Comment
	c.CreatedAt = c.CreatedAt.UTC()
	c.Author = &social.Author{ID: c.AuthorID, FullName: row.AuthorName, AvatarURL: row.AuthorAvatar}
	return c
}

type socialRepository struct {
	db *DB
}

var _ social.Repository = (*socialRepository)(nil)

func NewSocialRepository(db *DB) social.Repository {
	return &socialRepository{db: db}
}

func (repo *socialRepository) CreatePost(ctx context.Context, post social.Post) (social.Post, error) {
	if post.ID == "" {
		post.ID = newID()
	}
	_, err := repo.db.exec(ctx).ExecContext(ctx,
		`INSERT INTO post (id, author_id, content, image_url, created_at) VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.AuthorID, post.Content, post.ImageURL, post.CreatedAt,
	)
	if err != nil {
		return social.Post{}, errors.Wrap(err, "inserting post")
	}
	return repo.GetPost(ctx, post.ID, post.AuthorID)
}

func (repo *socialRepository) GetPost(ctx context.Context, id, viewerID string) (social.Post, error) {
	if !isUUID(id) {
		return social.Post{}, social.ErrPostNotFound
	}
	var row postRow
	if err := sqlx.GetContext(ctx, repo.db.exec(ctx), &row, postSelect+` WHERE p.id = $2`, viewerID, id); err != nil {
		return social.Post{}, trapNoRowsErr(err, social.ErrPostNotFound, "finding post")
	}
	return row.toPost(), nil
}

func (repo *socialRepository) Feed(ctx context.Context, viewerID string, filter social.FeedFilter) ([]social.Post, error) {
	var before interface{}
	if !filter.Before.IsZero() {
		before = filter.Before
	}
	var limit interface{}
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	var rows []postRow
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &rows,
		postSelect+` WHERE ($2::timestamptz IS NULL OR p.created_at < $2) ORDER BY p.created_at DESC LIMIT $3`,
		viewerID, before, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying feed")
	}
	posts := make([]social.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toPost())
	}
	return posts, nil
}

// DeletePost cascades to likes and comments.
func (repo *socialRepository) DeletePost(ctx context.Context, id string) error {
	if !isUUID(id) {
		return social.ErrPostNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return checkAffected(res, social.ErrPostNotFound)
}

func (repo *socialRepository) Like(ctx context.Context, postID, userID string, at time.Time) error {
	if !isUUID(postID) {
		return social.ErrPostNotFound
	}
	_, err := repo.db.exec(ctx).ExecContext(ctx,
		`INSERT INTO post_like (post_id, user_id, created_at) VALUES ($1, $2, $3)`, postID, userID, at)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return social.ErrAlreadyLiked
	case isForeignKeyViolation(err):
		return social.ErrPostNotFound
	default:
		return errors.Wrap(err, "inserting like")
	}
}

func (repo *socialRepository) Unlike(ctx context.Context, postID, userID string) error {
	if !isUUID(postID) {
		return social.ErrNotLiked
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx,
		`DELETE FROM post_like WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting like")
	}
	return checkAffected(res, social.ErrNotLiked)
}

func (repo *socialRepository) CreateComment(ctx context.Context, c social.Comment) (social.Comment, error) {
	if !isUUID(c.PostID) {
		return social.Comment{}, social.ErrPostNotFound
	}
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := repo.db.exec(ctx).ExecContext(ctx,
		`INSERT INTO post_comment (id, post_id, author_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.AuthorID, c.Content, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return social.Comment{}, social.ErrPostNotFound
		}
		return social.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return repo.GetComment(ctx, c.ID)
}

func (repo *socialRepository) GetComment(ctx context.Context, id string) (social.Comment, error) {
	if !isUUID(id) {
		return social.Comment{}, social.ErrCommentNotFound
	}
	var row commentRow
	if err := sqlx.GetContext(ctx, repo.db.exec(ctx), &row, commentSelect+` WHERE c.id = $1`, id); err != nil {
		return social.Comment{}, trapNoRowsErr(err, social.ErrCommentNotFound, "finding comment")
	}
	return row.toComment(), nil
}

func (repo *socialRepository) QueryComments(ctx context.Context, postID string) ([]social.Comment, error) {
	comments := make([]social.Comment, 0)
	if !isUUID(postID) {
		return comments, nil
	}
	var rows []commentRow
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &rows, commentSelect+` WHERE c.post_id = $1 ORDER BY c.created_at`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	for _, row := range rows {
		comments = append(comments, row.toComment())
	}
	return comments, nil
}

func (repo *socialRepository) DeleteComment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return social.ErrCommentNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `DELETE FROM post_comment WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return checkAffected(res, social.ErrCommentNotFound)
}
