package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/message"
)

const messageColumns = `id, sender_id, receiver_id, content, is_ai_response, is_read, created_at`

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessages(ctx context.Context, msgs ...message.Message) ([]message.Message, error) {
	created := make([]message.Message, 0, len(msgs))
	err := repo.db.RunInTx(ctx, func(ctx context.Context) error {
		for _, msg := range msgs {
			if msg.ID == "" {
				msg.ID = newID()
			}
			_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
				INSERT INTO message (`+messageColumns+`)
				VALUES (:id, :sender_id, :receiver_id, :content, :is_ai_response, :is_read, :created_at)`,
				msg,
			)
			if err != nil {
				return errors.Wrap(err, "inserting message")
			}
			created = append(created, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *messageRepository) Conversation(ctx context.Context, userA, userB string, limit int) ([]message.Message, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	msgs := make([]message.Message, 0)
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &msgs, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM message
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC
			LIMIT $3
		) latest
		ORDER BY created_at`,
		userA, userB, lim,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	for i := range msgs {
		msgs[i].CreatedAt = msgs[i].CreatedAt.UTC()
	}
	return msgs, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := repo.db.exec(ctx).ExecContext(ctx,
		`UPDATE message SET is_read = TRUE WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read`,
		receiverID, senderID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking messages read")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows")
}

func (repo *messageRepository) UnreadCounts(ctx context.Context, receiverID string) ([]message.UnreadCount, error) {
	counts := make([]message.UnreadCount, 0)
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &counts, `
		SELECT sender_id, COUNT(*) AS count FROM message
		WHERE receiver_id = $1 AND sender_id <> $1 AND NOT is_read
		GROUP BY sender_id
		ORDER BY sender_id`,
		receiverID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "counting unread messages")
	}
	return counts, nil
}
