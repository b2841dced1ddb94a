package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tasksphere/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessages(ctx context.Context, msgs ...message.Message) ([]message.Message, error) {
	created := make([]message.Message, 0, len(msgs))
	_ = repo.db.write(ctx, func(t *tables) error {
		for _, msg := range msgs {
			if msg.ID == "" {
				msg.ID = newID()
			}
			t.messages = append(t.messages, msg)
			created = append(created, msg)
		}
		return nil
	})
	return created, nil
}

func (repo *messageRepository) Conversation(_ context.Context, userA, userB string, limit int) ([]message.Message, error) {
	msgs := make([]message.Message, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, msg := range t.messages {
			if (msg.SenderID == userA && msg.ReceiverID == userB) || (msg.SenderID == userB && msg.ReceiverID == userA) {
				msgs = append(msgs, msg)
			}
		}
		return nil
	})
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	var n int64
	_ = repo.db.write(ctx, func(t *tables) error {
		for i, msg := range t.messages {
			if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.IsRead {
				t.messages[i].IsRead = true
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (repo *messageRepository) UnreadCounts(_ context.Context, receiverID string) ([]message.UnreadCount, error) {
	bySender := make(map[string]int)
	_ = repo.db.read(func(t *tables) error {
		for _, msg := range t.messages {
			if msg.ReceiverID == receiverID && msg.SenderID != receiverID && !msg.IsRead {
				bySender[msg.SenderID]++
			}
		}
		return nil
	})
	counts := make([]message.UnreadCount, 0, len(bySender))
	for sender, n := range bySender {
		counts = append(counts, message.UnreadCount{SenderID: sender, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].SenderID < counts[j].SenderID })
	return counts, nil
}
