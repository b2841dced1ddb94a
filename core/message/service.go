package message

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/user"
)

var (
	// errors
	ErrReceiverNotFound = core.NewNotFoundError("receiver not found")
	ErrSelfMessage      = core.NewInvalidError("you cannot send a message to yourself")
	ErrEmptyMessage     = core.NewInvalidError("a message cannot be empty")
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
)

type (
	Repository interface {
		CreateMessages(ctx context.Context, msgs ...Message) ([]Message, error)
		// Conversation returns the latest `limit` messages exchanged between the two users, oldest first.
		// If userA == userB, it is the user's assistant conversation.
		Conversation(ctx context.Context, userA, userB string, limit int) ([]Message, error)
		// MarkRead marks as read the messages sent by senderID to receiverID.
		MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
		// UnreadCounts counts the unread messages of receiverID per sender.
		UnreadCounts(ctx context.Context, receiverID string) ([]UnreadCount, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo   Repository
		users  UserReader
		jobs   core.Dispatcher
		logger core.Logger
	}
)

func NewService(repo Repository, users UserReader, jobs core.Dispatcher, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, jobs: jobs, logger: logger}
}

func (svc *Service) Send(ctx context.Context, actor access.Actor, receiverID, content string) (Message, error) {
	content = core.CleanString(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	if receiverID == actor.UserID {
		return Message{}, ErrSelfMessage
	}
	if _, err := svc.users.GetUser(ctx, receiverID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Message{}, ErrReceiverNotFound
		}
		return Message{}, errors.Wrap(err, "finding receiver")
	}

	msgs, err := svc.repo.CreateMessages(ctx, Message{
		SenderID:   actor.UserID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	return msgs[0], nil
}

// Conversation returns the latest messages exchanged with otherID.
// Messages received from otherID are marked read in the background.
func (svc *Service) Conversation(ctx context.Context, actor access.Actor, otherID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultConversationLimit
	} else if limit > maxConversationLimit {
		limit = maxConversationLimit
	}
	msgs, err := svc.repo.Conversation(ctx, actor.UserID, otherID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}

	for _, msg := range msgs {
		if msg.ReceiverID == actor.UserID && msg.SenderID == otherID && !msg.IsRead {
			receiverID := actor.UserID
			svc.jobs.Dispatch("message.markRead", func(ctx context.Context) error {
				n, err := svc.repo.MarkRead(ctx, receiverID, otherID)
				if err != nil {
					return errors.Wrap(err, "marking messages read")
				}
				svc.logger.Debug(fmt.Sprintf("%d messages from %s marked read", n, otherID))
				return nil
			})
			break
		}
	}
	return msgs, nil
}

func (svc *Service) UnreadCounts(ctx context.Context, actor access.Actor) ([]UnreadCount, error) {
	return svc.repo.UnreadCounts(ctx, actor.UserID)
}

// History returns the latest messages of the actor's assistant conversation, oldest first.
func (svc *Service) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	return svc.repo.Conversation(ctx, userID, userID, limit)
}

// RecordAIExchange stores a prompt and the assistant's reply.
func (svc *Service) RecordAIExchange(ctx context.Context, actor access.Actor, prompt, reply string) error {
	now := time.Now().UTC()
	_, err := svc.repo.CreateMessages(ctx,
		Message{
			SenderID:   actor.UserID,
			ReceiverID: actor.UserID,
			Content:    prompt,
			IsRead:     true,
			CreatedAt:  now,
		},
		Message{
			SenderID:     actor.UserID,
			ReceiverID:   actor.UserID,
			Content:      reply,
			IsAIResponse: true,
			IsRead:       true,
			CreatedAt:    now.Add(time.Millisecond), // keep the reply after its prompt
		},
	)
	return errors.Wrap(err, "recording assistant exchange")
}
