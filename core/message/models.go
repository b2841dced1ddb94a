package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasksphere/core"
)

// Message is an entry of the flat direct message log.
// Assistant exchanges are stored with the user as both sender and receiver,
// the replies flagged IsAIResponse.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	Content      string    `json:"content"`
	IsAIResponse bool      `json:"is_ai_response"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

type NewMessage struct {
	Content string `json:"content" validate:"notblank,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

// UnreadCount is the number of unread messages from one sender.
type UnreadCount struct {
	SenderID string `json:"sender_id"`
	Count    int    `json:"count"`
}
