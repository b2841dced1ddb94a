package message_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/testutil"
)

func TestService_Send(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ada := env.CreateUser(t, "ada", "ada@x.com", "", false)
	env.CreateUser(t, "bob", "bob@x.com", "", false)

	tests := []struct {
		name       string
		receiverID string
		content    string
		wantErr    error
	}{
		{name: "empty", receiverID: "bob", content: "  ", wantErr: message.ErrEmptyMessage},
		{name: "self", receiverID: "ada", content: "hi me", wantErr: message.ErrSelfMessage},
		{name: "unknown receiver", receiverID: "ghost", content: "hi", wantErr: message.ErrReceiverNotFound},
		{name: "ok", receiverID: "bob", content: " hi Bob "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := env.MessageSvc.Send(ctx, env.Actor(ada), tc.receiverID, tc.content)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hi Bob", msg.Content)
			assert.False(t, msg.IsRead)
		})
	}
}

func TestService_Conversation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ada := env.CreateUser(t, "ada", "ada@x.com", "", false)
	bob := env.CreateUser(t, "bob", "bob@x.com", "", false)
	cid := env.CreateUser(t, "cid", "cid@x.com", "", false)

	for i := 1; i <= 3; i++ {
		_, err := env.MessageSvc.Send(ctx, env.Actor(ada), bob.ID, fmt.Sprintf("ada %d", i))
		require.NoError(t, err)
	}
	_, err := env.MessageSvc.Send(ctx, env.Actor(bob), ada.ID, "bob 1")
	require.NoError(t, err)
	_, err = env.MessageSvc.Send(ctx, env.Actor(cid), bob.ID, "cid 1")
	require.NoError(t, err)

	counts, err := env.MessageSvc.UnreadCounts(ctx, env.Actor(bob))
	require.NoError(t, err)
	assert.Equal(t, []message.UnreadCount{{SenderID: "ada", Count: 3}, {SenderID: "cid", Count: 1}}, counts)

	msgs, err := env.MessageSvc.Conversation(ctx, env.Actor(bob), ada.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "ada 3", msgs[0].Content, "latest messages, oldest first")
	assert.Equal(t, "bob 1", msgs[1].Content)

	// jobs run synchronously in tests: the read receipts are already stored
	counts, err = env.MessageSvc.UnreadCounts(ctx, env.Actor(bob))
	require.NoError(t, err)
	assert.Equal(t, []message.UnreadCount{{SenderID: "cid", Count: 1}}, counts)

	counts, err = env.MessageSvc.UnreadCounts(ctx, env.Actor(ada))
	require.NoError(t, err)
	assert.Equal(t, []message.UnreadCount{{SenderID: "bob", Count: 1}}, counts)
}

func TestService_RecordAIExchange(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ada := env.CreateUser(t, "ada", "ada@x.com", "", false)
	bob := env.CreateUser(t, "bob", "bob@x.com", "", false)

	require.NoError(t, env.MessageSvc.RecordAIExchange(ctx, env.Actor(ada), "what is 2+2?", "4"))
	_, err := env.MessageSvc.Send(ctx, env.Actor(bob), ada.ID, "hi")
	require.NoError(t, err)

	history, err := env.MessageSvc.History(ctx, ada.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "what is 2+2?", history[0].Content)
	assert.False(t, history[0].IsAIResponse)
	assert.Equal(t, "4", history[1].Content)
	assert.True(t, history[1].IsAIResponse)

	counts, err := env.MessageSvc.UnreadCounts(ctx, env.Actor(ada))
	require.NoError(t, err)
	assert.Equal(t, []message.UnreadCount{{SenderID: "bob", Count: 1}}, counts, "assistant messages are never unread")
}
