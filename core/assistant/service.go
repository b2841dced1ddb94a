package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
)

var (
	// errors
	ErrSessionNotFound    = core.NewNotFoundError("assistant session not found")
	ErrSessionCompleted   = core.NewConflictError("this conversation is already completed")
	ErrStaleSession       = core.NewConflictError("this question has already been answered")
	ErrIntakeNotCompleted = core.NewInvalidError("the assistant conversation is not completed yet")
	ErrAIDisabled         = core.NewForbiddenError("the assistant is disabled for your account")
	ErrUnavailable        = core.NewUnavailableError("the assistant is unavailable right now, please try again later")
	ErrEmptyHistory       = core.NewInvalidError("the conversation must end with a user message")
)

type (
	SessionRepository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// AdvanceSession saves the session only if its stored step is still expectedStep
		// and it is not completed, ErrStaleSession otherwise.
		AdvanceSession(ctx context.Context, sess Session, expectedStep int) (Session, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, id string) (user.User, error)
	}

	GroupReader interface {
		GetGroup(ctx context.Context, id string) (group.Group, error)
	}

	TaskReader interface {
		QueryTasks(ctx context.Context, groupID string) ([]task.Task, error)
		StudentSubmissions(ctx context.Context, groupID, studentID string) ([]task.GradedSubmission, error)
	}

	ChatLog interface {
		History(ctx context.Context, userID string, limit int) ([]message.Message, error)
		RecordAIExchange(ctx context.Context, actor access.Actor, prompt, reply string) error
	}

	Options struct {
		Model      string
		Timeout    time.Duration
		Retries    int
		MaxHistory int
	}

	Service struct {
		completer Completer
		sessions  SessionRepository
		users     UserReader
		groups    GroupReader
		tasks     TaskReader
		chatLog   ChatLog
		logger    core.Logger
		opts      Options
		nowFunc   func() time.Time
	}
)

func NewService(
	completer Completer,
	sessions SessionRepository,
	users UserReader,
	groups GroupReader,
	tasks TaskReader,
	chatLog ChatLog,
	logger core.Logger,
	opts Options,
) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 20
	}
	return &Service{
		completer: completer,
		sessions:  sessions,
		users:     users,
		groups:    groups,
		tasks:     tasks,
		chatLog:   chatLog,
		logger:    logger,
		opts:      opts,
		nowFunc:   time.Now,
	}
}

// OptionsFromConfig reads the assistant options from the app configuration.
func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		Model:      conf.AI.Model,
		Timeout:    conf.AI.Timeout,
		Retries:    conf.AI.Retries,
		MaxHistory: conf.AI.MaxHistory,
	}
}

// complete calls the provider, each attempt bounded by the configured timeout.
func (svc *Service) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Model == "" {
		req.Model = svc.opts.Model
	}
	var err error
	for attempt := 0; attempt <= svc.opts.Retries; attempt++ {
		var text string
		actx, cancel := context.WithTimeout(ctx, svc.opts.Timeout)
		text, err = svc.completer.Complete(actx, req)
		cancel()
		if err == nil {
			if text = core.CleanString(text); text != "" {
				return text, nil
			}
			err = errors.New("empty completion")
		}
		svc.logger.Warn(fmt.Sprintf("assistant completion attempt %d failed: %v", attempt+1, err), err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Wrap(err, "completing")
}

func (svc *Service) requireAIEnabled(ctx context.Context, actor access.Actor) error {
	usr, err := svc.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	if !usr.AIEnabled {
		return ErrAIDisabled
	}
	return nil
}

// Chat answers a prompt of the actor's personal assistant conversation,
// and records the exchange.
func (svc *Service) Chat(ctx context.Context, actor access.Actor, prompt string) (string, error) {
	prompt = core.CleanString(prompt)
	if prompt == "" {
		return "", ErrEmptyHistory
	}
	if err := svc.requireAIEnabled(ctx, actor); err != nil {
		return "", err
	}

	past, err := svc.chatLog.History(ctx, actor.UserID, svc.opts.MaxHistory-1)
	if err != nil {
		return "", errors.Wrap(err, "loading history")
	}
	history := make([]ChatMessage, 0, len(past)+1)
	for _, msg := range past {
		role := RoleUser
		if msg.IsAIResponse {
			role = RoleAssistant
		}
		history = append(history, ChatMessage{Role: role, Content: msg.Content})
	}
	history = append(history, ChatMessage{Role: RoleUser, Content: prompt})

	reply, err := svc.complete(ctx, CompletionRequest{
		System:   chatSystemPrompt,
		Messages: history,
	})
	if err != nil {
		svc.logger.Error("assistant chat: "+err.Error(), err, actor.Principal)
		return "", ErrUnavailable
	}
	if err = svc.chatLog.RecordAIExchange(ctx, actor, prompt, reply); err != nil {
		// the reply is still useful to the user
		svc.logger.Error(err.Error(), err, actor.Principal)
	}
	return reply, nil
}

const chatSystemPrompt = "You are TaskSphere's study assistant. " +
	"Help the student organize their work, understand concepts and prepare their tasks. " +
	"Be concise and encouraging. Never complete graded work on their behalf."
