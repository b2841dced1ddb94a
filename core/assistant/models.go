package assistant

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
)

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role" validate:"oneof=user assistant"`
	Content string `json:"content" validate:"notblank,max=8000"`
}

// CompletionRequest is sent to the text-generation provider: one request, one completion.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
}

// Completer is any text-generation provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Session tracks a group-creation intake conversation.
type Session struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CurrentStep int             `json:"current_step"` // 1..len(intakeQuestions)
	Answers     core.Transcript `json:"answers"`
	IsCompleted bool            `json:"is_completed"`
	Summary     null.String     `json:"summary"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

// IntakeStep is the state of an intake after an answer: the next question or the summary.
type IntakeStep struct {
	Session  Session `json:"session"`
	Step     int     `json:"step"`
	Total    int     `json:"total"`
	Question string  `json:"question,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

type Answer struct {
	Answer string `json:"answer" validate:"notblank,max=2000"`
}

func (a *Answer) Validate(validate *validator.Validate) error {
	a.Answer = core.CleanString(a.Answer)
	return validate.Struct(a)
}

type Ask struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

func (a *Ask) Validate(validate *validator.Validate) error {
	for i := range a.Messages {
		a.Messages[i].Role = core.CleanString(a.Messages[i].Role, true /* lower */)
		a.Messages[i].Content = core.CleanString(a.Messages[i].Content)
	}
	return validate.Struct(a)
}

type Prompt struct {
	Prompt string `json:"prompt" validate:"notblank,max=8000"`
}

func (p *Prompt) Validate(validate *validator.Validate) error {
	p.Prompt = core.CleanString(p.Prompt)
	return validate.Struct(p)
}

// GroupContext is what the assistant knows about a group, from one student's perspective.
type GroupContext struct {
	Group       GroupInfo         `json:"group"`
	Tasks       []TaskInfo        `json:"tasks"`
	Submissions []SubmissionInfo  `json:"my_submissions"`
	Stats       GroupContextStats `json:"stats"`
	StudentID   string            `json:"-"`
}

type GroupInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	InstituteName string `json:"institute_name,omitempty"`
	Department    string `json:"department,omitempty"`
}

type TaskInfo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	MaxScore    float64    `json:"max_score"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type SubmissionInfo struct {
	TaskID      string    `json:"task_id"`
	StudentID   string    `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
	Graded      bool      `json:"graded"`
	Score       *float64  `json:"score,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
}

type GroupContextStats struct {
	TotalTasks     int      `json:"total_tasks"`
	Submitted      int      `json:"submitted"`
	Pending        int      `json:"pending"` // not submitted, still open
	Overdue        int      `json:"overdue"` // not submitted, deadline passed
	Graded         int      `json:"graded"`
	AveragePercent *float64 `json:"average_percent,omitempty"`
}
