package task

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
)

type Task struct {
	ID                string      `json:"id"`
	GroupID           string      `json:"group_id"`
	Title             string      `json:"title"`
	Description       null.String `json:"description"`
	MaxScore          float64     `json:"max_score"`
	Deadline          null.Time   `json:"deadline"` // UTC
	Attachments       []string    `json:"attachments"`
	PublicSubmissions bool        `json:"public_submissions"`
	CreatedBy         string      `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"` // UTC
	UpdatedAt         time.Time   `json:"updated_at"` // UTC
}

// IsClosed reports whether the deadline has passed at `now`.
func (t Task) IsClosed(now time.Time) bool {
	return t.Deadline.Valid && now.After(t.Deadline.Time)
}

// Submission is the current answer of a student to a task. Resubmitting replaces it.
type Submission struct {
	ID          string      `json:"id"`
	TaskID      string      `json:"task_id"`
	StudentID   string      `json:"student_id"`
	Content     string      `json:"content"`
	Attachments []string    `json:"attachments"`
	LinkURL     null.String `json:"link_url"`
	SubmittedAt time.Time   `json:"submitted_at"` // UTC
}

type Score struct {
	ID           string      `json:"id"`
	SubmissionID string      `json:"submission_id"`
	ScoreValue   float64     `json:"score_value"`
	Feedback     null.String `json:"feedback"`
	GraderID     string      `json:"grader_id"`
	GradedAt     time.Time   `json:"graded_at"` // UTC
}

// GradedSubmission is a Submission along with its Score, if graded.
type GradedSubmission struct {
	Submission
	Score *Score `json:"score"`
}

// Result is where a student stands on a task.
type Result struct {
	Task       Task              `json:"task"`
	Submission *GradedSubmission `json:"submission"`
}

type NewTask struct {
	Title             string     `json:"title" validate:"notblank,max=255"`
	Description       string     `json:"description" validate:"max=10000"`
	MaxScore          float64    `json:"max_score" validate:"gt=0"`
	Deadline          *time.Time `json:"deadline"`
	Attachments       []string   `json:"attachments" validate:"max=10,dive,url"`
	PublicSubmissions bool       `json:"public_submissions"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type UpdateTask struct {
	Title             *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description       *string    `json:"description" validate:"omitempty,max=10000"`
	MaxScore          *float64   `json:"max_score" validate:"omitempty,gt=0"`
	Deadline          *time.Time `json:"deadline"`
	ClearDeadline     bool       `json:"clear_deadline"`
	Attachments       []string   `json:"attachments" validate:"omitempty,max=10,dive,url"`
	PublicSubmissions *bool      `json:"public_submissions"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
	}
	if ut.Description != nil {
		*ut.Description = core.CleanString(*ut.Description)
	}
	return validate.Struct(ut)
}

type NewSubmission struct {
	Content     string   `json:"content" validate:"max=20000"`
	Attachments []string `json:"attachments" validate:"max=10,dive,url"`
	LinkURL     string   `json:"link_url" validate:"omitempty,url"`
}

func (ns *NewSubmission) clean() {
	ns.Content = core.CleanString(ns.Content)
	ns.LinkURL = core.CleanString(ns.LinkURL)
}

func (ns *NewSubmission) isEmpty() bool {
	return ns.Content == "" && ns.LinkURL == "" && len(ns.Attachments) == 0
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

type NewScore struct {
	ScoreValue float64 `json:"score_value" validate:"min=0"`
	Feedback   string  `json:"feedback" validate:"max=5000"`
}

func (ns *NewScore) Validate(validate *validator.Validate) error {
	ns.Feedback = core.CleanString(ns.Feedback)
	return validate.Struct(ns)
}
