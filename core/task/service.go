package task

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("task not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrScoreNotFound      = core.NewNotFoundError("score not found")
	ErrDeadlinePassed     = core.NewConflictError("the deadline of this task has passed")

	errEmptySubmission = errors.New("a submission needs some content, an attachment or a link")
	ErrEmptySubmission = core.NewValidationError(
		errEmptySubmission,
		core.FieldError{Field: "content", Error: errEmptySubmission.Error()},
	)
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		// QueryTasks lists the tasks of a group, latest first.
		QueryTasks(ctx context.Context, groupID string) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error

		// SaveSubmission inserts the submission, or replaces the one of the same (task, student) pair.
		SaveSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetStudentSubmission(ctx context.Context, taskID, studentID string) (Submission, error)
		// QuerySubmissions lists the submissions of a task, of one student only if studentID is set.
		QuerySubmissions(ctx context.Context, taskID, studentID string) ([]GradedSubmission, error)
		// StudentSubmissions lists the submissions of a student to the tasks of a group.
		StudentSubmissions(ctx context.Context, groupID, studentID string) ([]GradedSubmission, error)

		// SaveScore inserts the score, or replaces the one of the same submission.
		SaveScore(ctx context.Context, score Score) (Score, error)
		DeleteScore(ctx context.Context, submissionID string) error
	}

	Service struct {
		repo    Repository
		tx      core.TxRunner
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, tx core.TxRunner, logger core.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger, nowFunc: time.Now}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC()
}

func (svc *Service) CreateTask(ctx context.Context, actor access.Actor, groupID string, nt NewTask) (Task, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleAdmin); err != nil {
		return Task{}, err
	}
	now := svc.now()
	t := Task{
		GroupID:           groupID,
		Title:             core.CleanString(nt.Title),
		Description:       null.NewString(nt.Description, nt.Description != ""),
		MaxScore:          nt.MaxScore,
		Attachments:       nonNil(nt.Attachments),
		PublicSubmissions: nt.PublicSubmissions,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if nt.Deadline != nil {
		t.Deadline = null.TimeFrom(nt.Deadline.UTC())
	}
	t, err := svc.repo.CreateTask(ctx, t)
	return t, errors.Wrap(err, "creating task")
}

// getTask returns the task if the actor holds at least `required` in its group.
func (svc *Service) getTask(ctx context.Context, actor access.Actor, id string, required access.Role) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err = access.RequireGroup(ctx, actor, t.GroupID, required); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *Service) GetTask(ctx context.Context, actor access.Actor, id string) (Task, error) {
	return svc.getTask(ctx, actor, id, access.RoleStudent)
}

func (svc *Service) ListTasks(ctx context.Context, actor access.Actor, groupID string) ([]Task, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleStudent); err != nil {
		return nil, err
	}
	return svc.repo.QueryTasks(ctx, groupID)
}

func (svc *Service) UpdateTask(ctx context.Context, actor access.Actor, id string, ut UpdateTask) (Task, error) {
	t, err := svc.getTask(ctx, actor, id, access.RoleAdmin)
	if err != nil {
		return Task{}, err
	}
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = null.NewString(*ut.Description, *ut.Description != "")
	}
	if ut.MaxScore != nil {
		if *ut.MaxScore < t.MaxScore {
			if err = svc.checkMaxScore(ctx, t.ID, *ut.MaxScore); err != nil {
				return Task{}, err
			}
		}
		t.MaxScore = *ut.MaxScore
	}
	if ut.ClearDeadline {
		t.Deadline = null.Time{}
	} else if ut.Deadline != nil {
		t.Deadline = null.TimeFrom(ut.Deadline.UTC())
	}
	if ut.Attachments != nil {
		t.Attachments = ut.Attachments
	}
	if ut.PublicSubmissions != nil {
		t.PublicSubmissions = *ut.PublicSubmissions
	}
	t.UpdatedAt = svc.now()
	t, err = svc.repo.UpdateTask(ctx, t)
	return t, errors.Wrap(err, "updating task")
}

// checkMaxScore refuses a max score below a score already given on the task.
func (svc *Service) checkMaxScore(ctx context.Context, taskID string, maxScore float64) error {
	subs, err := svc.repo.QuerySubmissions(ctx, taskID, "")
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	for _, sub := range subs {
		if sub.Score != nil && sub.Score.ScoreValue > maxScore {
			return core.NewValidationError(nil, core.FieldError{
				Field: "max_score",
				Error: fmt.Sprintf("max_score cannot be lower than a given score (%g)", sub.Score.ScoreValue),
			})
		}
	}
	return nil
}

func (svc *Service) DeleteTask(ctx context.Context, actor access.Actor, id string) error {
	if _, err := svc.getTask(ctx, actor, id, access.RoleAdmin); err != nil {
		return err
	}
	return svc.repo.DeleteTask(ctx, id)
}

// Submit saves the actor's answer to the task, replacing the previous one.
// The score of a replaced submission is dropped along with it.
func (svc *Service) Submit(ctx context.Context, actor access.Actor, taskID string, ns NewSubmission) (Submission, error) {
	ns.clean()
	if ns.isEmpty() {
		return Submission{}, ErrEmptySubmission
	}
	t, err := svc.getTask(ctx, actor, taskID, access.RoleStudent)
	if err != nil {
		return Submission{}, err
	}
	now := svc.now()
	if t.IsClosed(now) {
		return Submission{}, ErrDeadlinePassed
	}

	sub := Submission{
		TaskID:      t.ID,
		StudentID:   actor.UserID,
		Content:     ns.Content,
		Attachments: nonNil(ns.Attachments),
		LinkURL:     null.NewString(ns.LinkURL, ns.LinkURL != ""),
		SubmittedAt: now,
	}
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		prev, err := svc.repo.GetStudentSubmission(ctx, t.ID, actor.UserID)
		switch errors.Cause(err) {
		case nil:
			sub.ID = prev.ID
			if err = svc.repo.DeleteScore(ctx, prev.ID); err != nil && errors.Cause(err) != ErrScoreNotFound {
				return errors.Wrap(err, "deleting previous score")
			}
			svc.logger.Debug(fmt.Sprintf("submission %s replaced", prev.ID))
		case ErrSubmissionNotFound:
		default:
			return errors.Wrap(err, "finding previous submission")
		}
		sub, err = svc.repo.SaveSubmission(ctx, sub)
		return errors.Wrap(err, "saving submission")
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Submissions lists the submissions to a task visible to the actor:
// all of them for admins or when the task is public, the actor's own otherwise.
func (svc *Service) Submissions(ctx context.Context, actor access.Actor, taskID string) ([]GradedSubmission, error) {
	t, err := svc.getTask(ctx, actor, taskID, access.RoleStudent)
	if err != nil {
		return nil, err
	}
	studentID := actor.UserID
	if t.PublicSubmissions {
		studentID = ""
	} else if isAdmin, err := actor.HasGroupPermission(ctx, t.GroupID, access.RoleAdmin); err == nil && isAdmin {
		studentID = ""
	}
	return svc.repo.QuerySubmissions(ctx, t.ID, studentID)
}

// Grade scores a submission, replacing the previous score if any.
func (svc *Service) Grade(ctx context.Context, actor access.Actor, submissionID string, ns NewScore) (Score, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Score{}, err
	}
	t, err := svc.getTask(ctx, actor, sub.TaskID, access.RoleAdmin)
	if err != nil {
		return Score{}, err
	}
	if ns.ScoreValue < 0 || ns.ScoreValue > t.MaxScore {
		return Score{}, core.NewValidationError(nil, core.FieldError{
			Field: "score_value",
			Error: fmt.Sprintf("score_value must be between 0 and %g", t.MaxScore),
		})
	}

	feedback := core.CleanString(ns.Feedback)
	score, err := svc.repo.SaveScore(ctx, Score{
		SubmissionID: sub.ID,
		ScoreValue:   ns.ScoreValue,
		Feedback:     null.NewString(feedback, feedback != ""),
		GraderID:     actor.UserID,
		GradedAt:     svc.now(),
	})
	return score, errors.Wrap(err, "saving score")
}

// MyResults lists every task of the group along with the actor's submission and score.
func (svc *Service) MyResults(ctx context.Context, actor access.Actor, groupID string) ([]Result, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleStudent); err != nil {
		return nil, err
	}
	tasks, err := svc.repo.QueryTasks(ctx, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	subs, err := svc.repo.StudentSubmissions(ctx, groupID, actor.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	return JoinResults(tasks, subs, actor.UserID), nil
}

// JoinResults pairs each task with the student's submission.
// Submissions of other students are ignored.
func JoinResults(tasks []Task, subs []GradedSubmission, studentID string) []Result {
	byTask := make(map[string]GradedSubmission, len(subs))
	for _, sub := range subs {
		if sub.StudentID == studentID {
			byTask[sub.TaskID] = sub
		}
	}
	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		res := Result{Task: t}
		if sub, ok := byTask[t.ID]; ok {
			sub := sub
			res.Submission = &sub
		}
		results = append(results, res)
	}
	return results
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
