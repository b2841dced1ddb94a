package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core/task"
)

const (
	taskColumns = `id, group_id, title, description, max_score, deadline, attachments, public_submissions,
		created_by, created_at, updated_at`
	gradedSubmissionColumns = `s.id, s.task_id, s.student_id, s.content, s.attachments, s.link_url, s.submitted_at,
		sc.id AS score_id, sc.score_value, sc.feedback, sc.grader_id, sc.graded_at`
)

// taskRow shadows Task.Attachments with a type lib/pq can scan.
type taskRow struct {
	task.Task
	Attachments pq.StringArray
}

func (row taskRow) toTask() task.Task {
	t := row.Task
	t.Attachments = append(make([]string, 0, len(row.Attachments)), row.Attachments...)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.Deadline.Valid {
		t.Deadline.Time = t.Deadline.Time.UTC()
	}
	return t
}

type gradedSubmissionRow struct {
	task.Submission
	Attachments pq.StringArray
	ScoreID     null.String
	ScoreValue  null.Float64
	Feedback    null.String
	GraderID    null.String
	GradedAt    null.Time
}

func (row gradedSubmissionRow) graded() task.GradedSubmission {
	gs := task.GradedSubmission{Submission: row.Submission}
	gs.Attachments = append(make([]string, 0, len(row.Attachments)), row.Attachments...)
	gs.SubmittedAt = gs.SubmittedAt.UTC()
	if row.ScoreID.Valid {
		gs.Score = &task.Score{
			ID:           row.ScoreID.String,
			SubmissionID: row.ID,
			ScoreValue:   row.ScoreValue.Float64,
			Feedback:     row.Feedback,
			GraderID:     row.GraderID.String,
			GradedAt:     row.GradedAt.Time.UTC(),
		}
	}
	return gs
}

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	_, err := repo.db.exec(ctx).ExecContext(ctx, `
		INSERT INTO task (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.GroupID, t.Title, t.Description, t.MaxScore, t.Deadline, pq.StringArray(t.Attachments),
		t.PublicSubmissions, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	if !isUUID(id) {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	if err := sqlx.GetContext(ctx, repo.db.exec(ctx), &row, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "finding task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, groupID string) ([]task.Task, error) {
	tasks := make([]task.Task, 0)
	if !isUUID(groupID) {
		return tasks, nil
	}
	var rows []taskRow
	err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &rows,
		`SELECT `+taskColumns+` FROM task WHERE group_id = $1 ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if !isUUID(t.ID) {
		return task.Task{}, task.ErrNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `
		UPDATE task
		SET title = $2, description = $3, max_score = $4, deadline = $5, attachments = $6,
			public_submissions = $7, updated_at = $8
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.MaxScore, t.Deadline, pq.StringArray(t.Attachments),
		t.PublicSubmissions, t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if err = checkAffected(res, task.ErrNotFound); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// DeleteTask cascades to submissions and scores.
func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	if !isUUID(id) {
		return task.ErrNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return checkAffected(res, task.ErrNotFound)
}

func (repo *taskRepository) SaveSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	if !isUUID(sub.TaskID) {
		return task.Submission{}, task.ErrNotFound
	}
	if sub.ID == "" {
		sub.ID = newID()
	}
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &sub.ID, `
		INSERT INTO submission (id, task_id, student_id, content, attachments, link_url, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id, student_id) DO UPDATE
		SET content = EXCLUDED.content, attachments = EXCLUDED.attachments,
			link_url = EXCLUDED.link_url, submitted_at = EXCLUDED.submitted_at
		RETURNING id`,
		sub.ID, sub.TaskID, sub.StudentID, sub.Content, pq.StringArray(sub.Attachments), sub.LinkURL, sub.SubmittedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return task.Submission{}, task.ErrNotFound
		}
		return task.Submission{}, errors.Wrap(err, "saving submission")
	}
	return sub, nil
}

func (repo *taskRepository) getSubmission(ctx context.Context, where string, args ...interface{}) (task.Submission, error) {
	var row gradedSubmissionRow
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &row, `
		SELECT `+gradedSubmissionColumns+`
		FROM submission s LEFT JOIN score sc ON sc.submission_id = s.id
		WHERE `+where,
		args...,
	)
	if err != nil {
		return task.Submission{}, trapNoRowsErr(err, task.ErrSubmissionNotFound, "finding submission")
	}
	return row.graded().Submission, nil
}

func (repo *taskRepository) GetSubmission(ctx context.Context, id string) (task.Submission, error) {
	if !isUUID(id) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	return repo.getSubmission(ctx, `s.id = $1`, id)
}

func (repo *taskRepository) GetStudentSubmission(ctx context.Context, taskID, studentID string) (task.Submission, error) {
	if !isUUID(taskID) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	return repo.getSubmission(ctx, `s.task_id = $1 AND s.student_id = $2`, taskID, studentID)
}

func (repo *taskRepository) selectGraded(ctx context.Context, q string, args ...interface{}) ([]task.GradedSubmission, error) {
	var rows []gradedSubmissionRow
	if err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]task.GradedSubmission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.graded())
	}
	return subs, nil
}

func (repo *taskRepository) QuerySubmissions(ctx context.Context, taskID, studentID string) ([]task.GradedSubmission, error) {
	if !isUUID(taskID) {
		return make([]task.GradedSubmission, 0), nil
	}
	return repo.selectGraded(ctx, `
		SELECT `+gradedSubmissionColumns+`
		FROM submission s LEFT JOIN score sc ON sc.submission_id = s.id
		WHERE s.task_id = $1 AND ($2 = '' OR s.student_id = $2)
		ORDER BY s.submitted_at`,
		taskID, studentID,
	)
}

func (repo *taskRepository) StudentSubmissions(ctx context.Context, groupID, studentID string) ([]task.GradedSubmission, error) {
	if !isUUID(groupID) {
		return make([]task.GradedSubmission, 0), nil
	}
	return repo.selectGraded(ctx, `
		SELECT `+gradedSubmissionColumns+`
		FROM submission s
		JOIN task t ON t.id = s.task_id
		LEFT JOIN score sc ON sc.submission_id = s.id
		WHERE t.group_id = $1 AND s.student_id = $2
		ORDER BY s.submitted_at`,
		groupID, studentID,
	)
}

func (repo *taskRepository) SaveScore(ctx context.Context, score task.Score) (task.Score, error) {
	if !isUUID(score.SubmissionID) {
		return task.Score{}, task.ErrSubmissionNotFound
	}
	if score.ID == "" {
		score.ID = newID()
	}
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &score.ID, `
		INSERT INTO score (id, submission_id, score_value, feedback, grader_id, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (submission_id) DO UPDATE
		SET score_value = EXCLUDED.score_value, feedback = EXCLUDED.feedback,
			grader_id = EXCLUDED.grader_id, graded_at = EXCLUDED.graded_at
		RETURNING id`,
		score.ID, score.SubmissionID, score.ScoreValue, score.Feedback, score.GraderID, score.GradedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return task.Score{}, task.ErrSubmissionNotFound
		}
		return task.Score{}, errors.Wrap(err, "saving score")
	}
	return score, nil
}

func (repo *taskRepository) DeleteScore(ctx context.Context, submissionID string) error {
	if !isUUID(submissionID) {
		return task.ErrScoreNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `DELETE FROM score WHERE submission_id = $1`, submissionID)
	if err != nil {
		return errors.Wrap(err, "deleting score")
	}
	return checkAffected(res, task.ErrScoreNotFound)
}
