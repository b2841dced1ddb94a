package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tasksphere/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	tsk.Attachments = copyStrings(tsk.Attachments)
	_ = repo.db.write(ctx, func(t *tables) error {
		if tsk.ID == "" {
			tsk.ID = newID()
		}
		t.tasks[tsk.ID] = tsk
		return nil
	})
	return tsk, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string) (task.Task, error) {
	var tsk task.Task
	err := repo.db.read(func(t *tables) error {
		tk, ok := t.tasks[id]
		if !ok {
			return task.ErrNotFound
		}
		tsk = tk
		return nil
	})
	return tsk, err
}

func (repo *taskRepository) QueryTasks(_ context.Context, groupID string) ([]task.Task, error) {
	tasks := make([]task.Task, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, tk := range t.tasks {
			if tk.GroupID == groupID {
				tasks = append(tasks, tk)
			}
		}
		return nil
	})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	tsk.Attachments = copyStrings(tsk.Attachments)
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.tasks[tsk.ID]; !ok {
			return task.ErrNotFound
		}
		t.tasks[tsk.ID] = tsk
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return tsk, nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.tasks[id]; !ok {
			return task.ErrNotFound
		}
		delete(t.tasks, id)
		// cascade
		for subID, sub := range t.submissions {
			if sub.TaskID == id {
				delete(t.submissions, subID)
				delete(t.scores, subID)
			}
		}
		return nil
	})
}

func (repo *taskRepository) SaveSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	sub.Attachments = copyStrings(sub.Attachments)
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.tasks[sub.TaskID]; !ok {
			return task.ErrNotFound
		}
		for id, s := range t.submissions {
			if s.TaskID == sub.TaskID && s.StudentID == sub.StudentID {
				sub.ID = id
				break
			}
		}
		if sub.ID == "" {
			sub.ID = newID()
		}
		t.submissions[sub.ID] = sub
		return nil
	})
	if err != nil {
		return task.Submission{}, err
	}
	return sub, nil
}

func (repo *taskRepository) GetSubmission(_ context.Context, id string) (task.Submission, error) {
	var sub task.Submission
	err := repo.db.read(func(t *tables) error {
		s, ok := t.submissions[id]
		if !ok {
			return task.ErrSubmissionNotFound
		}
		sub = s
		return nil
	})
	return sub, err
}

func (repo *taskRepository) GetStudentSubmission(_ context.Context, taskID, studentID string) (task.Submission, error) {
	var sub task.Submission
	err := repo.db.read(func(t *tables) error {
		for _, s := range t.submissions {
			if s.TaskID == taskID && s.StudentID == studentID {
				sub = s
				return nil
			}
		}
		return task.ErrSubmissionNotFound
	})
	return sub, err
}

func graded(t *tables, sub task.Submission) task.GradedSubmission {
	gs := task.GradedSubmission{Submission: sub}
	if score, ok := t.scores[sub.ID]; ok {
		gs.Score = &score
	}
	return gs
}

func sortSubmissions(subs []task.GradedSubmission) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
}

func (repo *taskRepository) QuerySubmissions(_ context.Context, taskID, studentID string) ([]task.GradedSubmission, error) {
	subs := make([]task.GradedSubmission, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.submissions {
			if s.TaskID == taskID && (studentID == "" || s.StudentID == studentID) {
				subs = append(subs, graded(t, s))
			}
		}
		return nil
	})
	sortSubmissions(subs)
	return subs, nil
}

func (repo *taskRepository) StudentSubmissions(_ context.Context, groupID, studentID string) ([]task.GradedSubmission, error) {
	subs := make([]task.GradedSubmission, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, s := range t.submissions {
			if tk, ok := t.tasks[s.TaskID]; ok && tk.GroupID == groupID && s.StudentID == studentID {
				subs = append(subs, graded(t, s))
			}
		}
		return nil
	})
	sortSubmissions(subs)
	return subs, nil
}

func (repo *taskRepository) SaveScore(ctx context.Context, score task.Score) (task.Score, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.submissions[score.SubmissionID]; !ok {
			return task.ErrSubmissionNotFound
		}
		if prev, ok := t.scores[score.SubmissionID]; ok {
			score.ID = prev.ID
		} else if score.ID == "" {
			score.ID = newID()
		}
		t.scores[score.SubmissionID] = score
		return nil
	})
	if err != nil {
		return task.Score{}, err
	}
	return score, nil
}

func (repo *taskRepository) DeleteScore(ctx context.Context, submissionID string) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.scores[submissionID]; !ok {
			return task.ErrScoreNotFound
		}
		delete(t.scores, submissionID)
		return nil
	})
}
