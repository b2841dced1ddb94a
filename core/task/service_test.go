package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
	"github.com/trezcool/tasksphere/testutil"
)

type fixture struct {
	env      *testutil.Env
	teacher  user.User
	s1, s2   user.User
	outsider user.User
	groupID  string
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	f := fixture{
		env:      env,
		teacher:  env.CreateUser(t, "teacher", "teacher@x.com", "Teacher", false),
		s1:       env.CreateUser(t, "s1", "s1@x.com", "Student One", false),
		s2:       env.CreateUser(t, "s2", "s2@x.com", "Student Two", false),
		outsider: env.CreateUser(t, "out", "out@x.com", "", false),
	}
	grp := env.CreateGroup(t, "Physics", f.teacher)
	env.AddMember(t, grp.ID, f.s1.ID, access.RoleStudent)
	env.AddMember(t, grp.ID, f.s2.ID, access.RoleStudent)
	f.groupID = grp.ID
	return f
}

func (f fixture) createTask(t *testing.T, nt task.NewTask) task.Task {
	tsk, err := f.env.TaskSvc.CreateTask(context.Background(), f.env.Actor(f.teacher), f.groupID, nt)
	require.NoError(t, err)
	return tsk
}

func TestService_CreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.TaskSvc.CreateTask(ctx, f.env.Actor(f.s1), f.groupID, task.NewTask{Title: "Nope", MaxScore: 10})
	assert.Equal(t, core.ErrPermissionDenied, err)
	_, err = f.env.TaskSvc.CreateTask(ctx, f.env.Actor(f.outsider), f.groupID, task.NewTask{Title: "Nope", MaxScore: 10})
	assert.Equal(t, access.ErrNotMember, err)

	deadline := time.Now().Add(24 * time.Hour)
	tsk := f.createTask(t, task.NewTask{Title: "Kinematics", MaxScore: 20, Deadline: &deadline})
	assert.Equal(t, f.teacher.ID, tsk.CreatedBy)
	assert.Equal(t, []string{}, tsk.Attachments)
	assert.True(t, tsk.Deadline.Valid)

	tasks, err := f.env.TaskSvc.ListTasks(ctx, f.env.Actor(f.s1), f.groupID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	t.Run("update", func(t *testing.T) {
		title := "Kinematics II"
		updated, err := f.env.TaskSvc.UpdateTask(ctx, f.env.Actor(f.teacher), tsk.ID, task.UpdateTask{Title: &title, ClearDeadline: true})
		require.NoError(t, err)
		assert.Equal(t, "Kinematics II", updated.Title)
		assert.False(t, updated.Deadline.Valid)

		_, err = f.env.TaskSvc.UpdateTask(ctx, f.env.Actor(f.s1), tsk.ID, task.UpdateTask{Title: &title})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "v = d / t"})
		require.NoError(t, err)

		require.NoError(t, f.env.TaskSvc.DeleteTask(ctx, f.env.Actor(f.teacher), tsk.ID))
		_, err = f.env.TaskSvc.GetTask(ctx, f.env.Actor(f.s1), tsk.ID)
		assert.Equal(t, task.ErrNotFound, err)
		subs, err := f.env.TaskRepo.StudentSubmissions(ctx, f.groupID, f.s1.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tsk := f.createTask(t, task.NewTask{Title: "Essay", MaxScore: 100})

	_, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "   "})
	assert.Equal(t, task.ErrEmptySubmission, err)
	_, err = f.env.TaskSvc.Submit(ctx, f.env.Actor(f.outsider), tsk.ID, task.NewSubmission{Content: "hi"})
	assert.Equal(t, access.ErrNotMember, err)

	first, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "draft"})
	require.NoError(t, err)

	score, err := f.env.TaskSvc.Grade(ctx, f.env.Actor(f.teacher), first.ID, task.NewScore{ScoreValue: 55, Feedback: "good start"})
	require.NoError(t, err)
	assert.Equal(t, 55.0, score.ScoreValue)

	results, err := f.env.TaskSvc.MyResults(ctx, f.env.Actor(f.s1), f.groupID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Submission)
	require.NotNil(t, results[0].Submission.Score)

	// resubmitting keeps the submission but drops its score
	second, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "final", LinkURL: "https://docs.x.com/essay"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "final", second.Content)

	results, err = f.env.TaskSvc.MyResults(ctx, f.env.Actor(f.s1), f.groupID)
	require.NoError(t, err)
	require.NotNil(t, results[0].Submission)
	assert.Equal(t, "final", results[0].Submission.Content)
	assert.Nil(t, results[0].Submission.Score)
}

func TestService_Submit_deadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	tsk := f.createTask(t, task.NewTask{Title: "Late", MaxScore: 10, Deadline: &past})
	assert.True(t, tsk.IsClosed(time.Now()))

	_, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "sorry"})
	assert.Equal(t, task.ErrDeadlinePassed, err)
}

func TestService_Submissions_visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	private := f.createTask(t, task.NewTask{Title: "Private", MaxScore: 10})
	public := f.createTask(t, task.NewTask{Title: "Public", MaxScore: 10, PublicSubmissions: true})
	for _, tsk := range []task.Task{private, public} {
		for _, stud := range []user.User{f.s1, f.s2} {
			_, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(stud), tsk.ID, task.NewSubmission{Content: "answer of " + stud.ID})
			require.NoError(t, err)
		}
	}

	tests := []struct {
		name   string
		actor  user.User
		taskID string
		want   int
	}{
		{name: "own only", actor: f.s1, taskID: private.ID, want: 1},
		{name: "public task", actor: f.s1, taskID: public.ID, want: 2},
		{name: "admin", actor: f.teacher, taskID: private.ID, want: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subs, err := f.env.TaskSvc.Submissions(ctx, f.env.Actor(tc.actor), tc.taskID)
			require.NoError(t, err)
			assert.Len(t, subs, tc.want)
			if tc.want == 1 {
				assert.Equal(t, tc.actor.ID, subs[0].StudentID)
			}
		})
	}
}

func TestService_Grade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tsk := f.createTask(t, task.NewTask{Title: "Quiz", MaxScore: 10})
	sub, err := f.env.TaskSvc.Submit(ctx, f.env.Actor(f.s1), tsk.ID, task.NewSubmission{Content: "42"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   user.User
		value   float64
		wantErr bool
	}{
		{name: "students cannot grade", actor: f.s2, value: 5, wantErr: true},
		{name: "above max", actor: f.teacher, value: 11, wantErr: true},
		{name: "negative", actor: f.teacher, value: -1, wantErr: true},
		{name: "ok", actor: f.teacher, value: 10},
		{name: "regrade", actor: f.teacher, value: 7.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, err := f.env.TaskSvc.Grade(ctx, f.env.Actor(tc.actor), sub.ID, task.NewScore{ScoreValue: tc.value})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.value, score.ScoreValue)
		})
	}

	var vErr *core.ValidationError
	_, err = f.env.TaskSvc.Grade(ctx, f.env.Actor(f.teacher), sub.ID, task.NewScore{ScoreValue: 100})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "score_value", vErr.Fields[0].Field)

	subs, err := f.env.TaskSvc.Submissions(ctx, f.env.Actor(f.teacher), tsk.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Score)
	assert.Equal(t, 7.5, subs[0].Score.ScoreValue)

	t.Run("max score below a given score", func(t *testing.T) {
		for _, maxScore := range []float64{5, 7} {
			maxScore := maxScore
			_, err := f.env.TaskSvc.UpdateTask(ctx, f.env.Actor(f.teacher), tsk.ID, task.UpdateTask{MaxScore: &maxScore})
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "max_score", vErr.Fields[0].Field)
		}

		maxScore := 7.5
		updated, err := f.env.TaskSvc.UpdateTask(ctx, f.env.Actor(f.teacher), tsk.ID, task.UpdateTask{MaxScore: &maxScore})
		require.NoError(t, err)
		assert.Equal(t, 7.5, updated.MaxScore)
	})
}

func TestJoinResults(t *testing.T) {
	tasks := []task.Task{{ID: "t1"}, {ID: "t2"}}
	subs := []task.GradedSubmission{
		{Submission: task.Submission{ID: "a", TaskID: "t1", StudentID: "s1"}},
		{Submission: task.Submission{ID: "b", TaskID: "t2", StudentID: "s2"}},
	}
	results := task.JoinResults(tasks, subs, "s1")
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Submission)
	assert.Equal(t, "a", results[0].Submission.ID)
	assert.Nil(t, results[1].Submission, "submissions of other students are ignored")
}
