package assistant_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/assistant"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
	"github.com/trezcool/tasksphere/testutil"
)

var intakeAnswers = []string{
	"Algebra Circle",
	"Weekly problem solving sessions",
	"Lycee Descartes",
	"Mathematics",
	"About 20 final year students",
}

func TestService_intake(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)
	actor := env.Actor(usr)

	// the provider is down: the summary falls back to the answers
	env.Completer.Set("", errors.New("provider down"))

	step, err := env.AssistantSvc.StartIntake(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, step.Step)
	assert.Equal(t, assistant.IntakeLength, step.Total)
	assert.NotEmpty(t, step.Question)
	sessionID := step.Session.ID

	for i, answer := range intakeAnswers {
		step, err = env.AssistantSvc.AnswerIntake(ctx, actor, sessionID, answer)
		require.NoError(t, err)
		if i < len(intakeAnswers)-1 {
			assert.Equal(t, i+2, step.Step)
			assert.NotEmpty(t, step.Question)
			assert.False(t, step.Session.IsCompleted)
		}
	}
	assert.True(t, step.Session.IsCompleted)
	assert.Empty(t, step.Question)
	assert.NotEmpty(t, step.Summary)
	for _, answer := range intakeAnswers {
		assert.Contains(t, step.Summary, answer)
	}
	assert.Len(t, env.Completer.Requests(), 2, "one retry")

	_, err = env.AssistantSvc.AnswerIntake(ctx, actor, sessionID, "one more")
	assert.Equal(t, assistant.ErrSessionCompleted, err)

	req, err := env.GroupSvc.SubmitCreationRequest(ctx, actor, group.NewCreationRequest{SessionID: sessionID})
	require.NoError(t, err)
	assert.Equal(t, "Algebra Circle", req.RequestedGroupName)
	assert.Equal(t, step.Summary, req.Description.String)
	assert.Equal(t, "Lycee Descartes", req.InstituteName.String)
	assert.Equal(t, "Mathematics", req.Department.String)
	assert.Len(t, req.Transcript, assistant.IntakeLength)
	assert.Equal(t, sessionID, req.SessionID.String)
}

func TestService_intake_summary(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)
	actor := env.Actor(usr)
	env.Completer.Set("  A maths club for final year students.  ", nil)

	step, err := env.AssistantSvc.StartIntake(ctx, actor)
	require.NoError(t, err)
	for _, answer := range intakeAnswers {
		step, err = env.AssistantSvc.AnswerIntake(ctx, actor, step.Session.ID, answer)
		require.NoError(t, err)
	}
	assert.Equal(t, "A maths club for final year students.", step.Summary)

	reqs := env.Completer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "test-model", reqs[0].Model)
	require.Len(t, reqs[0].Messages, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Algebra Circle")
}

func TestService_intake_errors(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	u1 := env.CreateUser(t, "u1", "u1@x.com", "", false)
	u2 := env.CreateUser(t, "u2", "u2@x.com", "", false)

	step, err := env.AssistantSvc.StartIntake(ctx, env.Actor(u1))
	require.NoError(t, err)
	sessionID := step.Session.ID

	t.Run("blank answer", func(t *testing.T) {
		_, err := env.AssistantSvc.AnswerIntake(ctx, env.Actor(u1), sessionID, "   ")
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "answer", verr.Fields[0].Field)
	})

	t.Run("someone else's session", func(t *testing.T) {
		_, err := env.AssistantSvc.GetIntake(ctx, env.Actor(u2), sessionID)
		assert.Equal(t, assistant.ErrSessionNotFound, err)
		_, err = env.AssistantSvc.AnswerIntake(ctx, env.Actor(u2), sessionID, "hijack")
		assert.Equal(t, assistant.ErrSessionNotFound, err)
		_, err = env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(u2), group.NewCreationRequest{SessionID: sessionID})
		assert.Equal(t, assistant.ErrSessionNotFound, err)
	})

	t.Run("not completed", func(t *testing.T) {
		_, err := env.GroupSvc.SubmitCreationRequest(ctx, env.Actor(u1), group.NewCreationRequest{SessionID: sessionID})
		assert.Equal(t, assistant.ErrIntakeNotCompleted, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := env.AssistantSvc.GetIntake(ctx, env.Actor(u1), "nope")
		assert.Equal(t, assistant.ErrSessionNotFound, err)
	})
}

// The last answer is sent twice: the second one completes the session while the
// first one waits for its summary, which then cannot be saved.
func TestService_AnswerIntake_stale(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)
	actor := env.Actor(usr)

	step, err := env.AssistantSvc.StartIntake(ctx, actor)
	require.NoError(t, err)
	sessionID := step.Session.ID
	for _, answer := range intakeAnswers[:len(intakeAnswers)-1] {
		_, err = env.AssistantSvc.AnswerIntake(ctx, actor, sessionID, answer)
		require.NoError(t, err)
	}

	var (
		calls    int32
		innerErr error
	)
	env.Completer.Fn = func(ctx context.Context, _ assistant.CompletionRequest) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, innerErr = env.AssistantSvc.AnswerIntake(ctx, actor, sessionID, "the second answer")
			return "first summary", nil
		}
		return "second summary", nil
	}

	_, err = env.AssistantSvc.AnswerIntake(ctx, actor, sessionID, "the first answer")
	assert.Equal(t, assistant.ErrStaleSession, err)
	require.NoError(t, innerErr)

	step, err = env.AssistantSvc.GetIntake(ctx, actor, sessionID)
	require.NoError(t, err)
	assert.True(t, step.Session.IsCompleted)
	assert.Equal(t, "second summary", step.Summary)
	assert.Equal(t, "the second answer", step.Session.Answers[len(step.Session.Answers)-1].Answer)
}

func disableAI(t *testing.T, env *testutil.Env, usr user.User) {
	t.Helper()
	off := false
	_, err := env.UserSvc.UpdateProfile(context.Background(), usr.ID, user.UpdateProfile{AIEnabled: &off})
	require.NoError(t, err)
}

func TestService_Chat(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)
	actor := env.Actor(usr)

	env.Completer.Set("Hello! How can I help?", nil)
	reply, err := env.AssistantSvc.Chat(ctx, actor, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)

	env.Completer.Set("Start with the oldest deadline.", nil)
	_, err = env.AssistantSvc.Chat(ctx, actor, "how do I organize my week?")
	require.NoError(t, err)

	reqs := env.Completer.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []assistant.ChatMessage{
		{Role: assistant.RoleUser, Content: "hi"},
		{Role: assistant.RoleAssistant, Content: "Hello! How can I help?"},
		{Role: assistant.RoleUser, Content: "how do I organize my week?"},
	}, reqs[1].Messages)

	history, err := env.MessageSvc.History(ctx, usr.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	t.Run("empty prompt", func(t *testing.T) {
		_, err := env.AssistantSvc.Chat(ctx, actor, " ")
		assert.Equal(t, assistant.ErrEmptyHistory, err)
	})

	t.Run("provider down", func(t *testing.T) {
		env.Completer.Set("", errors.New("provider down"))
		_, err := env.AssistantSvc.Chat(ctx, actor, "still there?")
		assert.Equal(t, assistant.ErrUnavailable, err)
		assert.Len(t, env.Completer.Requests(), 4, "one retry")

		history, err := env.MessageSvc.History(ctx, usr.ID, 10)
		require.NoError(t, err)
		assert.Len(t, history, 4, "failed exchanges are not recorded")
	})

	t.Run("disabled", func(t *testing.T) {
		disableAI(t, env, usr)
		_, err := env.AssistantSvc.Chat(ctx, actor, "hi again")
		assert.Equal(t, assistant.ErrAIDisabled, err)
		assert.Len(t, env.Completer.Requests(), 4)
	})
}

func TestService_timeout(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)

	completer := &testutil.FakeCompleter{
		Fn: func(ctx context.Context, _ assistant.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	svc := assistant.NewService(
		completer, env.SessionRepo, env.UserRepo, env.GroupRepo, env.TaskRepo, env.MessageSvc,
		env.Logger,
		assistant.Options{Timeout: 10 * time.Millisecond, Retries: 2},
	)

	start := time.Now()
	_, err := svc.Chat(ctx, env.Actor(usr), "hi")
	assert.Equal(t, assistant.ErrUnavailable, err)
	assert.Len(t, completer.Requests(), 3)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestService_intake_disabled(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "u1", "u1@x.com", "", false)
	disableAI(t, env, usr)
	env.Completer.Set("never used", nil)

	step, err := env.AssistantSvc.StartIntake(ctx, env.Actor(usr))
	require.NoError(t, err)
	for _, answer := range intakeAnswers {
		step, err = env.AssistantSvc.AnswerIntake(ctx, env.Actor(usr), step.Session.ID, answer)
		require.NoError(t, err)
	}
	assert.True(t, strings.HasPrefix(step.Summary, "Q: "))
	assert.Empty(t, env.Completer.Requests())
}

type groupFixture struct {
	env      *testutil.Env
	grp      group.Group
	teacher  user.User
	a, b     user.User
	outsider user.User
	t1, t2   task.Task
}

func newGroupFixture(t *testing.T) groupFixture {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	f := groupFixture{env: env}
	f.teacher = env.CreateUser(t, "teacher", "teacher@x.com", "Teacher", false)
	f.a = env.CreateUser(t, "stud-a", "a@x.com", "Student A", false)
	f.b = env.CreateUser(t, "stud-b", "b@x.com", "Student B", false)
	f.outsider = env.CreateUser(t, "outsider", "o@x.com", "", false)
	f.grp = env.CreateGroup(t, "Physics", f.teacher)
	env.AddMember(t, f.grp.ID, f.a.ID, access.RoleStudent)
	env.AddMember(t, f.grp.ID, f.b.ID, access.RoleStudent)

	var err error
	f.t1, err = env.TaskSvc.CreateTask(ctx, env.Actor(f.teacher), f.grp.ID, task.NewTask{Title: "Optics", MaxScore: 10})
	require.NoError(t, err)
	f.t2, err = env.TaskSvc.CreateTask(ctx, env.Actor(f.teacher), f.grp.ID, task.NewTask{Title: "Mechanics", MaxScore: 20})
	require.NoError(t, err)

	subA, err := env.TaskSvc.Submit(ctx, env.Actor(f.a), f.t1.ID, task.NewSubmission{Content: "my optics answer"})
	require.NoError(t, err)
	subB, err := env.TaskSvc.Submit(ctx, env.Actor(f.b), f.t1.ID, task.NewSubmission{Content: "bee optics answer"})
	require.NoError(t, err)
	_, err = env.TaskSvc.Submit(ctx, env.Actor(f.b), f.t2.ID, task.NewSubmission{Content: "bee mechanics answer"})
	require.NoError(t, err)

	_, err = env.TaskSvc.Grade(ctx, env.Actor(f.teacher), subA.ID, task.NewScore{ScoreValue: 8, Feedback: "well done"})
	require.NoError(t, err)
	_, err = env.TaskSvc.Grade(ctx, env.Actor(f.teacher), subB.ID, task.NewScore{ScoreValue: 3, Feedback: "secret feedback for bee"})
	require.NoError(t, err)
	return f
}

func TestService_GroupContext(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	gc, err := f.env.AssistantSvc.GroupContext(ctx, f.env.Actor(f.a), f.grp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Physics", gc.Group.Name)
	assert.Len(t, gc.Tasks, 2)
	require.Len(t, gc.Submissions, 1, "only the student's own submissions")
	assert.Equal(t, f.t1.ID, gc.Submissions[0].TaskID)
	assert.Equal(t, f.a.ID, gc.Submissions[0].StudentID)
	require.NotNil(t, gc.Submissions[0].Score)
	assert.Equal(t, 8.0, *gc.Submissions[0].Score)
	assert.Equal(t, "well done", gc.Submissions[0].Feedback)

	assert.Equal(t, 2, gc.Stats.TotalTasks)
	assert.Equal(t, 1, gc.Stats.Submitted)
	assert.Equal(t, 1, gc.Stats.Pending)
	assert.Equal(t, 1, gc.Stats.Graded)
	require.NotNil(t, gc.Stats.AveragePercent)
	assert.InDelta(t, 80.0, *gc.Stats.AveragePercent, 0.001)

	_, err = f.env.AssistantSvc.GroupContext(ctx, f.env.Actor(f.outsider), f.grp.ID)
	assert.Equal(t, access.ErrNotMember, err)
}

func TestService_AskGroup(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.env.Completer.Set("You scored 8 out of 10 on Optics.", nil)

	reply, err := f.env.AssistantSvc.AskGroup(ctx, f.env.Actor(f.a), f.grp.ID, []assistant.ChatMessage{
		{Role: assistant.RoleUser, Content: "How did Student B do?"},
		{Role: assistant.RoleAssistant, Content: "I can only talk about your own work."},
		{Role: assistant.RoleUser, Content: "How did I do on Optics?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You scored 8 out of 10 on Optics.", reply)

	reqs := f.env.Completer.Requests()
	require.Len(t, reqs, 1)
	system := reqs[0].System
	assert.Contains(t, system, "Optics")
	assert.Contains(t, system, "Mechanics")
	assert.Contains(t, system, "well done")
	assert.NotContains(t, system, "secret feedback for bee")
	assert.NotContains(t, system, f.b.ID)
	assert.Len(t, reqs[0].Messages, 3)

	tests := []struct {
		name    string
		actor   user.User
		history []assistant.ChatMessage
		wantErr error
	}{
		{name: "no history", actor: f.a, wantErr: assistant.ErrEmptyHistory},
		{
			name:    "ends with the assistant",
			actor:   f.a,
			history: []assistant.ChatMessage{{Role: assistant.RoleAssistant, Content: "hello"}},
			wantErr: assistant.ErrEmptyHistory,
		},
		{
			name:    "outsider",
			actor:   f.outsider,
			history: []assistant.ChatMessage{{Role: assistant.RoleUser, Content: "hello"}},
			wantErr: access.ErrNotMember,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.AssistantSvc.AskGroup(ctx, f.env.Actor(tc.actor), f.grp.ID, tc.history)
			assert.Equal(t, tc.wantErr, err)
		})
	}
	assert.Len(t, f.env.Completer.Requests(), 1)
}
