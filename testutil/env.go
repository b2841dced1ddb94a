// Package testutil wires the services on top of the in-memory database, for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/assistant"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/core/social"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
	appfs "github.com/trezcool/tasksphere/fs"
	emailsvc "github.com/trezcool/tasksphere/services/email"
	logsvc "github.com/trezcool/tasksphere/services/logger"
	workersvc "github.com/trezcool/tasksphere/services/worker"
	inmemdb "github.com/trezcool/tasksphere/storage/database/inmem"
)

var (
	parseTemplatesOnce sync.Once
	parseTemplatesErr  error
)

type Env struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *inmemdb.DB
	Mail   *emailsvc.ConsoleServiceMock
	Jobs   core.Dispatcher

	UserRepo    user.Repository
	GroupRepo   group.Repository
	TaskRepo    task.Repository
	SocialRepo  social.Repository
	MessageRepo message.Repository
	SessionRepo assistant.SessionRepository

	Resolver     *access.Resolver
	UserSvc      *user.Service
	GroupSvc     *group.Service
	TaskSvc      *task.Service
	SocialSvc    *social.Service
	MessageSvc   *message.Service
	AssistantSvc *assistant.Service
	Completer    *FakeCompleter
}

func NewConfig() *core.Config {
	return &core.Config{
		AppName:         "TaskSphere",
		Env:             "TEST",
		TestMode:        true,
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		Identity:        core.IdentityConfig{SigningKey: "test-signing-key"},
		AI:              core.AIConfig{Model: "test-model", Timeout: time.Second, Retries: 1, MaxHistory: 20},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewEnv returns the services wired on a fresh in-memory database.
// Jobs run synchronously and emails are recorded by env.Mail.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := NewConfig()
	logger := NewLogger(conf)
	parseTemplatesOnce.Do(func() {
		parseTemplatesErr = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true)
	})
	require.NoError(t, parseTemplatesErr, "parsing email templates")

	db := inmemdb.Open()
	env := &Env{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		Mail:        emailsvc.NewConsoleServiceMock(conf, logger),
		Jobs:        workersvc.NewSyncDispatcher(logger),
		UserRepo:    inmemdb.NewUserRepository(db),
		GroupRepo:   inmemdb.NewGroupRepository(db),
		TaskRepo:    inmemdb.NewTaskRepository(db),
		SocialRepo:  inmemdb.NewSocialRepository(db),
		MessageRepo: inmemdb.NewMessageRepository(db),
		SessionRepo: inmemdb.NewSessionRepository(db),
		Completer:   &FakeCompleter{},
	}

	env.UserSvc = user.NewService(env.UserRepo, logger)
	env.Resolver = access.NewResolver(env.UserRepo, group.NewMembershipReader(env.GroupRepo), logger)
	env.GroupSvc = group.NewService(env.GroupRepo, env.UserRepo, db, env.Mail, env.Jobs, logger)
	env.TaskSvc = task.NewService(env.TaskRepo, db, logger)
	env.SocialSvc = social.NewService(env.SocialRepo, logger)
	env.MessageSvc = message.NewService(env.MessageRepo, env.UserRepo, env.Jobs, logger)
	env.AssistantSvc = assistant.NewService(
		env.Completer,
		env.SessionRepo,
		env.UserRepo,
		env.GroupRepo,
		env.TaskRepo,
		env.MessageSvc,
		logger,
		assistant.OptionsFromConfig(conf),
	)
	env.GroupSvc.SetIntakeReader(env.AssistantSvc)
	return env
}

// Actor returns a fresh actor for the user: roles are resolved again.
func (env *Env) Actor(usr user.User) access.Actor {
	return env.Resolver.Actor(usr.Principal())
}

func CreateUser(t *testing.T, repo user.Repository, id, email, name string, isSuperAdmin bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:           id,
		Email:        email,
		FullName:     null.NewString(name, name != ""),
		IsSuperAdmin: isSuperAdmin,
		AIEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateUser(t *testing.T, id, email, name string, isSuperAdmin bool) user.User {
	t.Helper()
	return CreateUser(t, env.UserRepo, id, email, name, isSuperAdmin)
}

// CreateGroup creates a group owned by `owner` (top admin), bypassing permission checks.
func (env *Env) CreateGroup(t *testing.T, name string, owner user.User) group.Group {
	t.Helper()
	ctx := context.Background()
	grp, err := env.GroupRepo.CreateGroup(ctx, group.Group{
		Name:       name,
		TopAdminID: owner.ID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	env.AddMember(t, grp.ID, owner.ID, access.RoleTopAdmin)
	return grp
}

func (env *Env) AddMember(t *testing.T, groupID, userID string, role access.Role) group.Member {
	t.Helper()
	mbr, err := env.GroupRepo.AddMember(context.Background(), group.Member{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	return mbr
}
