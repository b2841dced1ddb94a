package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tasksphere/apps/api/echo"
	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/assistant"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/core/social"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
	emailsvc "github.com/trezcool/tasksphere/services/email"
	identitysvc "github.com/trezcool/tasksphere/services/identity"
	llmsvc "github.com/trezcool/tasksphere/services/llm"
	logsvc "github.com/trezcool/tasksphere/services/logger"
	storesvc "github.com/trezcool/tasksphere/services/objectstore"
	workersvc "github.com/trezcool/tasksphere/services/worker"
	"github.com/trezcool/tasksphere/storage/database"
	sqlxrepos "github.com/trezcool/tasksphere/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DepsParam gathers everything the API server needs.
type DepsParam struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Jobs       core.Dispatcher
	Storage    core.ObjectStore
	Identity   *identitysvc.Verifier
	Resolver   *access.Resolver

	UserSvc      *user.Service
	GroupSvc     *group.Service
	TaskSvc      *task.Service
	SocialSvc    *social.Service
	MessageSvc   *message.Service
	AssistantSvc *assistant.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newStore(db *sqlx.DB, loggerParam DBLoggerParam) (*sqlxrepos.DB, core.TxRunner) {
	store := sqlxrepos.New(db, loggerParam.Logger)
	return store, store
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	group.RegisterValidators(validate, translator)
	return validate
}

func newPool(conf *core.Config, logger core.Logger) (*workersvc.Pool, core.Dispatcher) {
	pool := workersvc.NewPool(workersvc.OptionsFromConfig(conf), logger)
	return pool, pool
}

func newCompleter(conf *core.Config) assistant.Completer {
	return llmsvc.NewCompleter(conf, nil)
}

func newVerifier(conf *core.Config) (*identitysvc.Verifier, error) {
	return identitysvc.NewVerifier(conf.Identity.WebhookSecret)
}

func newResolver(users user.Repository, groups group.Repository, logger core.Logger) *access.Resolver {
	return access.NewResolver(users, group.NewMembershipReader(groups), logger)
}

func newGroupService(
	repo group.Repository,
	users user.Repository,
	tx core.TxRunner,
	mailSvc core.EmailService,
	jobs core.Dispatcher,
	logger core.Logger,
) *group.Service {
	return group.NewService(repo, users, tx, mailSvc, jobs, logger)
}

func newMessageService(repo message.Repository, users user.Repository, jobs core.Dispatcher, logger core.Logger) *message.Service {
	return message.NewService(repo, users, jobs, logger)
}

type assistantParam struct {
	dig.In

	Conf      *core.Config
	Logger    core.Logger
	Completer assistant.Completer
	Sessions  assistant.SessionRepository
	Users     user.Repository
	Groups    group.Repository
	Tasks     task.Repository
	Messages  *message.Service
	GroupSvc  *group.Service
}

// newAssistantService also lets group creation requests read completed intakes.
func newAssistantService(p assistantParam) *assistant.Service {
	svc := assistant.NewService(
		p.Completer,
		p.Sessions,
		p.Users,
		p.Groups,
		p.Tasks,
		p.Messages,
		p.Logger,
		assistant.OptionsFromConfig(p.Conf),
	)
	p.GroupSvc.SetIntakeReader(svc)
	return svc
}

func newServer(p DepsParam) *echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Host, nil, &echoapi.Deps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Jobs:         p.Jobs,
		Storage:      p.Storage,
		Identity:     p.Identity,
		Resolver:     p.Resolver,
		UserSvc:      p.UserSvc,
		GroupSvc:     p.GroupSvc,
		TaskSvc:      p.TaskSvc,
		SocialSvc:    p.SocialSvc,
		MessageSvc:   p.MessageSvc,
		AssistantSvc: p.AssistantSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newStore))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newPool))
	must(c.Provide(storesvc.NewDiskStore))
	must(c.Provide(newVerifier))
	must(c.Provide(newCompleter))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewGroupRepository))
	must(c.Provide(sqlxrepos.NewTaskRepository))
	must(c.Provide(sqlxrepos.NewSocialRepository))
	must(c.Provide(sqlxrepos.NewMessageRepository))
	must(c.Provide(sqlxrepos.NewSessionRepository))

	// services
	must(c.Provide(newResolver))
	must(c.Provide(user.NewService))
	must(c.Provide(newGroupService))
	must(c.Provide(task.NewService))
	must(c.Provide(social.NewService))
	must(c.Provide(newMessageService))
	must(c.Provide(newAssistantService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
