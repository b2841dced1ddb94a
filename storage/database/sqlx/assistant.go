package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/assistant"
)

const sessionColumns = `id, user_id, current_step, answers, is_completed, summary, created_at, updated_at`

type sessionRepository struct {
	db *DB
}

var _ assistant.SessionRepository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) assistant.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess assistant.Session) (assistant.Session, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO ai_conversation_session (`+sessionColumns+`)
		VALUES (:id, :user_id, :current_step, :answers, :is_completed, :summary, :created_at, :updated_at)`,
		sess,
	)
	if err != nil {
		return assistant.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (assistant.Session, error) {
	if !isUUID(id) {
		return assistant.Session{}, assistant.ErrSessionNotFound
	}
	var sess assistant.Session
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &sess,
		`SELECT `+sessionColumns+` FROM ai_conversation_session WHERE id = $1`, id)
	if err != nil {
		return assistant.Session{}, trapNoRowsErr(err, assistant.ErrSessionNotFound, "finding session")
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return sess, nil
}

// AdvanceSession is a compare-and-swap on (current_step, is_completed).
func (repo *sessionRepository) AdvanceSession(ctx context.Context, sess assistant.Session, expectedStep int) (assistant.Session, error) {
	if !isUUID(sess.ID) {
		return assistant.Session{}, assistant.ErrSessionNotFound
	}
	res, err := repo.db.exec(ctx).ExecContext(ctx, `
		UPDATE ai_conversation_session
		SET current_step = $2, answers = $3, is_completed = $4, summary = $5, updated_at = $6
		WHERE id = $1 AND current_step = $7 AND NOT is_completed`,
		sess.ID, sess.CurrentStep, sess.Answers, sess.IsCompleted, sess.Summary, sess.UpdatedAt, expectedStep,
	)
	if err != nil {
		return assistant.Session{}, errors.Wrap(err, "advancing session")
	}
	if err = checkAffected(res, assistant.ErrStaleSession); err != nil {
		if _, getErr := repo.GetSession(ctx, sess.ID); getErr != nil {
			return assistant.Session{}, getErr
		}
		return assistant.Session{}, err
	}
	return sess, nil
}
