package inmemdb

import (
	"context"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/assistant"
)

type sessionRepository struct {
	db *DB
}

var _ assistant.SessionRepository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) assistant.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess assistant.Session) (assistant.Session, error) {
	sess.Answers = append(make(core.Transcript, 0, len(sess.Answers)), sess.Answers...)
	_ = repo.db.write(ctx, func(t *tables) error {
		if sess.ID == "" {
			sess.ID = newID()
		}
		t.sessions[sess.ID] = sess
		return nil
	})
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (assistant.Session, error) {
	var sess assistant.Session
	err := repo.db.read(func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return assistant.ErrSessionNotFound
		}
		sess = s
		return nil
	})
	return sess, err
}

func (repo *sessionRepository) AdvanceSession(ctx context.Context, sess assistant.Session, expectedStep int) (assistant.Session, error) {
	sess.Answers = append(make(core.Transcript, 0, len(sess.Answers)), sess.Answers...)
	err := repo.db.write(ctx, func(t *tables) error {
		stored, ok := t.sessions[sess.ID]
		if !ok {
			return assistant.ErrSessionNotFound
		}
		if stored.CurrentStep != expectedStep || stored.IsCompleted {
			return assistant.ErrStaleSession
		}
		t.sessions[sess.ID] = sess
		return nil
	})
	if err != nil {
		return assistant.Session{}, err
	}
	return sess, nil
}
