// Package inmemdb implements the repositories in memory, for tests and local demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/assistant"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/core/social"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
)

type (
	memberKey struct{ groupID, userID string }
	likeKey   struct{ postID, userID string }

	tables struct {
		users            map[string]user.User
		groups           map[string]group.Group
		members          map[memberKey]group.Member
		joinRequests     map[string]group.JoinRequest
		creationRequests map[string]group.CreationRequest
		sessions         map[string]assistant.Session
		tasks            map[string]task.Task
		submissions      map[string]task.Submission
		scores           map[string]task.Score // {submissionID: Score}
		posts            map[string]social.Post
		likes            map[likeKey]struct{}
		comments         map[string]social.Comment
		messages         []message.Message
	}

	// DB holds every table. Writes are serialized with transactions: a transaction holds txMu
	// for its whole duration and rolls the tables back to a snapshot if it fails.
	DB struct {
		mu   sync.RWMutex // guards t
		txMu sync.Mutex
		t    tables
	}

	txKey struct{}
)

var _ core.TxRunner = (*DB)(nil)

func Open() *DB {
	return &DB{t: newTables()}
}

func newTables() tables {
	return tables{
		users:            make(map[string]user.User),
		groups:           make(map[string]group.Group),
		members:          make(map[memberKey]group.Member),
		joinRequests:     make(map[string]group.JoinRequest),
		creationRequests: make(map[string]group.CreationRequest),
		sessions:         make(map[string]assistant.Session),
		tasks:            make(map[string]task.Task),
		submissions:      make(map[string]task.Submission),
		scores:           make(map[string]task.Score),
		posts:            make(map[string]social.Post),
		likes:            make(map[likeKey]struct{}),
		comments:         make(map[string]social.Comment),
		messages:         make([]message.Message, 0),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

func (db *DB) snapshot() tables {
	t := newTables()
	for k, v := range db.t.users {
		t.users[k] = v
	}
	for k, v := range db.t.groups {
		t.groups[k] = v
	}
	for k, v := range db.t.members {
		t.members[k] = v
	}
	for k, v := range db.t.joinRequests {
		t.joinRequests[k] = v
	}
	for k, v := range db.t.creationRequests {
		t.creationRequests[k] = v
	}
	for k, v := range db.t.sessions {
		t.sessions[k] = v
	}
	for k, v := range db.t.tasks {
		t.tasks[k] = v
	}
	for k, v := range db.t.submissions {
		t.submissions[k] = v
	}
	for k, v := range db.t.scores {
		t.scores[k] = v
	}
	for k, v := range db.t.posts {
		t.posts[k] = v
	}
	for k, v := range db.t.likes {
		t.likes[k] = v
	}
	for k, v := range db.t.comments {
		t.comments[k] = v
	}
	t.messages = append(t.messages, db.t.messages...)
	return t
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) { // nested: join the outer transaction
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snap := db.snapshot()
	db.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.mu.Lock()
		db.t = snap
		db.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn with the tables locked for writing.
// Outside of a transaction, it waits for the running transaction, if any, to finish.
func (db *DB) write(ctx context.Context, fn func(t *tables) error) error {
	if !inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.t)
}

func (db *DB) read(fn func(t *tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&db.t)
}

func newID() string {
	return uuid.New().String()
}

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
