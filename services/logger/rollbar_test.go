package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tasksphere/core"
)

func TestRollbarLogger(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		logFn   func(l *RollbarLogger)
		want    []string
		notWant []string
	}{
		{
			name:    "debug hidden",
			logFn:   func(l *RollbarLogger) { l.Debug("noisy details") },
			notWant: []string{"noisy details"},
		},
		{
			name:  "debug shown in debug mode",
			debug: true,
			logFn: func(l *RollbarLogger) { l.Debug("noisy details") },
			want:  []string{"[debug] noisy details"},
		},
		{
			name: "principal and error",
			logFn: func(l *RollbarLogger) {
				l.Error("syncing user", errors.New("boom"), core.Principal{UserID: "user_ada", Email: "ada@test.cd"})
			},
			want:    []string{"[error] syncing user", "boom", "user: user_ada"},
			notWant: []string{"ada@test.cd"},
		},
		{
			name:  "extras",
			logFn: func(l *RollbarLogger) { l.Warn("slow job", map[string]interface{}{"job": "user.sync"}) },
			want:  []string{"[warning] slow job", "user.sync"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			conf := &core.Config{Debug: tc.debug, TestMode: true}
			l := NewRollbarLogger(log.New(&buf, "", 0), conf)

			tc.logFn(l)

			for _, w := range tc.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, nw := range tc.notWant {
				assert.NotContains(t, buf.String(), nw)
			}
		})
	}
}
