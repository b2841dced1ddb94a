package core_test

import (
	"net/mail"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core"
	appfs "github.com/trezcool/tasksphere/fs"
)

type responseData struct {
	Name      string
	Kind      string
	GroupName string
	GroupID   string
	Note      string
}

func TestParseEmailTemplates(t *testing.T) {
	t.Run("missing base layout", func(t *testing.T) {
		fsys := fstest.MapFS{"email/hello.txt": {Data: []byte(`{{define "content"}}hi{{end}}`)}}
		assert.Error(t, core.ParseEmailTemplates(fsys, "email", "http://localhost:3000", true))
	})

	t.Run("empty dir", func(t *testing.T) {
		fsys := fstest.MapFS{"email/_base.txt": {Data: []byte(`{{template "content" .}}`)}}
		assert.Error(t, core.ParseEmailTemplates(fsys, "email", "http://localhost:3000", true))
	})

	t.Run("embedded templates", func(t *testing.T) {
		require.NoError(t, core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, "http://localhost:3000", true))

		for _, name := range []string{"request_approved", "request_rejected"} {
			msg := &core.EmailMessage{
				To:           []mail.Address{{Name: "Ada", Address: "ada@test.cd"}},
				Subject:      "Your request",
				TemplateName: name,
				TemplateData: responseData{Name: "Ada", Kind: "request to join", GroupName: "Physics 101", GroupID: "g1", Note: "see you"},
			}
			require.NoError(t, msg.Render(), name)
			assert.True(t, msg.HasContent(), name)
			assert.Contains(t, msg.TextContent, "Hi Ada", name)
			assert.Contains(t, msg.TextContent, "Physics 101", name)
			assert.Contains(t, msg.HTMLContent, "Physics 101", name)
			assert.Contains(t, msg.TextContent, "http://localhost:3000", name)
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &core.EmailMessage{TemplateName: "nope"}
		assert.Error(t, msg.Render())
	})
}
