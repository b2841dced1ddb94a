package tests

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/trezcool/tasksphere/core/user"
	identitysvc "github.com/trezcool/tasksphere/services/identity"
)

const identityPath = "/v1/webhooks/identity"

func newWebhookRequest(t *testing.T, payload []byte, sign bool) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	wh, err := svix.NewWebhook(webhookSecret)
	require.NoError(t, err)

	now := time.Now()
	req := httptest.NewRequest(http.MethodPost, identityPath, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", "msg_"+strconv.FormatInt(now.UnixNano(), 10))
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	sig := "v1,Zm9yZ2Vk"
	if sign {
		sig, err = wh.Sign(req.Header.Get("svix-id"), now, payload)
		require.NoError(t, err)
	}
	req.Header.Set("svix-signature", sig)
	return req, httptest.NewRecorder()
}

func Test_webhookApi_identity(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	created := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_grace",
			"first_name": "Grace",
			"last_name": "Hopper",
			"primary_email_address_id": "idn_1",
			"email_addresses": [{"id": "idn_1", "email_address": "Grace@Test.cd"}]
		}
	}`)

	t.Run("forged signature", func(t *testing.T) {
		rec := app.do(newWebhookRequest(t, created, false))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: identitysvc.ErrInvalidSignature.Error()}),
		}, rec)
		_, err := app.UserSvc.Get(ctx, "user_grace")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("invalid payload", func(t *testing.T) {
		rec := app.do(newWebhookRequest(t, []byte(`{"type": "user.created", "data": {}}`), true))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: identitysvc.ErrInvalidPayload.Error()}),
		}, rec)
	})

	t.Run("user created", func(t *testing.T) {
		rec := app.do(newWebhookRequest(t, created, true))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		usr, err := app.UserSvc.Get(ctx, "user_grace")
		require.NoError(t, err)
		assert.Equal(t, "grace@test.cd", usr.Email)
		assert.Equal(t, "Grace Hopper", usr.FullName.String)
	})

	t.Run("unknown events are ignored", func(t *testing.T) {
		rec := app.do(newWebhookRequest(t, []byte(`{"type": "session.created", "data": {"id": "sess_1"}}`), true))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("user deleted", func(t *testing.T) {
		rec := app.do(newWebhookRequest(t, []byte(`{"type": "user.deleted", "data": {"id": "user_grace", "deleted": true}}`), true))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := app.UserSvc.Get(ctx, "user_grace")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}
