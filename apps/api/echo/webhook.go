package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/user"
	identitysvc "github.com/trezcool/tasksphere/services/identity"
)

const maxWebhookSize = 1 << 20

type webhookApi struct {
	verifier *identitysvc.Verifier
	userSvc  *user.Service
}

func registerWebhookAPI(g *echo.Group, deps *Deps) {
	api := webhookApi{
		verifier: deps.Identity,
		userSvc:  deps.UserSvc,
	}
	g.POST("/webhooks/identity", api.identity)
}

// Handlers

// identity mirrors the identity provider's user lifecycle into the directory.
func (api *webhookApi) identity(ctx echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookSize))
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}

	ev, err := api.verifier.Decode(payload, ctx.Request().Header)
	if err != nil {
		return errors.Wrap(err, "decoding identity event")
	}
	if err = api.userSvc.ApplyIdentityEvent(ctx.Request().Context(), ev); err != nil {
		return errors.Wrap(err, "applying identity event")
	}
	return ctx.NoContent(http.StatusNoContent)
}
