package echoapi

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/access"
)

// translatorMiddleware exposes the validation translator to the error handler.
func translatorMiddleware(translator ut.Translator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctx.Set(translatorContextKey, translator)
			return next(ctx)
		}
	}
}

func superAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		if err = access.RequireSuperAdmin(ctx.Request().Context(), actor); err != nil {
			return errors.Wrap(err, "checking super admin")
		}
		return next(ctx)
	}
}
