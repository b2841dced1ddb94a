package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, core.ErrUnauthenticated.Error())
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errSelfDemotion = core.NewConflictError("you cannot revoke your own super admin rights")

	appErrorStatuses = map[core.ErrorCode]int{
		core.CodeNotFound:    http.StatusNotFound,
		core.CodeConflict:    http.StatusConflict,
		core.CodeForbidden:   http.StatusForbidden,
		core.CodeInvalid:     http.StatusBadRequest,
		core.CodeUnavailable: http.StatusServiceUnavailable,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.AppError:
			code = appErrorStatuses[origErr.Code]
			message = origErr.Message
			if origErr == core.ErrUnauthenticated {
				code = http.StatusUnauthorized
			} else if origErr.Code == core.CodeForbidden {
				if redirect, ok := landingPath(ctx); ok {
					message = echo.Map{"error": origErr.Message, "redirect": redirect}
				}
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(contextTranslator(ctx))
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var p core.Principal
			if actor, ok := contextActor(ctx); ok {
				p = actor.Principal
			}
			logger.Error(msg, errors.Wrap(err, msg), p)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// landingPath is where a forbidden caller should be sent: the default area of its landing role.
func landingPath(ctx echo.Context) (string, bool) {
	actor, ok := contextActor(ctx)
	if !ok {
		return "", false
	}
	actor.Refresh()
	return access.DefaultPath(actor.LandingRole(ctx.Request().Context())), true
}

func contextTranslator(ctx echo.Context) ut.Translator {
	translator, _ := ctx.Get(translatorContextKey).(ut.Translator)
	return translator
}
