package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/user"
)

const (
	tokenContextKey      = "userToken"
	actorContextKey      = "actor"
	translatorContextKey = "translator"
)

// Claims represents the session claims issued by the identity provider.
type Claims struct {
	jwt.StandardClaims
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

func (c Claims) Principal() core.Principal {
	return core.Principal{
		UserID:    c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		AvatarURL: c.Picture,
	}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.Identity.SigningKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// GetUserClaims returns session claims for usr, as the identity provider would issue them.
func GetUserClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.Identity.Issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(time.Hour).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:   usr.Email,
		Name:    usr.FullName.String,
		Picture: usr.AvatarURL.String,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.Identity.SigningKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextActor(ctx echo.Context) (access.Actor, bool) {
	actor, ok := ctx.Get(actorContextKey).(access.Actor)
	return actor, ok
}

// getContextActor returns the actor of the request, set by principalMiddleware.
func getContextActor(ctx echo.Context) (access.Actor, error) {
	if actor, ok := contextActor(ctx); ok {
		return actor, nil
	}
	return access.Actor{}, core.ErrUnauthenticated
}

// principalMiddleware turns the verified claims into the request's access.Actor.
// The first request of an unknown principal creates its directory record before going on;
// known principals are synced in the background.
func principalMiddleware(deps *Deps) echo.MiddlewareFunc {
	issuer := deps.Conf.Identity.Issuer

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Subject == "" || (issuer != "" && !claims.VerifyIssuer(issuer, true)) {
				return errInvalidToken
			}

			p := claims.Principal()
			rctx := ctx.Request().Context()
			if _, err = deps.UserSvc.Get(rctx, p.UserID); err != nil {
				if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
				if _, err = deps.UserSvc.Sync(rctx, p); err != nil {
					return errors.Wrap(err, "syncing new user")
				}
			} else {
				deps.Jobs.Dispatch("user.sync", func(jctx context.Context) error {
					_, err := deps.UserSvc.Sync(jctx, p)
					return err
				})
			}

			ctx.Set(actorContextKey, deps.Resolver.Actor(p))
			return next(ctx)
		}
	}
}
