package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/message"
)

type messageApi struct {
	svc      *message.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, deps *Deps) {
	api := messageApi{
		svc:      deps.MessageSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/messages")
	mg.GET("/unread", api.unread)
	mg.GET("/:userId", api.conversation)
	mg.POST("/:userId", api.send)
}

// Handlers

func (api *messageApi) unread(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	counts, err := api.svc.UnreadCounts(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, counts)
}

// conversation lists the latest messages exchanged with a user, and marks theirs read.
func (api *messageApi) conversation(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	msgs, err := api.svc.Conversation(ctx.Request().Context(), actor, ctx.Param("userId"), limit)
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), actor, ctx.Param("userId"), data.Content)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}
