package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/assistant"
)

type assistantApi struct {
	svc      *assistant.Service
	validate *validator.Validate
}

func registerAssistantAPI(g *echo.Group, deps *Deps) {
	api := assistantApi{
		svc:      deps.AssistantSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/assistant")
	ag.POST("/intake", api.startIntake)
	ag.GET("/intake/:id", api.getIntake)
	ag.POST("/intake/:id/answers", api.answerIntake)
	ag.POST("/chat", api.chat)

	g.GET("/groups/:id/assistant/context", api.groupContext)
	g.POST("/groups/:id/assistant", api.askGroup)
}

type ReplyResponse struct {
	Reply string `json:"reply"`
}

// Handlers

func (api *assistantApi) startIntake(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	step, err := api.svc.StartIntake(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "starting intake")
	}
	return ctx.JSON(http.StatusCreated, step)
}

func (api *assistantApi) getIntake(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	step, err := api.svc.GetIntake(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting intake")
	}
	return ctx.JSON(http.StatusOK, step)
}

func (api *assistantApi) answerIntake(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data assistant.Answer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	step, err := api.svc.AnswerIntake(ctx.Request().Context(), actor, ctx.Param("id"), data.Answer)
	if err != nil {
		return errors.Wrap(err, "answering intake")
	}
	return ctx.JSON(http.StatusOK, step)
}

func (api *assistantApi) chat(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data assistant.Prompt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Prompt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	reply, err := api.svc.Chat(ctx.Request().Context(), actor, data.Prompt)
	if err != nil {
		return errors.Wrap(err, "chatting with assistant")
	}
	return ctx.JSON(http.StatusOK, ReplyResponse{Reply: reply})
}

func (api *assistantApi) groupContext(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	gc, err := api.svc.GroupContext(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building group context")
	}
	return ctx.JSON(http.StatusOK, gc)
}

func (api *assistantApi) askGroup(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data assistant.Ask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Ask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	reply, err := api.svc.AskGroup(ctx.Request().Context(), actor, ctx.Param("id"), data.Messages)
	if err != nil {
		return errors.Wrap(err, "asking group assistant")
	}
	return ctx.JSON(http.StatusOK, ReplyResponse{Reply: reply})
}
