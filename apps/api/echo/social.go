package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/social"
)

type socialApi struct {
	svc      *social.Service
	validate *validator.Validate
}

func registerSocialAPI(g *echo.Group, deps *Deps) {
	api := socialApi{
		svc:      deps.SocialSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/posts")
	pg.GET("", api.feed)
	pg.POST("", api.createPost)
	pg.DELETE("/:id", api.destroyPost)
	pg.POST("/:id/like", api.toggleLike)
	pg.GET("/:id/comments", api.comments)
	pg.POST("/:id/comments", api.comment)

	g.DELETE("/comments/:id", api.destroyComment)
}

// Handlers

func (api *socialApi) feed(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	filter, err := bindFeedFilter(ctx)
	if err != nil {
		return err
	}
	posts, err := api.svc.Feed(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying feed")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *socialApi) createPost(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data social.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	post, err := api.svc.CreatePost(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *socialApi) destroyPost(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePost(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *socialApi) toggleLike(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	post, err := api.svc.ToggleLike(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling like")
	}
	return ctx.JSON(http.StatusOK, post)
}

func (api *socialApi) comments(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	comments, err := api.svc.Comments(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *socialApi) comment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data social.NewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Comment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "commenting")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *socialApi) destroyComment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteComment(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
