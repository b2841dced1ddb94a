package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/user"
)

type userApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, deps *Deps) {
	api := userApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/me")
	mg.GET("", api.me)
	mg.PUT("", api.updateMe)
	mg.POST("/sync", api.sync)
	mg.GET("/role", api.role)

	ag := g.Group("/admin/users", superAdminMiddleware)
	ag.GET("", api.query)
	ag.PUT("/:id/super-admin", api.setSuperAdmin)
}

type (
	meResponse struct {
		user.User
		IsProfileComplete bool        `json:"is_profile_complete"`
		Role              access.Role `json:"role"`
		Redirect          string      `json:"redirect"`
	}

	roleResponse struct {
		Role     access.Role `json:"role"`
		Redirect string      `json:"redirect"`
	}

	SuperAdminRequest struct {
		IsSuperAdmin bool `json:"is_super_admin"`
	}
)

func (api *userApi) respondMe(ctx echo.Context, actor access.Actor, usr user.User) error {
	actor.Refresh()
	role := actor.LandingRole(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, meResponse{
		User:              usr,
		IsProfileComplete: usr.IsProfileComplete(),
		Role:              role,
		Redirect:          access.DefaultPath(role),
	})
}

// Handlers

func (api *userApi) me(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Get(ctx.Request().Context(), actor.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return api.respondMe(ctx, actor, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), actor.UserID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return api.respondMe(ctx, actor, usr)
}

func (api *userApi) sync(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Sync(ctx.Request().Context(), actor.Principal)
	if err != nil {
		return errors.Wrap(err, "syncing user")
	}
	return api.respondMe(ctx, actor, usr)
}

func (api *userApi) role(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	role := actor.LandingRole(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, roleResponse{Role: role, Redirect: access.DefaultPath(role)})
}

func (api *userApi) query(ctx echo.Context) error {
	filter, err := bindUserFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) setSuperAdmin(ctx echo.Context) error {
	var data SuperAdminRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SuperAdminRequest")
	}

	rctx := ctx.Request().Context()
	usr, err := api.svc.Get(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	// Say No to Suicide! a super admin cannot demote themselves
	if actor, _ := getContextActor(ctx); usr.ID == actor.UserID && !data.IsSuperAdmin {
		return errors.Wrap(errSelfDemotion, "revoking own super admin")
	}

	usr, err = api.svc.SetSuperAdmin(rctx, usr.Email, data.IsSuperAdmin)
	if err != nil {
		return errors.Wrap(err, "setting super admin")
	}
	return ctx.JSON(http.StatusOK, usr)
}
