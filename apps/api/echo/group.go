package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/group"
)

type groupApi struct {
	svc      *group.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, deps *Deps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups")
	gg.GET("", api.query)
	gg.POST("", api.create)
	gg.GET("/mine", api.mine)

	// detail endpoints
	dg := gg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/members", api.members)
	dg.PUT("/members/:userId", api.changeRole)
	dg.DELETE("/members/:userId", api.removeMember)
	dg.GET("/join", api.joinStatus)
	dg.POST("/join", api.requestJoin)
	dg.DELETE("/join", api.withdrawJoin)
	dg.GET("/requests", api.joinRequests)

	jg := g.Group("/join-requests/:id")
	jg.POST("/approve", api.approveJoin)
	jg.POST("/reject", api.rejectJoin)

	cg := g.Group("/group-requests")
	cg.GET("", api.creationRequests)
	cg.POST("", api.submitCreationRequest)
	cg.POST("/:id/approve", api.approveCreationRequest)
	cg.POST("/:id/reject", api.rejectCreationRequest)
}

func (api *groupApi) bindResponse(ctx echo.Context) (group.Response, error) {
	var data group.Response
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to Response")
	}
	return data, data.Validate(api.validate)
}

// Handlers

func (api *groupApi) query(ctx echo.Context) error {
	filter := &group.QueryFilter{Search: ctx.QueryParam("search")}
	filter.Clean()

	groups, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data group.NewGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) mine(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	groups, err := api.svc.ListForUser(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing user groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding group by ID")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) members(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Members(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) changeRole(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data group.RoleUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mbr, err := api.svc.ChangeMemberRole(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("userId"), data.Role)
	if err != nil {
		return errors.Wrap(err, "changing member role")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

// removeMember removes a member from the group; removing oneself is leaving.
func (api *groupApi) removeMember(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveMember(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("userId")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) joinStatus(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	status, err := api.svc.JoinStatus(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting join status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *groupApi) requestJoin(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.RequestJoin(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "requesting to join")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *groupApi) withdrawJoin(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.WithdrawJoin(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "withdrawing join request")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) joinRequests(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	reqs, err := api.svc.PendingJoinRequests(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing join requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *groupApi) approveJoin(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindResponse(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.ApproveJoin(ctx.Request().Context(), actor, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "approving join request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *groupApi) rejectJoin(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindResponse(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.RejectJoin(ctx.Request().Context(), actor, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "rejecting join request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *groupApi) creationRequests(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	status := group.RequestStatus(core.CleanString(ctx.QueryParam("status"), true /* lower */))
	if status != "" && !status.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "status must be one of pending, approved or rejected"})
	}

	reqs, err := api.svc.CreationRequests(ctx.Request().Context(), actor, status)
	if err != nil {
		return errors.Wrap(err, "listing group creation requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *groupApi) submitCreationRequest(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data group.NewCreationRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCreationRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.SubmitCreationRequest(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "submitting group creation request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *groupApi) approveCreationRequest(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindResponse(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.ApproveCreationRequest(ctx.Request().Context(), actor, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "approving group creation request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *groupApi) rejectCreationRequest(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindResponse(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.RejectCreationRequest(ctx.Request().Context(), actor, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "rejecting group creation request")
	}
	return ctx.JSON(http.StatusOK, req)
}
