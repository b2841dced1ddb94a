package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/social"
	"github.com/trezcool/tasksphere/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return n, nil
}

func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a boolean"})
	}
	return &b, nil
}

func bindFeedFilter(ctx echo.Context) (social.FeedFilter, error) {
	var filter social.FeedFilter
	if val := ctx.QueryParam("before"); val != "" {
		before, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: "before", Error: "must be an RFC 3339 date-time"})
		}
		filter.Before = before
	}
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	isSuperAdmin, err := queryBool(ctx, "is_super_admin")
	if err != nil {
		return nil, err
	}
	filter := &user.QueryFilter{
		Search:       ctx.QueryParam("search"),
		IsSuperAdmin: isSuperAdmin,
	}
	filter.Clean()
	return filter, nil
}
