package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
)

var uploadKinds = map[string]core.UploadKind{
	string(core.UploadAvatar):     core.UploadAvatar,
	string(core.UploadTask):       core.UploadTask,
	string(core.UploadSubmission): core.UploadSubmission,
	string(core.UploadPost):       core.UploadPost,
}

type uploadApi struct {
	store   core.ObjectStore
	maxSize int64
}

func registerUploadAPI(g *echo.Group, deps *Deps) {
	api := uploadApi{
		store:   deps.Storage,
		maxSize: deps.Conf.Storage.MaxUploadSize,
	}
	g.POST("/uploads", api.upload)
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Handlers

// upload stores the multipart `file` as an attachment of the given `kind` and returns its public URL.
func (api *uploadApi) upload(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	kind, ok := uploadKinds[core.CleanString(ctx.FormValue("kind"), true /* lower */)]
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "kind must be one of avatar, task, submission or post"})
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	r := io.Reader(f)
	if api.maxSize > 0 {
		r = io.LimitReader(f, api.maxSize+1) // one more byte lets the store refuse it
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading uploaded file")
	}

	url, err := api.store.Save(ctx.Request().Context(), core.Upload{
		Kind:     kind,
		OwnerID:  actor.UserID,
		Filename: fh.Filename,
		Data:     data,
	})
	if err != nil {
		return errors.Wrap(err, "saving upload")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{URL: url})
}
