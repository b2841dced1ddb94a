// Package storesvc stores uploaded attachments on the local disk and serves them as static files.
package storesvc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
)

const avatarSize = 256

var (
	// errors
	ErrEmptyUpload     = core.NewInvalidError("the uploaded file is empty")
	ErrTooLarge        = core.NewInvalidError("the uploaded file is too large")
	ErrUnsupportedType = core.NewInvalidError("this file type is not allowed")
	ErrInvalidOwner    = core.NewInvalidError("invalid upload owner")

	imageTypes    = []string{"image/jpeg", "image/png", "image/gif"}
	documentTypes = []string{
		"image/jpeg", "image/png", "image/gif", "image/webp",
		"application/pdf", "text/plain", "application/zip",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
	allowedTypes = map[core.UploadKind][]string{
		core.UploadAvatar:     imageTypes,
		core.UploadPost:       imageTypes,
		core.UploadTask:       documentTypes,
		core.UploadSubmission: documentTypes,
	}
)

type diskStore struct {
	dir     string
	baseURL string
	maxSize int64
	logger  core.Logger
}

var _ core.ObjectStore = (*diskStore)(nil)

func NewDiskStore(conf *core.Config, logger core.Logger) (core.ObjectStore, error) {
	if err := os.MkdirAll(conf.Storage.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &diskStore{
		dir:     conf.Storage.Dir,
		baseURL: strings.TrimRight(conf.Storage.BaseURL, "/"),
		maxSize: conf.Storage.MaxUploadSize,
		logger:  logger,
	}, nil
}

func (s *diskStore) Save(ctx context.Context, upload core.Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", ErrEmptyUpload
	}
	if s.maxSize > 0 && int64(len(upload.Data)) > s.maxSize {
		return "", ErrTooLarge
	}
	if upload.OwnerID == "" || strings.ContainsAny(upload.OwnerID, `/\.`) {
		return "", ErrInvalidOwner
	}
	allowed, ok := allowedTypes[upload.Kind]
	if !ok {
		return "", ErrUnsupportedType
	}

	mtype := mimetype.Detect(upload.Data)
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		s.logger.Debug(fmt.Sprintf("refusing %s upload %q of type %s", upload.Kind, upload.Filename, mtype.String()))
		return "", ErrUnsupportedType
	}

	data, ext := upload.Data, mtype.Extension()
	if upload.Kind == core.UploadAvatar {
		var err error
		if data, err = squareThumbnail(data); err != nil {
			return "", ErrUnsupportedType
		}
		ext = ".jpg"
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + ext
	rel := path.Join(string(upload.Kind), upload.OwnerID, name)
	fp := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload directory")
	}
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing upload")
	}
	return s.baseURL + "/" + rel, nil
}

func squareThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	thumb := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, errors.Wrap(err, "encoding image")
	}
	return buf.Bytes(), nil
}
