package core

import "context"

// UploadKind tells the object store what an upload is used for.
type UploadKind string

const (
	UploadAvatar     UploadKind = "avatar"
	UploadTask       UploadKind = "task"
	UploadSubmission UploadKind = "submission"
	UploadPost       UploadKind = "post"
)

type Upload struct {
	Kind     UploadKind
	OwnerID  string
	Filename string
	Data     []byte
}

// ObjectStore stores binary attachments and returns their public URL.
type ObjectStore interface {
	Save(ctx context.Context, upload Upload) (string, error)
}
