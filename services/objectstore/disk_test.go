package storesvc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tasksphere/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newStore(t *testing.T, maxSize int64) (core.ObjectStore, string) {
	dir := t.TempDir()
	conf := &core.Config{Storage: core.StorageConfig{Dir: dir, BaseURL: "http://localhost:8000/media/", MaxUploadSize: maxSize}}
	store, err := NewDiskStore(conf, nopLogger{})
	require.NoError(t, err)
	return store, dir
}

func localPath(dir, url string) string {
	return filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "http://localhost:8000/media/")))
}

func TestDiskStore_Save_avatar(t *testing.T) {
	store, dir := newStore(t, 1<<20)

	url, err := store.Save(context.Background(), core.Upload{
		Kind: core.UploadAvatar, OwnerID: "user_1", Filename: "me.png", Data: pngBytes(t, 400, 300),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8000/media/avatar/user_1/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	img, err := imaging.Open(localPath(dir, url))
	require.NoError(t, err)
	assert.Equal(t, avatarSize, img.Bounds().Dx())
	assert.Equal(t, avatarSize, img.Bounds().Dy())
}

func TestDiskStore_Save_document(t *testing.T) {
	store, dir := newStore(t, 1<<20)

	data := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	url, err := store.Save(context.Background(), core.Upload{
		Kind: core.UploadSubmission, OwnerID: "user_1", Filename: "essay.pdf", Data: data,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	saved, err := os.ReadFile(localPath(dir, url))
	require.NoError(t, err)
	assert.Equal(t, data, saved)
}

func TestDiskStore_Save_errors(t *testing.T) {
	store, _ := newStore(t, 1<<10)
	img := pngBytes(t, 2, 2)

	tests := []struct {
		name    string
		upload  core.Upload
		wantErr error
	}{
		{name: "empty", upload: core.Upload{Kind: core.UploadPost, OwnerID: "u"}, wantErr: ErrEmptyUpload},
		{name: "too large", upload: core.Upload{Kind: core.UploadTask, OwnerID: "u", Data: bytes.Repeat([]byte("a"), 1<<10+1)}, wantErr: ErrTooLarge},
		{name: "bad owner", upload: core.Upload{Kind: core.UploadPost, OwnerID: "../etc", Data: img}, wantErr: ErrInvalidOwner},
		{name: "unknown kind", upload: core.Upload{Kind: "misc", OwnerID: "u", Data: img}, wantErr: ErrUnsupportedType},
		{name: "text as avatar", upload: core.Upload{Kind: core.UploadAvatar, OwnerID: "u", Data: []byte("hello")}, wantErr: ErrUnsupportedType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Save(context.Background(), tc.upload)
			assert.Equal(t, tc.wantErr, err)
		})
	}
}
