package tests

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/tasksphere/apps/api/echo"
	storesvc "github.com/trezcool/tasksphere/services/objectstore"
)

func newUploadRequest(t *testing.T, token, kind, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if kind != "" {
		require.NoError(t, w.WriteField("kind", kind))
	}
	if content != nil {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 128, B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func Test_uploadApi(t *testing.T) {
	app := setup(t)
	ada := app.CreateUser(t, "user_ada", "ada@test.cd", "Ada", false)
	token := getToken(t, app.Conf, ada)
	notes := []byte("Newton's second law: F = ma\n")

	tests := []struct {
		name     string
		kind     string
		filename string
		content  []byte
		wantCode int
		wantData []byte
	}{
		{
			name: "unknown kind", kind: "secret", filename: "notes.txt", content: notes,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"kind": "kind must be one of avatar, task, submission or post"}),
		},
		{
			name: "missing file", kind: "task",
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		},
		{
			name: "empty file", kind: "task", filename: "notes.txt", content: []byte{},
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: storesvc.ErrEmptyUpload.Error()}),
		},
		{
			name: "too large", kind: "submission", filename: "essay.txt", content: bytes.Repeat([]byte("a"), 2<<10),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: storesvc.ErrTooLarge.Error()}),
		},
		{
			name: "avatars are images", kind: "avatar", filename: "me.txt", content: notes,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: storesvc.ErrUnsupportedType.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newUploadRequest(t, token, tt.kind, tt.filename, tt.content))
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := app.do(newUploadRequest(t, "", "task", "notes.txt", notes))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("document", func(t *testing.T) {
		rec := app.do(newUploadRequest(t, token, " Task ", "notes.txt", notes))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp UploadResponse
		unmarshall(t, rec, &resp)
		prefix := app.Conf.Storage.BaseURL + "/task/" + ada.ID + "/"
		require.True(t, strings.HasPrefix(resp.URL, prefix), resp.URL)
		assert.True(t, strings.HasSuffix(resp.URL, ".txt"), resp.URL)

		stored, err := os.ReadFile(filepath.Join(app.Conf.Storage.Dir, "task", ada.ID, strings.TrimPrefix(resp.URL, prefix)))
		require.NoError(t, err)
		assert.Equal(t, notes, stored)
	})

	t.Run("avatar", func(t *testing.T) {
		rec := app.do(newUploadRequest(t, token, "avatar", "me.png", pngBytes(t)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp UploadResponse
		unmarshall(t, rec, &resp)
		assert.True(t, strings.HasSuffix(resp.URL, ".jpg"), "avatars are re-encoded: %s", resp.URL)
	})
}
