package tests

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/tasksphere/apps/api/echo"
	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/user"
	identitysvc "github.com/trezcool/tasksphere/services/identity"
	storesvc "github.com/trezcool/tasksphere/services/objectstore"
	"github.com/trezcool/tasksphere/testutil"
)

var (
	webhookSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("tasksphere-test-signing-secret!!"))

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testApp struct {
	*testutil.Env
	server *Server
}

func setup(t *testing.T) *testApp {
	t.Helper()
	env := testutil.NewEnv(t)
	env.Conf.Storage.Dir = t.TempDir()
	env.Conf.Storage.BaseURL = "http://localhost:8000/media"
	env.Conf.Storage.MaxUploadSize = 1 << 10

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	group.RegisterValidators(validate, translator)

	store, err := storesvc.NewDiskStore(env.Conf, env.Logger)
	require.NoError(t, err)
	verifier, err := identitysvc.NewVerifier(webhookSecret)
	require.NoError(t, err)

	server := NewServer("", make(chan os.Signal, 1), &Deps{
		Conf:         env.Conf,
		Logger:       env.Logger,
		Validate:     validate,
		Translator:   translator,
		Jobs:         env.Jobs,
		Storage:      store,
		Identity:     verifier,
		Resolver:     env.Resolver,
		UserSvc:      env.UserSvc,
		GroupSvc:     env.GroupSvc,
		TaskSvc:      env.TaskSvc,
		SocialSvc:    env.SocialSvc,
		MessageSvc:   env.MessageSvc,
		AssistantSvc: env.AssistantSvc,
	})
	return &testApp{Env: env, server: server}
}

// do serves the request and returns the recorder.
func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

// run serves tt and checks its response.
func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	rec := app.do(newAuthRequest(method, tt.path, tt.token, tt.body))
	checkCodeAndData(t, tt, rec)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type forbiddenErr struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData checks the response code, and the body if tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
