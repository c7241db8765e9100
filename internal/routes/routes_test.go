package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/authapi/internal/app"
	"github.com/templui/authapi/internal/config"
	"github.com/templui/authapi/internal/service"
)

type testServer struct {
	t         *testing.T
	handler   http.Handler
	uploadDir string
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		AppName:                  "Auth API",
		AppEnv:                   "test",
		CORSOrigins:              []string{"http://localhost:5173"},
		DBDriver:                 "sqlite",
		DBConnection:             filepath.Join(dir, "users.db") + "?_pragma=busy_timeout(5000)",
		JWTSecret:                "test-secret",
		JWTIssuer:                "authapi",
		JWTExpiry:                30 * time.Minute,
		BcryptCost:               4,
		TokenPasswordResetExpiry: time.Hour,
		ExposeResetToken:         true,
		ResetURLBase:             "http://localhost:5173",
		StorageDriver:            "local",
		UploadDir:                filepath.Join(dir, "profile_pics"),
		MaxUploadSize:            1 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{t: t, handler: SetupRoutes(a), uploadDir: cfg.UploadDir}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (s *testServer) postJSON(path string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) authed(method, path, token string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.do(req)
}

func (s *testServer) signup(username, email, password string) (string, string) {
	s.t.Helper()
	rec, body := s.postJSON("/api/signup", map[string]string{"username": username, "email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	user := body["user"].(map[string]any)
	return body["access_token"].(string), user["id"].(string)
}

type formFile struct {
	name    string
	content []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestScenario(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.postJSON("/api/signup", map[string]string{"username": "alice", "email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "profile_pic")
	assert.NotContains(t, user, "password_hash")

	rec, body = s.postJSON("/api/signup", map[string]string{"username": "bob", "email": "a@x.com", "password": "pw2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", body["detail"])

	rec, _ = s.postJSON("/api/login", map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, wrongPassword := s.postJSON("/api/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec, unknownEmail := s.postJSON("/api/login", map[string]string{"email": "nobody@x.com", "password": "pw1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrongPassword, unknownEmail)

	rec, body = s.postJSON("/api/forgot-password", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "http://localhost:5173/reset-password/"+token, body["reset_link"])
	assert.Equal(t, "Reset token generated (email not sent)", body["message"])

	rec, body = s.postJSON("/api/reset-password", map[string]string{"token": token, "password": "pw3", "confirm_password": "pw3"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset successfully", body["message"])

	rec, _ = s.postJSON("/api/login", map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.postJSON("/api/login", map[string]string{"email": "a@x.com", "password": "pw3"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.postJSON("/api/reset-password", map[string]string{"token": token, "password": "pw4", "confirm_password": "pw4"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid token", body["detail"])
}

func TestResetPassword_Mismatch(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.postJSON("/api/reset-password", map[string]string{"token": "x", "password": "a", "confirm_password": "b"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Passwords do not match", body["detail"])
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.postJSON("/api/forgot-password", map[string]string{"email": "nobody@x.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Email not found", body["detail"])
}

func TestForgotPassword_TokenHiddenByDefault(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.ExposeResetToken = false })
	s.signup("alice", "a@x.com", "pw1")

	rec, body := s.postJSON("/api/forgot-password", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "Reset token generated (email not sent)"}, body)
	assert.NotContains(t, rec.Body.String(), "reset-password/")
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{not json"))
	rec, body := s.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", body["detail"])
}

func TestGetUser(t *testing.T) {
	s := newTestServer(t)
	token, id := s.signup("alice", "a@x.com", "pw1")
	otherToken, _ := s.signup("bob", "b@x.com", "pw1")

	rec, body := s.authed(http.MethodGet, "/api/user/"+id, otherToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Contains(t, body, "profile_pic")
	assert.Nil(t, body["profile_pic"])

	rec, body = s.authed(http.MethodGet, "/api/user/missing", token, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", body["detail"])

	rec, body = s.authed(http.MethodGet, "/api/user/"+id, "garbage", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", body["detail"])

	req := httptest.NewRequest(http.MethodGet, "/api/user/"+id, nil)
	rec, _ = s.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("alice", "a@x.com", "pw1")
	s.signup("bob", "b@x.com", "pw1")

	t.Run("username taken", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"username": "bob"}, nil)
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already taken", resp["detail"])
	})

	t.Run("password without current", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"password": "pw2"}, nil)
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Current password required to change password", resp["detail"])
	})

	t.Run("wrong current password", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"password": "pw2", "current_password": "nope"}, nil)
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Current password is incorrect", resp["detail"])
	})

	t.Run("not an image", func(t *testing.T) {
		body, ct := multipartBody(t, nil, &formFile{name: "me.png", content: []byte("hello world")})
		rec, _ := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var firstPic string
	t.Run("upload avatar", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"username": ""}, &formFile{name: "me.png", content: pngBytes})
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Profile updated", resp["message"])
		assert.NotContains(t, resp, "access_token")

		user := resp["user"].(map[string]any)
		assert.Equal(t, "alice", user["username"])
		firstPic = user["profile_pic"].(string)

		rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/static/profile_pics/"+firstPic, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, pngBytes, rec.Body.Bytes())
	})

	t.Run("replace avatar leaves one file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, &formFile{name: "me2.png", content: pngBytes})
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusOK, rec.Code)

		pic := resp["user"].(map[string]any)["profile_pic"].(string)
		assert.NotEqual(t, firstPic, pic)

		entries, err := os.ReadDir(s.uploadDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, pic, entries[0].Name())
	})

	t.Run("rename issues new token", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"username": "alice2"}, nil)
		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusOK, rec.Code)
		newToken, _ := resp["access_token"].(string)
		require.NotEmpty(t, newToken)
		assert.Equal(t, "bearer", resp["token_type"])

		// The old token named the old username.
		rec, _ = s.authed(http.MethodDelete, "/api/user/me/photo", token, nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		token = newToken
	})

	t.Run("delete photo", func(t *testing.T) {
		rec, resp := s.authed(http.MethodDelete, "/api/user/me/photo", token, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Profile photo deleted", resp["message"])

		entries, err := os.ReadDir(s.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		rec, resp = s.authed(http.MethodDelete, "/api/user/me/photo", token, nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No profile photo to delete", resp["detail"])
	})

	t.Run("delete_pic flag with urlencoded form", func(t *testing.T) {
		body, ct := multipartBody(t, nil, &formFile{name: "me.png", content: pngBytes})
		rec, _ := s.authed(http.MethodPut, "/api/user/me", token, body, ct)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, resp := s.authed(http.MethodPut, "/api/user/me", token, bytes.NewBufferString("delete_pic=true"), "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, resp["user"].(map[string]any)["profile_pic"])
	})
}

func TestHomeAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Auth API", body["message"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, body = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = s.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["detail"])

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/static/profile_pics/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no directory listing")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec, _ := s.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// bucketStorage stands in for a remote object store.
type bucketStorage struct{}

func (bucketStorage) Save(context.Context, string, string, io.Reader) error { return nil }
func (bucketStorage) Delete(context.Context, string) error                  { return nil }
func (bucketStorage) URL(name string) string {
	return "https://avatars.example.com/profile_pics/" + name
}

func TestRemoteAvatarsRedirect(t *testing.T) {
	remote := bucketStorage{}
	handler := SetupRoutes(&app.App{
		Cfg:           &config.Config{AppName: "Auth API"},
		Storage:       remote,
		AvatarService: service.NewAvatarService(remote),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/profile_pics/abc.png", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://avatars.example.com/profile_pics/abc.png", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/profile_pics/a/b.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
