package auth

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/users/userstest"
)

type envelope struct {
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestMux(t *testing.T) (*http.ServeMux, *userstest.Store) {
	t.Helper()
	store := userstest.NewStore()
	dispatcher := httpapi.NewDispatcher(zap.NewNop())
	service := newTestService(store, &fakeUploader{})
	cookies := NewCookies(CookieConfig{Secure: true, SameSite: "none"}, testTokenConfig)
	handler := NewHandler(service, cookies)
	gate := NewGate(NewTokenVerifier(testTokenConfig, store), dispatcher)

	mux := http.NewServeMux()
	mux.Handle("POST /register", dispatcher.Handle(handler.Register, httpapi.WithBodyLimit(25<<20)))
	mux.Handle("POST /login", dispatcher.Handle(handler.Login))
	mux.Handle("POST /logout", gate.Require(dispatcher.Handle(handler.Logout)))
	mux.Handle("POST /refresh-token", dispatcher.Handle(handler.Refresh))
	mux.Handle("GET /me", gate.Require(dispatcher.Handle(func(r *http.Request) (httpapi.Response, error) {
		user, err := CurrentUser(r)
		if err != nil {
			return httpapi.Response{}, err
		}
		return httpapi.OK(user.Sanitize(), "ok"), nil
	})))
	return mux, store
}

func registerRequest(t *testing.T, fields map[string]string, withAvatar bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if withAvatar {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="avatar"; filename="avatar.png"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/register", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(mux http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	mux, _ := newTestMux(t)
	fields := map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"fullName": "Alice",
		"password": "secret1",
	}

	rec, env := serve(mux, registerRequest(t, fields, true))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.Equal(t, "User registered successfully", env.Message)

	rec, _ = serve(mux, jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = serve(mux, jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"secret1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Result().Cookies(), 2)
	for _, cookie := range rec.Result().Cookies() {
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		assert.Equal(t, "/", cookie.Path)
	}

	var login loginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	assert.Equal(t, "alice", login.User.Username)

	rec, env = serve(mux, jsonRequest(http.MethodPost, "/refresh-token", `{"refreshToken":"`+login.RefreshToken+`"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, login.AccessToken, rotated.AccessToken)

	rec, _ = serve(mux, jsonRequest(http.MethodPost, "/refresh-token", `{"refreshToken":"`+login.RefreshToken+`"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	mux, store := newTestMux(t)
	fields := map[string]string{"username": "alice", "email": "alice@x.com", "fullName": "Alice", "password": "secret1"}

	rec, _ := serve(mux, registerRequest(t, fields, true))
	require.Equal(t, http.StatusCreated, rec.Code)

	fields["email"] = "other@x.com"
	rec, env := serve(mux, registerRequest(t, fields, true))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with given username or email already exists", env.Message)
	assert.Equal(t, 1, store.Len())
}

func TestRegister_MissingAvatar(t *testing.T) {
	mux, _ := newTestMux(t)
	fields := map[string]string{"username": "alice", "email": "alice@x.com", "fullName": "Alice", "password": "secret1"}

	rec, env := serve(mux, registerRequest(t, fields, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Avatar file is required", env.Message)
}

func loginFor(t *testing.T, mux http.Handler) loginResponse {
	t.Helper()
	fields := map[string]string{"username": "alice", "email": "alice@x.com", "fullName": "Alice", "password": "secret1"}
	rec, _ := serve(mux, registerRequest(t, fields, true))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := serve(mux, jsonRequest(http.MethodPost, "/login", `{"email":"alice@x.com","password":"secret1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var login loginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login
}

func TestGate(t *testing.T) {
	mux, _ := newTestMux(t)
	login := loginFor(t, mux)

	rec, env := serve(mux, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized request", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec, _ = serve(mux, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec, _ = serve(mux, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: login.AccessToken})
	rec, _ = serve(mux, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.RefreshToken)
	rec, _ = serve(mux, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookiesAndRefreshToken(t *testing.T) {
	mux, _ := newTestMux(t)
	login := loginFor(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: login.AccessToken})
	rec, _ := serve(mux, req)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, cookie := range rec.Result().Cookies() {
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
	}

	req = httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: login.RefreshToken})
	rec, _ = serve(mux, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_FromCookieAndMissing(t *testing.T) {
	mux, _ := newTestMux(t)
	login := loginFor(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: login.RefreshToken})
	rec, _ := serve(mux, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Result().Cookies(), 2)

	rec, _ = serve(mux, httptest.NewRequest(http.MethodPost, "/refresh-token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite("lax"))
	assert.Equal(t, http.SameSiteDefaultMode, ParseSameSite(""))
}
