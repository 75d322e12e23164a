package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandle_Success(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	handler := d.Handle(func(r *http.Request) (Response, error) {
		resp := Created(map[string]string{"id": "1"}, "created")
		resp.Cookies = []*http.Cookie{{Name: "accessToken", Value: "tok"}}
		return resp, nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 201, body["status"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, map[string]any{"id": "1"}, body["data"])
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "accessToken=tok")
}

func TestHandle_AppError(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	handler := d.Handle(func(r *http.Request) (Response, error) {
		return Response{}, apperror.Conflict("User with given username or email already exists")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "User with given username or email already exists", body["message"])
	_, hasData := body["data"]
	assert.False(t, hasData)
}

func TestHandle_InternalErrorIsHidden(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	handler := d.Handle(func(r *http.Request) (Response, error) {
		return Response{}, errors.New("pq: connection reset by peer")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Equal(t, "internal server error", decodeBody(t, rec)["message"])
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "alice", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	assert.True(t, apperror.IsKind(DecodeJSON(req, &dst), apperror.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.True(t, apperror.IsKind(DecodeJSON(req, &dst), apperror.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeOptionalJSON(req, &dst))
}

func TestHandle_BodyLimit(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	handler := d.Handle(func(r *http.Request) (Response, error) {
		var dst map[string]any
		if err := DecodeJSON(r, &dst); err != nil {
			return Response{}, err
		}
		return OK(nil, "ok"), nil
	}, WithBodyLimit(8))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a very long value"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decodeBody(t, rec)["message"])
}
