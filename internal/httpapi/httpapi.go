// Package httpapi adapts handlers that return (Response, error) to
// http.Handler and owns the JSON envelope written to clients.
//
// Success bodies are {status, data, message}; failures are {status, message}.
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/observability"
)

const defaultBodyLimit = 1 << 20

type Response struct {
	Status  int
	Data    any
	Message string
	Cookies []*http.Cookie
}

func OK(data any, message string) Response {
	return Response{Status: http.StatusOK, Data: data, Message: message}
}

func Created(data any, message string) Response {
	return Response{Status: http.StatusCreated, Data: data, Message: message}
}

// HandlerFunc is the shape every endpoint implements. A non-nil error aborts
// the request and Response is ignored.
type HandlerFunc func(r *http.Request) (Response, error)

type successEnvelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type Dispatcher struct {
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

type handleOptions struct {
	bodyLimit int64
}

type Option func(*handleOptions)

// WithBodyLimit overrides the 1 MiB request body cap, e.g. for uploads.
func WithBodyLimit(limit int64) Option {
	return func(o *handleOptions) {
		o.bodyLimit = limit
	}
}

func (d *Dispatcher) Handle(fn HandlerFunc, opts ...Option) http.Handler {
	options := handleOptions{bodyLimit: defaultBodyLimit}
	for _, opt := range opts {
		opt(&options)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, options.bodyLimit)
		}

		resp, err := fn(r)
		if err != nil {
			d.WriteError(w, r, err)
			return
		}

		for _, cookie := range resp.Cookies {
			http.SetCookie(w, cookie)
		}

		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		WriteJSON(w, status, successEnvelope{Status: status, Data: resp.Data, Message: resp.Message})
	})
}

// WriteError translates err into the error envelope. 5xx causes are logged and
// reported, never echoed.
func (d *Dispatcher) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.StatusCode(err)
	if status >= http.StatusInternalServerError {
		requestID, _ := observability.RequestIDFromContext(r.Context())
		d.logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		observability.CaptureError(r.Context(), err)
	}

	WriteJSON(w, status, errorEnvelope{Status: status, Message: apperror.PublicMessage(err)})
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
