// Package api is the serverless entry point. The runtime is built once per
// instance and reused across invocations.
package api

import (
	"context"
	"net/http"
	"sync"

	"videotube-backend/internal/app"
	"videotube-backend/internal/httpapi"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(context.Background(), app.Options{LoadDotEnv: false})
	})

	if initErr != nil {
		httpapi.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  http.StatusInternalServerError,
			"message": "application bootstrap failed",
		})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
