package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"videotube-backend/internal/httpapi"
)

type refreshTokenSweeper interface {
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time, limit int) (int64, error)
}

type CleanupResult struct {
	ClearedRefreshTokens int64 `json:"clearedRefreshTokens"`
}

// CleanupHandler clears expired refresh tokens in one bounded batch per call.
// It is meant to be triggered by an external scheduler holding CRON_SECRET.
type CleanupHandler struct {
	store      refreshTokenSweeper
	logger     *zap.Logger
	cronSecret string
	batchSize  int
	now        func() time.Time
}

func NewCleanupHandler(store refreshTokenSweeper, logger *zap.Logger, cronSecret string, batchSize int) *CleanupHandler {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &CleanupHandler{
		store:      store,
		logger:     logger.Named("maintenance"),
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (h *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		httpapi.WriteJSON(w, http.StatusNotFound, map[string]any{"status": http.StatusNotFound, "message": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		httpapi.WriteJSON(w, http.StatusUnauthorized, map[string]any{"status": http.StatusUnauthorized, "message": "unauthorized"})
		return
	}

	cleared, err := h.store.ClearExpiredRefreshTokens(r.Context(), h.now().UTC(), h.batchSize)
	if err != nil {
		h.logger.Error("refresh_token_cleanup_failed", zap.Error(err))
		httpapi.WriteJSON(w, http.StatusInternalServerError, map[string]any{"status": http.StatusInternalServerError, "message": "cleanup failed"})
		return
	}

	h.logger.Info("refresh_token_cleanup_completed", zap.Int64("cleared_refresh_tokens", cleared))

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  http.StatusOK,
		"data":    CleanupResult{ClearedRefreshTokens: cleared},
		"message": "cleanup completed",
	})
}
