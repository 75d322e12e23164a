package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op when dsn is empty, which also keeps CaptureError
// silent in tests and local runs.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err tagged with the request id carried by ctx.
func CaptureError(ctx context.Context, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		if requestID, ok := RequestIDFromContext(ctx); ok {
			scope.SetTag("request_id", requestID)
		}
		sentry.CaptureException(err)
	})
}
