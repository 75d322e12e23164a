package observability

import (
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Development gets the human-readable
// console encoder, everything else JSON at info level.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
