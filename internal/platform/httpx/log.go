package httpx

import (
	"log/slog"

	"github.com/tooldesk/tooldesk/internal/shared"
)

// LogError records a failed operation. Expected outcomes are logged at info
// with their caller-facing message; anything else is logged at error.
func LogError(logger *slog.Logger, op string, err error) {
	if logger == nil || err == nil {
		return
	}
	if shared.IsClassified(err) {
		logger.Info("request rejected", slog.String("operation", op), slog.Int("status", StatusFor(err)), slog.String("reason", shared.Message(err)))
		return
	}
	logger.Error("request failed", slog.String("operation", op), slog.Any("error", err))
}
