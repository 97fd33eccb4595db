package notify

import (
	"io"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
)

// SendNotification shows a desktop notification. Failures are ignored;
// headless machines have no notification daemon.
func SendNotification(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notifier announces finished long-running work.
type Notifier struct {
	Enabled bool
	// MinDuration suppresses notifications for quick operations.
	MinDuration time.Duration

	send   func(title, message string) error
	logger *slog.Logger
}

func New(enabled bool, minDuration time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{Enabled: enabled, MinDuration: minDuration, send: SendNotification, logger: logger}
}

// Done notifies when the operation that took elapsed was slow enough. It
// reports whether a notification was sent.
func (n *Notifier) Done(title, message string, elapsed time.Duration) bool {
	if n == nil || !n.Enabled || elapsed < n.MinDuration {
		return false
	}
	if err := n.send(title, message); err != nil {
		n.logger.Debug("desktop notification failed", "error", err)
		return false
	}
	return true
}
