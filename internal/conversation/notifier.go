package conversation

import (
	"context"
	"fmt"
	"os"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// LineFunc prints one line of output. display.UI.PrintHint and
// display.UI.PrintUrgent both match it.
type LineFunc func(text string)

// CLINotifier writes notifications to the terminal.
type CLINotifier struct {
	log    *logger.Logger
	normal LineFunc
	urgent LineFunc
}

// NewCLINotifier creates a terminal notifier. Nil print functions fall
// back to stdout and stderr.
func NewCLINotifier(log *logger.Logger, normal, urgent LineFunc) *CLINotifier {
	if normal == nil {
		normal = func(text string) { fmt.Fprintln(os.Stdout, text) }
	}
	if urgent == nil {
		urgent = func(text string) { fmt.Fprintln(os.Stderr, text) }
	}
	return &CLINotifier{log: log, normal: normal, urgent: urgent}
}

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.normal(message)
	return nil
}

// NotifyUrgent prints an urgent notification.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.urgent(message)
	return nil
}
