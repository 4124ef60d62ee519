// Package notify delivers generated summaries to configured sinks. Each sink
// is independently optional; one sink failing never blocks the others.
package notify

import (
	"context"

	"github.com/luoli523/x-monitor/internal/models"
)

// Notifier is a single notification sink.
type Notifier interface {
	Name() string
	Send(ctx context.Context, summary *models.Summary) error
}
