package notify

import (
	"context"

	"github.com/NamiraNet/namira-pool/internal/report"
)

// Notifier delivers a finished run report somewhere people will see it.
type Notifier interface {
	Send(ctx context.Context, r *report.Report) error
}
