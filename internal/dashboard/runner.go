package dashboard

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Runner refreshes the dashboard on a fixed interval until its context ends.
type Runner struct {
	Aggregator *Aggregator
	Interval   time.Duration
}

// Run refreshes once immediately, then on every tick. Failed refreshes are
// logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) {
	entry := log.WithFields(log.Fields{"component": "dashboard_runner", "interval": r.Interval})
	entry.Info("Dashboard runner started")

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		if err := r.Aggregator.Refresh(ctx); err != nil {
			entry.WithError(err).Warn("Dashboard refresh failed")
		}
		select {
		case <-ctx.Done():
			entry.Info("Dashboard runner stopped")
			return
		case <-ticker.C:
		}
	}
}
