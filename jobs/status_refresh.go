package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusRefresher re-derives IPO statuses from their dates
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// StatusRefreshJob moves auto-status IPOs between upcoming, open, closed
// and listed as the calendar advances
type StatusRefreshJob struct {
	IPOs StatusRefresher
}

func NewStatusRefreshJob(ipos StatusRefresher) *StatusRefreshJob {
	return &StatusRefreshJob{IPOs: ipos}
}

func (j *StatusRefreshJob) Name() string { return "status_refresh" }

func (j *StatusRefreshJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	updated, err := j.IPOs.RefreshStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh IPO statuses: %w", err)
	}
	logrus.WithField("updated", updated).Info("IPO statuses refreshed")
	return nil
}
