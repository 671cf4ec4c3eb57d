package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/sirupsen/logrus"
)

// FeedCollector scrapes the GMP feed into batch ingestion
type FeedCollector interface {
	Enabled() bool
	Collect(ctx context.Context) (*services.CollectResult, error)
}

// GMPFeedJob runs the web feed collector. It is a no-op while no feed URL is
// configured.
type GMPFeedJob struct {
	Collector FeedCollector
}

func NewGMPFeedJob(collector FeedCollector) *GMPFeedJob {
	return &GMPFeedJob{Collector: collector}
}

func (j *GMPFeedJob) Name() string { return "gmp_feed" }

func (j *GMPFeedJob) Run(ctx context.Context) error {
	if !j.Collector.Enabled() {
		logrus.Debug("GMP feed URL not configured, skipping collection")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	result, err := j.Collector.Collect(ctx)
	if err != nil {
		return err
	}

	fields := logrus.Fields{
		"rows_parsed": result.RowsParsed,
		"matched":     result.Matched,
		"unmatched":   len(result.Unmatched),
		"rejected":    len(result.Rejected),
	}
	if result.Batch != nil {
		fields["batch_id"] = result.Batch.BatchID
	}
	logrus.WithFields(fields).Info("GMP feed collected")
	return nil
}
