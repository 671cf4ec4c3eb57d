package jobs

import (
	"context"

	"github.com/fenilmodi00/ipo-dalal/shared"
)

// MetricsSource is anything that exposes per-operation service metrics
type MetricsSource interface {
	GetServiceMetrics() *shared.ServiceMetrics
}

type MetricsSummaryJob struct {
	Sources []MetricsSource
}

func NewMetricsSummaryJob(sources ...MetricsSource) *MetricsSummaryJob {
	return &MetricsSummaryJob{Sources: sources}
}

func (j *MetricsSummaryJob) Name() string { return "metrics_summary" }

func (j *MetricsSummaryJob) Run(ctx context.Context) error {
	for _, source := range j.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m := source.GetServiceMetrics(); m != nil {
			m.LogSummary()
		}
	}
	return nil
}
