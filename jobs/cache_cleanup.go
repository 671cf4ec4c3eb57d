package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiredCleaner purges expired cache entries
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

type CacheCleanupJob struct {
	Cache ExpiredCleaner
}

func NewCacheCleanupJob(cache ExpiredCleaner) *CacheCleanupJob {
	return &CacheCleanupJob{Cache: cache}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed, err := j.Cache.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("removed", removed).Debug("Cache cleanup finished")
	return nil
}
