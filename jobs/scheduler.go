package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const schedulerName = "Job_Scheduler"

// Job is a unit of background work the scheduler can run on a cron spec or
// on demand
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	schedule string
	entryID  cron.EntryID
	running  atomic.Bool

	mu        sync.Mutex
	runs      int
	lastRun   time.Time
	lastError string
}

// JobStatus is the externally visible state of a registered job
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule,omitempty"`
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// Scheduler runs registered jobs in one timezone. A job never overlaps
// itself, whether triggered by cron or by RunNow.
type Scheduler struct {
	cron    *cron.Cron
	metrics *shared.ServiceMetrics

	mu   sync.RWMutex
	jobs map[string]*scheduledJob
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logrus.StandardLogger()))),
		),
		metrics: shared.NewServiceMetrics(schedulerName),
		jobs:    make(map[string]*scheduledJob),
	}
}

func (s *Scheduler) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

// Register adds a job. An empty spec registers it for manual runs only.
func (s *Scheduler) Register(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return shared.NewServiceError(shared.ErrorCategoryConfiguration, "DUPLICATE_JOB",
			fmt.Sprintf("job %s is already registered", name), schedulerName, "Register", false, nil)
	}

	sj := &scheduledJob{job: job, schedule: spec}
	if spec != "" {
		id, err := s.cron.AddFunc(spec, func() {
			if err := s.run(context.Background(), sj); err != nil {
				logrus.WithFields(logrus.Fields{
					"component": "scheduler",
					"job":       name,
				}).WithError(err).Warn("Scheduled job did not complete")
			}
		})
		if err != nil {
			return shared.NewServiceError(shared.ErrorCategoryConfiguration, "INVALID_SCHEDULE",
				fmt.Sprintf("invalid schedule %q for job %s", spec, name), schedulerName, "Register", false, err)
		}
		sj.entryID = id
	}

	s.jobs[name] = sj
	logrus.WithFields(logrus.Fields{
		"component": "scheduler",
		"job":       name,
		"schedule":  spec,
	}).Info("Registered job")
	return nil
}

// RunNow runs a job synchronously on the caller's context
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	sj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return shared.NewNotFoundError("JOB_NOT_FOUND", fmt.Sprintf("no job named %s", name), schedulerName, "RunNow")
	}
	return s.run(ctx, sj)
}

func (s *Scheduler) run(ctx context.Context, sj *scheduledJob) error {
	name := sj.job.Name()
	if !sj.running.CompareAndSwap(false, true) {
		logrus.WithField("job", name).Warn("Job already running, skipping")
		return shared.NewServiceError(shared.ErrorCategoryConflict, "JOB_RUNNING",
			fmt.Sprintf("job %s is already running", name), schedulerName, "Run", true, nil)
	}
	defer sj.running.Store(false)

	start := time.Now()
	logrus.WithField("job", name).Info("Starting job")
	err := sj.job.Run(ctx)
	duration := time.Since(start)
	s.metrics.RecordRequest(name, err == nil, duration)

	sj.mu.Lock()
	sj.runs++
	sj.lastRun = start
	sj.lastError = ""
	if err != nil {
		sj.lastError = err.Error()
	}
	sj.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{
		"job":         name,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Job failed")
		return err
	}
	entry.Info("Job completed")
	return nil
}

// Jobs lists the registered jobs by name
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for name, sj := range s.jobs {
		status := JobStatus{
			Name:     name,
			Schedule: sj.schedule,
			Running:  sj.running.Load(),
		}
		sj.mu.Lock()
		status.Runs = sj.runs
		status.LastError = sj.lastError
		if !sj.lastRun.IsZero() {
			last := sj.lastRun
			status.LastRun = &last
		}
		sj.mu.Unlock()

		if sj.entryID != 0 {
			if next := s.cron.Entry(sj.entryID).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.WithField("jobs", len(s.jobs)).Info("Job scheduler started")
}

// Stop halts the cron loop and waits for running jobs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logrus.Info("Job scheduler stopped")
	case <-ctx.Done():
		logrus.Warn("Job scheduler stop timed out with jobs still running")
	}
}
