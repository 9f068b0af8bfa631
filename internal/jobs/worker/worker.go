package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/repos"
	jobrt "github.com/yungbote/curation-backend/internal/jobs/runtime"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/envutil"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/services"
)

type Policy struct {
	Concurrency       int
	PollInterval      time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
	HeartbeatInterval time.Duration
}

func PolicyFromEnv() Policy {
	return Policy{
		Concurrency:       envutil.Int("WORKER_CONCURRENCY", 2),
		PollInterval:      time.Second,
		MaxAttempts:       envutil.Int("WORKER_MAX_ATTEMPTS", 5),
		RetryDelay:        envutil.Seconds("WORKER_RETRY_DELAY_SECONDS", 30),
		StaleRunning:      envutil.Seconds("WORKER_STALE_RUNNING_SECONDS", 30*60),
		HeartbeatInterval: 30 * time.Second,
	}
}

// Worker polls job_run for runnable rows and executes them through the
// registry. It is used when temporal is not configured.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *jobrt.Registry
	notify   services.JobNotifier
	metrics  *observability.Metrics
	policy   Policy
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *jobrt.Registry, notify services.JobNotifier, metrics *observability.Metrics, policy Policy) *Worker {
	if policy.Concurrency <= 0 {
		policy.Concurrency = 1
	}
	if policy.PollInterval <= 0 {
		policy.PollInterval = time.Second
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		metrics:  metrics,
		policy:   policy,
	}
}

// Start launches the polling loops and returns immediately. The returned
// function blocks until every loop has exited after ctx is canceled.
func (w *Worker) Start(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	for i := 0; i < w.policy.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	w.log.Info("job worker started", "concurrency", w.policy.Concurrency, "job_types", w.registry.Types())
	return wg.Wait
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.policy.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain the queue before waiting for the next tick
			for w.RunOnce(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was
// claimed.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx, Tx: w.db}, w.policy.MaxAttempts, w.policy.RetryDelay, w.policy.StaleRunning)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("ClaimNextRunnable failed", "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}
	stop := w.startHeartbeat(ctx, job.ID)
	defer stop()

	w.log.Info("job claimed", "job_id", job.ID.String(), "job_type", job.JobType, "attempt", job.Attempts)
	jc := jobrt.NewContext(ctx, w.db, job, w.repo, w.notify)
	jobrt.Execute(w.log, w.registry, jc, w.metrics)
	return true
}

func (w *Worker) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	interval := w.policy.HeartbeatInterval
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx, Tx: w.db}, jobID); err != nil {
					w.log.Warn("job heartbeat failed", "job_id", jobID.String(), "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
