package runtime

import (
	"fmt"
	"time"

	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// Execute runs the handler registered for the job's type. A missing
// handler, a returned error or a panic fails the job. A handler that returns
// nil without reaching a terminal status is marked succeeded.
func Execute(log *logger.Logger, registry *Registry, jc *Context, metrics *observability.Metrics) {
	job := jc.Job
	start := time.Now()
	defer func() {
		metrics.ObserveJob(job.JobType, job.Status, time.Since(start))
	}()

	h, ok := registry.Get(job.JobType)
	if !ok {
		log.Warn("no handler registered for job_type", "job_type", job.JobType, "job_id", job.ID.String())
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("job handler panic", "job_id", job.ID.String(), "job_type", job.JobType, "panic", r)
			jc.Fail("panic", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := h.Run(jc); err != nil {
		jc.Fail("run", err)
		return
	}
	if !jc.Terminal() {
		log.Warn("job handler returned without terminal status; marking succeeded", "job_id", job.ID.String(), "job_type", job.JobType)
		jc.Succeed("done", nil)
	}
}
