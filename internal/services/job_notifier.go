package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/realtime"
	"github.com/yungbote/curation-backend/internal/realtime/bus"
)

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
	JobCanceled(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
	bus bus.Bus
}

// NewJobNotifier publishes job lifecycle events on b. Publish failures are
// logged; notifications never fail a job.
func NewJobNotifier(log *logger.Logger, b bus.Bus) JobNotifier {
	if b == nil {
		b = bus.NewMemoryBus(log)
	}
	return &jobNotifier{log: log.With("service", "JobNotifier"), bus: b}
}

func (n *jobNotifier) publish(userID uuid.UUID, event string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := n.bus.Publish(ctx, realtime.Event{
		Channel: userID.String(),
		Type:    event,
		Data:    data,
		At:      time.Now().UTC(),
	})
	if err != nil {
		n.log.Warn("job event publish failed", "event", event, "user_id", userID.String(), "error", err)
	}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.publish(userID, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.publish(userID, realtime.EventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.publish(userID, realtime.EventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.publish(userID, realtime.EventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

func (n *jobNotifier) JobCanceled(userID uuid.UUID, job *types.JobRun) {
	n.publish(userID, realtime.EventJobCanceled, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
	})
}
