package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"
)

const (
	pollInterval         = 2 * time.Second
	continueTickLimit    = 2000
	continueHistoryLimit = 15000
)

// Workflow drives one job_run row, identified by the workflow id, until it
// reaches a terminal status. Retries happen at the job level, so the tick
// activity carries no retry policy.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 6 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
	})

	for tick := 1; ; tick++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}
		if out.Done() {
			if out.Status == "failed" {
				return fmt.Errorf("job failed (stage=%s)", strings.TrimSpace(out.Stage))
			}
			return nil
		}
		if err := workflow.Sleep(ctx, pollInterval); err != nil {
			return err
		}
		if shouldContinueAsNew(workflow.GetInfo(ctx).GetCurrentHistoryLength(), tick) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

func shouldContinueAsNew(historyLength int, ticks int) bool {
	return ticks >= continueTickLimit || historyLength >= continueHistoryLimit
}
