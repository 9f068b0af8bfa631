package jobrun

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
)

type TickResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Done reports whether the workflow can stop ticking.
func (r TickResult) Done() bool {
	switch r.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}
