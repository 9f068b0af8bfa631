package realtime

import "time"

const (
	EventJobCreated  = "job_created"
	EventJobProgress = "job_progress"
	EventJobFailed   = "job_failed"
	EventJobDone     = "job_done"
	EventJobCanceled = "job_canceled"
)

// Event is one message published to subscribers of Channel. Channels are
// user ids so a client only sees its own jobs.
type Event struct {
	Channel string         `json:"channel"`
	Type    string         `json:"event"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}
