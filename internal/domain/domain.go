package domain

import (
	"github.com/yungbote/curation-backend/internal/domain/curation"
	"github.com/yungbote/curation-backend/internal/domain/jobs"
)

type Curation = curation.Curation
type CurationRow = curation.CurationRow
type CurationSettings = curation.CurationSettings
type SystemPrompt = curation.SystemPrompt

type RequiredComponent = curation.RequiredComponent
type ComponentKey = curation.ComponentKey
type CandidateSource = curation.CandidateSource
type GroundingURL = curation.GroundingURL
type Origin = curation.Origin

type JobRun = jobs.JobRun

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Curation{},
		&CurationRow{},
		&CurationSettings{},
		&SystemPrompt{},
		&JobRun{},
	}
}

const (
	OriginGoogleVerified    = curation.OriginGoogleVerified
	OriginGroundingFallback = curation.OriginGroundingFallback
	OriginGroundingDirect   = curation.OriginGroundingDirect

	StateGenerating = curation.StateGenerating
	StateGenerated  = curation.StateGenerated
	StateFailed     = curation.StateFailed

	PromptCodePlan     = curation.PromptCodePlan
	PromptCodeValidate = curation.PromptCodeValidate

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)
