package curation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
)

const (
	JobTypeGenerate = "curation_generate"
	JobTypeValidate = "curation_validate"
	EntityCuration  = "curation"
)

// GeneratePayload is the job_run payload of a curation_generate job.
type GeneratePayload struct {
	CurationID    uuid.UUID                 `json:"curation_id"`
	ArtifactID    *uuid.UUID                `json:"artifact_id,omitempty"`
	OwnerUserID   *uuid.UUID                `json:"owner_user_id,omitempty"`
	CourseName    string                    `json:"course_name"`
	IdeaCentral   string                    `json:"idea_central"`
	Components    []types.RequiredComponent `json:"components"`
	AttemptNumber int                       `json:"attempt_number,omitempty"`
	Gaps          []types.ComponentKey      `json:"gaps,omitempty"`
}

func (p GeneratePayload) RunInput() RunInput {
	return RunInput{
		CurationID:    p.CurationID,
		ArtifactID:    p.ArtifactID,
		OwnerUserID:   p.OwnerUserID,
		CourseName:    p.CourseName,
		IdeaCentral:   p.IdeaCentral,
		Components:    p.Components,
		AttemptNumber: p.AttemptNumber,
		Gaps:          p.Gaps,
	}
}

func PayloadFromRunInput(in RunInput) GeneratePayload {
	return GeneratePayload{
		CurationID:    in.CurationID,
		ArtifactID:    in.ArtifactID,
		OwnerUserID:   in.OwnerUserID,
		CourseName:    in.CourseName,
		IdeaCentral:   in.IdeaCentral,
		Components:    in.Components,
		AttemptNumber: in.AttemptNumber,
		Gaps:          in.Gaps,
	}
}

// ValidatePayload is the job_run payload of a curation_validate job.
type ValidatePayload struct {
	CurationID  uuid.UUID `json:"curation_id"`
	Revalidate  bool      `json:"revalidate,omitempty"`
	Concurrency int       `json:"concurrency,omitempty"`
}

func (p ValidatePayload) Input() ValidateInput {
	return ValidateInput{CurationID: p.CurationID, Revalidate: p.Revalidate, Concurrency: p.Concurrency}
}

// ToMap flattens a payload struct into the generic map job_run stores.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromMap decodes a job payload map into v.
func FromMap(m map[string]any, v any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode job payload: %v: %w", err, apierr.ErrInvalidArgument)
	}
	return nil
}
