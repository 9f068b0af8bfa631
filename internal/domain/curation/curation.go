package curation

import (
	"time"

	"github.com/google/uuid"
)

const (
	StateGenerating = "PHASE2_GENERATING"
	StateGenerated  = "PHASE2_GENERATED"
	StateFailed     = "PHASE2_FAILED"
)

// Curation is the parent record of one course's source curation. The
// pipeline only touches it when a run starts and when it ends.
type Curation struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     *uuid.UUID `gorm:"type:uuid;column:owner_user_id;index" json:"owner_user_id,omitempty"`
	ArtifactID      *uuid.UUID `gorm:"type:uuid;column:artifact_id;index" json:"artifact_id,omitempty"`
	State           string     `gorm:"column:state;not null;index" json:"state"`
	CourseName      string     `gorm:"column:course_name" json:"course_name"`
	IdeaCentral     string     `gorm:"column:idea_central;type:text" json:"idea_central"`
	AttemptNumber   int        `gorm:"column:attempt_number;not null;default:1" json:"attempt_number"`
	TotalComponents int        `gorm:"column:total_components;not null;default:0" json:"total_components"`
	TotalInserted   int        `gorm:"column:total_inserted;not null;default:0" json:"total_inserted"`
	LastError       string     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	GeneratedAt     *time.Time `gorm:"column:generated_at" json:"generated_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (Curation) TableName() string { return "curation" }

// CurationRow is one curated source for one (lesson, component) pair.
// Apta stays nil until the validation agent has graded the row.
type CurationRow struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CurationID        uuid.UUID  `gorm:"type:uuid;column:curation_id;not null;index" json:"curation_id"`
	LessonID          string     `gorm:"column:lesson_id;not null;index" json:"lesson_id"`
	LessonTitle       string     `gorm:"column:lesson_title" json:"lesson_title"`
	Component         string     `gorm:"column:component;not null" json:"component"`
	IsCritical        bool       `gorm:"column:is_critical;not null;default:false" json:"is_critical"`
	SourceRef         string     `gorm:"column:source_ref;type:text" json:"source_ref"`
	SourceTitle       string     `gorm:"column:source_title" json:"source_title"`
	SourceRationale   string     `gorm:"column:source_rationale;type:text" json:"source_rationale"`
	URLStatus         string     `gorm:"column:url_status" json:"url_status"`
	HTTPStatusCode    *int       `gorm:"column:http_status_code" json:"http_status_code,omitempty"`
	Apta              *bool      `gorm:"column:apta;index" json:"apta"`
	CoberturaCompleta *bool      `gorm:"column:cobertura_completa" json:"cobertura_completa"`
	AutoEvaluated     bool       `gorm:"column:auto_evaluated;not null;default:false" json:"auto_evaluated"`
	ValidationScore   *int       `gorm:"column:validation_score" json:"validation_score,omitempty"`
	Notes             string     `gorm:"column:notes;type:text" json:"notes"`
	LastCheckedAt     *time.Time `gorm:"column:last_checked_at" json:"last_checked_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;index" json:"created_at"`
}

func (CurationRow) TableName() string { return "curation_rows" }

// CurationSettings holds the model tuning read once per run. Only row 1 is used.
type CurationSettings struct {
	ID            int       `gorm:"primaryKey" json:"id"`
	ModelName     string    `gorm:"column:model_name;not null" json:"model_name"`
	FallbackModel string    `gorm:"column:fallback_model" json:"fallback_model"`
	Temperature   float64   `gorm:"column:temperature;not null;default:0.7" json:"temperature"`
	ThinkingLevel string    `gorm:"column:thinking_level" json:"thinking_level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CurationSettings) TableName() string { return "curation_settings" }

const (
	PromptCodePlan     = "CURATION_PLAN"
	PromptCodeValidate = "CURATION_VALIDATE"
)

type SystemPrompt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemPrompt) TableName() string { return "system_prompts" }
