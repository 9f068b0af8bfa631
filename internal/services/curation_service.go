package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/data/repos"
	types "github.com/yungbote/curation-backend/internal/domain"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/ctxutil"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type ComponentInput struct {
	LessonID      string `json:"lessonId" validate:"required"`
	LessonTitle   string `json:"lessonTitle"`
	ComponentType string `json:"componentType" validate:"required"`
	IsCritical    bool   `json:"isCritical"`
}

type GapInput struct {
	LessonID      string `json:"lessonId" validate:"required"`
	ComponentType string `json:"componentType" validate:"required"`
}

// TriggerRequest is the body of a generation trigger.
type TriggerRequest struct {
	CurationID    string           `json:"curationId" validate:"required,uuid"`
	ArtifactID    string           `json:"artifactId" validate:"omitempty,uuid"`
	Components    []ComponentInput `json:"components" validate:"required,min=1,dive"`
	CourseName    string           `json:"courseName"`
	IdeaCentral   string           `json:"ideaCentral"`
	AccessToken   string           `json:"accessToken"`
	AttemptNumber int              `json:"attemptNumber" validate:"omitempty,min=1"`
	Gaps          []GapInput       `json:"gaps" validate:"omitempty,dive"`
}

// TriggerResult.TotalComponents counts the components the run targets after
// the gaps filter, in both inline and queued mode.
type TriggerResult struct {
	Success          bool                      `json:"success"`
	JobID            string                    `json:"jobId,omitempty"`
	RunID            string                    `json:"runId,omitempty"`
	TotalInserted    int                       `json:"totalInserted"`
	TotalComponents  int                       `json:"totalComponents"`
	FailedComponents []types.RequiredComponent `json:"failedComponents,omitempty"`
}

type ValidateRequest struct {
	Revalidate  bool `json:"revalidate"`
	Concurrency int  `json:"concurrency" validate:"omitempty,min=1,max=20"`
}

type ValidateResult struct {
	Success bool                           `json:"success"`
	JobID   string                         `json:"jobId,omitempty"`
	Summary *curationmod.ValidationSummary `json:"summary,omitempty"`
}

// PipelineRunner runs one generation inline.
type PipelineRunner interface {
	Run(ctx context.Context, in curationmod.RunInput, progress curationmod.ProgressFunc) (*curationmod.RunSummary, error)
}

type ValidationRunner interface {
	Run(ctx context.Context, in curationmod.ValidateInput, progress curationmod.ProgressFunc) (*curationmod.ValidationSummary, error)
}

type CurationService interface {
	// Trigger starts a generation. With wait it runs inline and returns the
	// final counts; otherwise it enqueues a curation_generate job.
	Trigger(ctx context.Context, req TriggerRequest, wait bool) (*TriggerResult, error)
	Validate(ctx context.Context, curationID uuid.UUID, req ValidateRequest, wait bool) (*ValidateResult, error)
}

type curationService struct {
	log       *logger.Logger
	jobs      JobService
	jobRuns   repos.JobRunRepo
	pipeline  PipelineRunner
	validator ValidationRunner
	validate  *validator.Validate
}

func NewCurationService(baseLog *logger.Logger, jobs JobService, jobRuns repos.JobRunRepo, pipeline PipelineRunner, validation ValidationRunner) CurationService {
	return &curationService{
		log:       baseLog.With("service", "CurationService"),
		jobs:      jobs,
		jobRuns:   jobRuns,
		pipeline:  pipeline,
		validator: validation,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *curationService) Trigger(ctx context.Context, req TriggerRequest, wait bool) (*TriggerResult, error) {
	in, err := s.runInput(ctx, req)
	if err != nil {
		return nil, err
	}
	components, err := curationmod.PrepareComponents(in)
	if err != nil {
		return nil, err
	}
	log := s.log.With("curation_id", in.CurationID.String(), "components", len(components), "wait", wait)

	if wait {
		summary, err := s.pipeline.Run(ctx, in, nil)
		if err != nil {
			return nil, err
		}
		return &TriggerResult{
			Success:          true,
			RunID:            summary.RunID,
			TotalInserted:    summary.TotalInserted,
			TotalComponents:  len(components),
			FailedComponents: summary.Failed,
		}, nil
	}

	if err := s.ensureNoRunnable(ctx, in.CurationID, curationmod.JobTypeGenerate); err != nil {
		return nil, err
	}
	payload, err := curationmod.ToMap(curationmod.PayloadFromRunInput(in))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	owner := uuid.Nil
	if in.OwnerUserID != nil {
		owner = *in.OwnerUserID
	}
	id := in.CurationID
	job, err := s.jobs.Enqueue(dbctx.Context{Ctx: ctx}, owner, curationmod.JobTypeGenerate, curationmod.EntityCuration, &id, payload)
	if err != nil {
		return nil, err
	}
	log.Info("curation: generation enqueued", "job_id", job.ID.String())
	return &TriggerResult{Success: true, JobID: job.ID.String(), TotalComponents: len(components)}, nil
}

func (s *curationService) Validate(ctx context.Context, curationID uuid.UUID, req ValidateRequest, wait bool) (*ValidateResult, error) {
	if curationID == uuid.Nil {
		return nil, fmt.Errorf("curation id required: %w", apierr.ErrInvalidArgument)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", describeValidation(err), apierr.ErrInvalidArgument)
	}
	p := curationmod.ValidatePayload{CurationID: curationID, Revalidate: req.Revalidate, Concurrency: req.Concurrency}
	if wait {
		summary, err := s.validator.Run(ctx, p.Input(), nil)
		if err != nil {
			return nil, err
		}
		return &ValidateResult{Success: true, Summary: summary}, nil
	}
	if err := s.ensureNoRunnable(ctx, curationID, curationmod.JobTypeValidate); err != nil {
		return nil, err
	}
	payload, err := curationmod.ToMap(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	owner := uuid.Nil
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		owner = rd.UserID
	}
	job, err := s.jobs.Enqueue(dbctx.Context{Ctx: ctx}, owner, curationmod.JobTypeValidate, curationmod.EntityCuration, &curationID, payload)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{Success: true, JobID: job.ID.String()}, nil
}

func (s *curationService) ensureNoRunnable(ctx context.Context, curationID uuid.UUID, jobType string) error {
	busy, err := s.jobRuns.HasRunnableForEntity(dbctx.Context{Ctx: ctx}, curationmod.EntityCuration, curationID, jobType)
	if err != nil {
		return fmt.Errorf("check running jobs: %w", err)
	}
	if busy {
		return curationmod.ErrRunInProgress
	}
	return nil
}

func (s *curationService) runInput(ctx context.Context, req TriggerRequest) (curationmod.RunInput, error) {
	if err := s.validate.Struct(req); err != nil {
		return curationmod.RunInput{}, fmt.Errorf("%s: %w", describeValidation(err), apierr.ErrInvalidArgument)
	}
	in := curationmod.RunInput{
		CurationID:    uuid.MustParse(req.CurationID),
		CourseName:    strings.TrimSpace(req.CourseName),
		IdeaCentral:   strings.TrimSpace(req.IdeaCentral),
		AttemptNumber: req.AttemptNumber,
	}
	if req.ArtifactID != "" {
		id := uuid.MustParse(req.ArtifactID)
		in.ArtifactID = &id
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		owner := rd.UserID
		in.OwnerUserID = &owner
	}
	for _, c := range req.Components {
		in.Components = append(in.Components, types.RequiredComponent{
			LessonID:      c.LessonID,
			LessonTitle:   c.LessonTitle,
			ComponentType: c.ComponentType,
			IsCritical:    c.IsCritical,
		})
	}
	for _, g := range req.Gaps {
		in.Gaps = append(in.Gaps, types.ComponentKey{LessonID: strings.TrimSpace(g.LessonID), Component: strings.TrimSpace(g.ComponentType)})
	}
	return in, nil
}

// describeValidation turns validator errors into "field rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
