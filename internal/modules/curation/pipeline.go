package curation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/curation-backend/internal/data/repos"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/httpx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/runlock"
)

// ErrRunInProgress is returned when another run holds the curation's lock.
var ErrRunInProgress = fmt.Errorf("curation run already in progress: %w", apierr.ErrConflict)

type RunInput struct {
	CurationID    uuid.UUID
	ArtifactID    *uuid.UUID
	OwnerUserID   *uuid.UUID
	CourseName    string
	IdeaCentral   string
	Components    []types.RequiredComponent
	AttemptNumber int
	// Gaps, when set, restricts the run to these components.
	Gaps []types.ComponentKey
}

type RunSummary struct {
	RunID           string                    `json:"runId"`
	TotalComponents int                       `json:"totalComponents"`
	TotalInserted   int                       `json:"totalInserted"`
	Skipped         int                       `json:"skipped"`
	Round1Failed    int                       `json:"round1Failed"`
	Failed          []types.RequiredComponent `json:"failedComponents"`
	Settings        Settings                  `json:"settings"`
}

// ProgressFunc receives coarse progress: stage, percent and a message.
type ProgressFunc func(stage string, pct int, msg string)

type PipelineDeps struct {
	Log       *logger.Logger
	Config    Config
	Curations repos.CurationRepo
	Rows      repos.CurationRowRepo
	Settings  repos.SettingsRepo
	Prompts   repos.SystemPromptRepo
	Locker    runlock.Locker
	Batches   *BatchProcessor
	Metrics   *observability.Metrics
}

type Pipeline struct {
	log   *logger.Logger
	deps  PipelineDeps
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Locker == nil {
		deps.Locker = runlock.NewLocalLocker()
	}
	return &Pipeline{
		log:   deps.Log.With("component", "CurationPipeline"),
		deps:  deps,
		sleep: httpx.Sleep,
	}
}

// Run executes round 1 and the recovery round for one curation. Residual
// uncovered components do not fail the run: the curation always ends in
// PHASE2_GENERATED once the rounds complete. Setup failures after the
// curation was marked generating move it to PHASE2_FAILED.
func (p *Pipeline) Run(ctx context.Context, in RunInput, progress ProgressFunc) (*RunSummary, error) {
	if progress == nil {
		progress = func(string, int, string) {}
	}
	components, err := PrepareComponents(in)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.Tracer().Start(ctx, "curation.run")
	defer span.End()
	span.SetAttributes(attribute.String("curation.id", in.CurationID.String()), attribute.Int("curation.components", len(components)))

	lease, err := p.deps.Locker.Acquire(ctx, runlock.CurationKey(in.CurationID.String()), p.deps.Config.RunLockTTL)
	if errors.Is(err, runlock.ErrHeld) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if rErr := p.deps.Locker.Release(context.WithoutCancel(ctx), lease); rErr != nil {
			p.log.Warn("curation: run lock release failed", "curation_id", in.CurationID.String(), "error", rErr)
		}
	}()

	runID := ulid.Make().String()
	log := p.log.With("curation_id", in.CurationID.String(), "run_id", runID)
	summary := &RunSummary{RunID: runID, TotalComponents: len(components)}
	dbc := dbctx.Context{Ctx: ctx}

	attempt := in.AttemptNumber
	if attempt <= 0 {
		attempt = 1
	}
	if err := p.deps.Curations.MarkGenerating(dbc, &types.Curation{
		ID:              in.CurationID,
		OwnerUserID:     in.OwnerUserID,
		ArtifactID:      in.ArtifactID,
		CourseName:      in.CourseName,
		IdeaCentral:     in.IdeaCentral,
		AttemptNumber:   attempt,
		TotalComponents: len(components),
	}); err != nil {
		return nil, fmt.Errorf("mark curation generating: %w", err)
	}
	progress("setup", 2, "curation marked generating")

	fail := func(stage string, err error) (*RunSummary, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		log.Error("curation: run failed", "stage", stage, "error", err)
		if fErr := p.deps.Curations.Finish(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, in.CurationID, types.StateFailed, summary.TotalInserted, err.Error()); fErr != nil {
			log.Error("curation: could not record failure", "error", fErr)
		}
		return summary, err
	}

	settingsRow, err := p.deps.Settings.Get(dbc)
	if err != nil {
		return fail("settings", fmt.Errorf("load curation settings: %w", err))
	}
	settings := SettingsFromRow(settingsRow)
	summary.Settings = settings

	prompt, err := p.deps.Prompts.GetByCode(dbc, types.PromptCodePlan)
	if err != nil {
		return fail("prompt", fmt.Errorf("load system prompt: %w", err))
	}
	if prompt == nil || strings.TrimSpace(prompt.Content) == "" {
		return fail("prompt", fmt.Errorf("missing system prompt %s", types.PromptCodePlan))
	}

	pending := components
	if p.deps.Config.SkipCovered {
		covered, err := p.deps.Rows.CoveredKeys(dbc, in.CurationID)
		if err != nil {
			return fail("covered", fmt.Errorf("load covered components: %w", err))
		}
		pending = make([]types.RequiredComponent, 0, len(components))
		for _, c := range components {
			if covered[c.Key()] {
				summary.Skipped++
				continue
			}
			pending = append(pending, c)
		}
		if summary.Skipped > 0 {
			log.Info("curation: skipping components already covered", "skipped", summary.Skipped)
		}
	}

	round := roundRunner{
		p:        p,
		log:      log,
		runID:    runID,
		in:       in,
		settings: settings,
		system:   prompt.Content,
	}

	log.Info("curation: round 1 starting", "components", len(pending), "model", settings.Model, "fallback", settings.FallbackModel, "temperature", settings.Temperature)
	failed, err := round.run(ctx, pending, false, progress, summary)
	if err != nil {
		return fail("round1", err)
	}
	summary.Round1Failed = len(failed)

	if len(failed) > 0 {
		log.Info("curation: recovery round starting", "components", len(failed))
		failed, err = round.run(ctx, failed, true, progress, summary)
		if err != nil {
			return fail("round2", err)
		}
	}
	summary.Failed = failed

	for _, c := range failed {
		log.Warn("curation: component left uncovered", "lesson_id", c.LessonID, "component", c.ComponentType, "critical", c.IsCritical)
	}

	progress("finalize", 98, "finalizing curation")
	if err := p.deps.Curations.Finish(dbc, in.CurationID, types.StateGenerated, summary.TotalInserted, ""); err != nil {
		return fail("finalize", fmt.Errorf("finish curation: %w", err))
	}
	span.SetAttributes(attribute.Int("curation.inserted", summary.TotalInserted), attribute.Int("curation.failed", len(failed)))
	log.Info("curation: run complete",
		"inserted", summary.TotalInserted,
		"total", summary.TotalComponents,
		"skipped", summary.Skipped,
		"failed", len(failed),
	)
	return summary, nil
}

type roundRunner struct {
	p        *Pipeline
	log      *logger.Logger
	runID    string
	in       RunInput
	settings Settings
	system   string
}

// run processes components in sequential batches and returns the union of
// the failed components. Only context cancellation aborts a round.
func (r roundRunner) run(ctx context.Context, components []types.RequiredComponent, recovery bool, progress ProgressFunc, summary *RunSummary) ([]types.RequiredComponent, error) {
	cfg := r.p.deps.Config
	batches := Split(components, cfg.BatchSize)
	delay := cfg.BatchDelay
	stage, lo, hi := "round1", 5, 70
	if recovery {
		delay = cfg.RecoveryBatchDelay
		stage, lo, hi = "round2", 70, 95
	}

	var failed []types.RequiredComponent
	for i, batch := range batches {
		if i > 0 {
			if err := r.p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		res := r.p.deps.Batches.Process(ctx, BatchInput{
			CurationID: r.in.CurationID,
			RunID:      r.runID,
			Number:     i + 1,
			Components: batch,
			Recovery:   recovery,
			Settings:   r.settings,
			System:     r.system,
			Course:     CourseContext{CourseName: r.in.CourseName, IdeaCentral: r.in.IdeaCentral},
		})
		summary.TotalInserted += res.Inserted
		failed = append(failed, res.Failed...)
		pct := lo + (hi-lo)*(i+1)/len(batches)
		progress(stage, pct, fmt.Sprintf("%s batch %d/%d: %d inserted, %d failed", stage, i+1, len(batches), res.Inserted, len(res.Failed)))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return failed, nil
}

// Split cuts components into consecutive batches of at most size.
func Split(components []types.RequiredComponent, size int) [][]types.RequiredComponent {
	if size <= 0 {
		size = 8
	}
	var out [][]types.RequiredComponent
	for start := 0; start < len(components); start += size {
		end := start + size
		if end > len(components) {
			end = len(components)
		}
		out = append(out, components[start:end])
	}
	return out
}

// PrepareComponents validates the request, applies the gap filter and
// drops duplicate (lesson, component) pairs keeping the first.
func PrepareComponents(in RunInput) ([]types.RequiredComponent, error) {
	if in.CurationID == uuid.Nil {
		return nil, fmt.Errorf("curationId required: %w", apierr.ErrInvalidArgument)
	}
	if len(in.Components) == 0 {
		return nil, fmt.Errorf("at least one component required: %w", apierr.ErrInvalidArgument)
	}
	var gaps map[types.ComponentKey]bool
	if len(in.Gaps) > 0 {
		gaps = make(map[types.ComponentKey]bool, len(in.Gaps))
		for _, g := range in.Gaps {
			gaps[g] = true
		}
	}
	seen := map[types.ComponentKey]bool{}
	out := make([]types.RequiredComponent, 0, len(in.Components))
	for i, c := range in.Components {
		c.LessonID = strings.TrimSpace(c.LessonID)
		c.ComponentType = strings.TrimSpace(c.ComponentType)
		if c.LessonID == "" || c.ComponentType == "" {
			return nil, fmt.Errorf("component %d needs lessonId and componentType: %w", i, apierr.ErrInvalidArgument)
		}
		k := c.Key()
		if seen[k] || (gaps != nil && !gaps[k]) {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no components left after applying gaps: %w", apierr.ErrInvalidArgument)
	}
	return out, nil
}
