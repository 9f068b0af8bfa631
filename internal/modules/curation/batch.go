package curation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/curation-backend/internal/data/repos"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/httpx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type BatchInput struct {
	CurationID uuid.UUID
	RunID      string
	Number     int
	Components []types.RequiredComponent
	Recovery   bool
	Settings   Settings
	System     string
	Course     CourseContext
}

type BatchResult struct {
	Rows     []*types.CurationRow
	Inserted int
	Covered  []types.RequiredComponent
	Failed   []types.RequiredComponent
	// Rung is the index of the rung whose result was used, 0 when none was.
	Rung    int
	Outcome Outcome
	// StoreErr is set when the rows could not be written.
	StoreErr error
}

type BatchProcessor struct {
	log      *logger.Logger
	cfg      Config
	runner   *AttemptRunner
	rows     repos.CurationRowRepo
	archiver Archiver
	metrics  *observability.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewBatchProcessor(log *logger.Logger, cfg Config, runner *AttemptRunner, rows repos.CurationRowRepo, archiver Archiver, metrics *observability.Metrics) *BatchProcessor {
	if archiver == nil {
		archiver = NewArchiver(log, nil)
	}
	return &BatchProcessor{
		log:      log.With("component", "BatchProcessor"),
		cfg:      cfg,
		runner:   runner,
		rows:     rows,
		archiver: archiver,
		metrics:  metrics,
		sleep:    httpx.Sleep,
	}
}

// Process climbs the attempt ladder for one batch, reconciles the chosen
// result and stores the rows in a single insert. Covered and Failed always
// partition the batch.
func (p *BatchProcessor) Process(ctx context.Context, in BatchInput) BatchResult {
	ctx, span := observability.Tracer().Start(ctx, "curation.batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("curation.id", in.CurationID.String()),
		attribute.Int("curation.batch", in.Number),
		attribute.Bool("curation.recovery", in.Recovery),
		attribute.Int("curation.components", len(in.Components)),
	)

	log := p.log.With("curation_id", in.CurationID.String(), "batch", in.Number, "recovery", in.Recovery)
	chosen, partial := p.climb(ctx, log, in)

	var rows []*types.CurationRow
	res := BatchResult{}
	switch {
	case chosen != nil:
		rows = Reconcile(in.CurationID, in.Components, chosen.Plan, chosen.Grounding)
		res.Rung, res.Outcome = chosen.Rung.Index, chosen.Outcome
	case partial != nil:
		rows = AssignDirect(in.CurationID, in.Components, partial.Grounding)
		res.Rung, res.Outcome = partial.Rung.Index, partial.Outcome
	default:
		res.Outcome = OutcomeUngrounded
		log.Warn("curation: batch exhausted the ladder without grounding", "components", len(in.Components))
	}

	if len(rows) > 0 {
		if err := p.rows.InsertBatch(dbctx.Context{Ctx: ctx}, rows); err != nil {
			log.Error("curation: row insert failed, discarding batch", "rows", len(rows), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			rows = nil
			res.StoreErr = err
		}
	}

	res.Rows = rows
	res.Inserted = len(rows)
	res.Covered, res.Failed = partition(in.Components, rows)

	byOrigin := map[string]int{}
	for _, r := range rows {
		byOrigin[r.Notes]++
	}
	for origin, n := range byOrigin {
		p.metrics.AddRowsInserted(origin, n)
	}
	p.metrics.ObserveBatch(roundLabel(in.Recovery), len(res.Covered), len(res.Failed))
	span.SetAttributes(attribute.Int("curation.inserted", res.Inserted), attribute.Int("curation.failed", len(res.Failed)))

	log.Info("curation: batch done",
		"rung", res.Rung,
		"outcome", res.Outcome.String(),
		"inserted", res.Inserted,
		"failed", len(res.Failed),
	)
	return res
}

// climb runs rungs until one is fully grounded. The first grounded result
// without a plan is kept for direct assignment in case no later rung does
// better.
func (p *BatchProcessor) climb(ctx context.Context, log *logger.Logger, in BatchInput) (chosen, partial *AttemptResult) {
	ladder := Ladder(in.Settings, p.cfg.TemperatureStep, p.cfg.MinTemperature)
	var prev *AttemptResult
	for i, rung := range ladder {
		if i > 0 {
			if err := p.sleep(ctx, p.rungDelay(in.Recovery, prev)); err != nil {
				log.Warn("curation: ladder interrupted", "rung", rung.Index, "error", err)
				return nil, partial
			}
		}
		res := p.runRung(ctx, in, rung)
		prev = &res

		p.archiver.Archive(ctx, transcriptOf(in, res))
		p.metrics.ObserveRung(rung.Index, rung.Model, res.Outcome.String())
		for range res.Grounding {
			p.metrics.ObserveVerification(true)
		}
		for range res.Rejected {
			p.metrics.ObserveVerification(false)
		}

		kv := []interface{}{
			"rung", rung.Index,
			"model", rung.Model,
			"temperature", rung.Temperature,
			"outcome", res.Outcome.String(),
			"grounding", len(res.Grounding),
			"rejected", len(res.Rejected),
		}
		switch res.Outcome {
		case OutcomeGrounded:
			log.Info("curation: rung grounded", kv...)
			return &res, partial
		case OutcomeGroundedNoPlan:
			log.Info("curation: rung grounded without parseable JSON", append(kv, "parse_error", errString(res.ParseErr))...)
			if partial == nil {
				partial = &res
			}
		case OutcomeError:
			log.Warn("curation: rung failed", append(kv, "error", errString(res.Err))...)
		default:
			log.Info("curation: rung ungrounded", kv...)
		}
	}
	return nil, partial
}

func (p *BatchProcessor) runRung(ctx context.Context, in BatchInput, rung Rung) AttemptResult {
	ctx, span := observability.Tracer().Start(ctx, "curation.rung")
	defer span.End()
	span.SetAttributes(
		attribute.Int("curation.rung", rung.Index),
		attribute.String("curation.model", rung.Model),
		attribute.Float64("curation.temperature", rung.Temperature),
	)
	start := time.Now()
	res := p.runner.Run(ctx, AttemptInput{
		System:        in.System,
		Prompt:        BuildPrompt(in.Course, in.Components, in.Recovery, rung),
		Rung:          rung,
		ThinkingLevel: in.Settings.ThinkingLevel,
	})
	status := "ok"
	if res.Err != nil {
		status = "error"
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "model call failed")
	}
	p.metrics.ObserveLLMRequest(rung.Model, status, time.Since(start))
	span.SetAttributes(attribute.String("curation.outcome", res.Outcome.String()), attribute.Int("curation.grounding", len(res.Grounding)))
	return res
}

func (p *BatchProcessor) rungDelay(recovery bool, prev *AttemptResult) time.Duration {
	if prev != nil && prev.Outcome == OutcomeError {
		return p.cfg.RungErrorDelay
	}
	if recovery {
		return p.cfg.RecoveryRungDelay
	}
	return p.cfg.RungDelay
}

// partition splits batch into components with a row and those without.
func partition(batch []types.RequiredComponent, rows []*types.CurationRow) (covered, failed []types.RequiredComponent) {
	have := make(map[types.ComponentKey]bool, len(rows))
	for _, r := range rows {
		have[types.ComponentKey{LessonID: r.LessonID, Component: r.Component}] = true
	}
	for _, c := range batch {
		if have[c.Key()] {
			covered = append(covered, c)
		} else {
			failed = append(failed, c)
		}
	}
	return covered, failed
}

func roundLabel(recovery bool) string {
	if recovery {
		return "round2"
	}
	return "round1"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
