package curation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/data/db"
	"github.com/yungbote/curation-backend/internal/data/repos"
	"github.com/yungbote/curation-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/gemini"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/runlock"
)

type pipelineFixture struct {
	pipeline  *Pipeline
	gen       *scriptedGenerator
	rows      *memRows
	curations *memCurations
	locker    runlock.Locker
}

func newPipelineFixture(gen *scriptedGenerator, prompts staticPrompts) *pipelineFixture {
	if prompts == nil {
		prompts = staticPrompts{types.PromptCodePlan: "plan system prompt"}
	}
	f := &pipelineFixture{
		gen:       gen,
		rows:      &memRows{},
		curations: &memCurations{},
		locker:    runlock.NewLocalLocker(),
	}
	log := logger.NewNop()
	cfg := testConfig()
	f.pipeline = NewPipeline(PipelineDeps{
		Log:       log,
		Config:    cfg,
		Curations: f.curations,
		Rows:      f.rows,
		Settings:  staticSettings{row: &types.CurationSettings{ID: 1, ModelName: "primary", FallbackModel: "fallback", Temperature: 0.7}},
		Prompts:   prompts,
		Locker:    f.locker,
		Batches:   newTestBatchProcessor(gen, f.rows),
	})
	return f
}

// groundedStep answers with verified citations and matching claims for the
// first n components of comps.
func groundedStep(prefix string, comps []types.RequiredComponent, n int) genStep {
	u := urls(prefix, n)
	return genStep{resp: &gemini.GroundedResponse{Text: planJSON(comps, u), Chunks: chunks(u...)}}
}

func runInput(comps []types.RequiredComponent) RunInput {
	return RunInput{
		CurationID:  uuid.New(),
		CourseName:  "Programación concurrente",
		IdeaCentral: "Goroutines y canales",
		Components:  comps,
	}
}

type progressLog struct {
	mu     sync.Mutex
	stages []string
	pcts   []int
}

func (p *progressLog) fn(stage string, pct int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, stage)
	p.pcts = append(p.pcts, pct)
}

func TestPipelineRecoveryRound(t *testing.T) {
	comps := components(16)
	failedAfterRound1 := append(append([]types.RequiredComponent{}, comps[5:8]...), comps[13:16]...)
	gen := &scriptedGenerator{script: []genStep{
		groundedStep("b1", comps[0:8], 5),
		groundedStep("b2", comps[8:16], 5),
		groundedStep("r2", failedAfterRound1, 4),
	}}
	f := newPipelineFixture(gen, nil)
	in := runInput(comps)
	progress := &progressLog{}

	summary, err := f.pipeline.Run(context.Background(), in, progress.fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalComponents != 16 || summary.Round1Failed != 6 {
		t.Fatalf("unexpected round 1 result: %+v", summary)
	}
	if summary.TotalInserted != 14 || len(summary.Failed) != 2 {
		t.Fatalf("expected 14 inserted and 2 failed, got %d and %d", summary.TotalInserted, len(summary.Failed))
	}
	if summary.Failed[0].LessonID != "L15" || summary.Failed[1].LessonID != "L16" {
		t.Fatalf("unexpected residual failures: %+v", summary.Failed)
	}
	reqs := gen.requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(reqs))
	}
	recoveryPrompt := reqs[2].Prompt
	if !strings.Contains(recoveryPrompt, "segunda ronda") {
		t.Fatalf("round 2 prompt is not a recovery prompt")
	}
	for _, c := range failedAfterRound1 {
		if !strings.Contains(recoveryPrompt, fmt.Sprintf("%q", c.LessonID)) {
			t.Fatalf("recovery batch is missing %s", c.LessonID)
		}
	}
	if strings.Contains(recoveryPrompt, `"L1"`) {
		t.Fatalf("recovery batch contains a covered component")
	}

	rec := f.curations.records[in.CurationID]
	if rec.State != types.StateGenerated || rec.TotalInserted != 14 || rec.TotalComponents != 16 {
		t.Fatalf("unexpected curation record: %+v", rec)
	}
	if len(f.rows.rows) != 14 {
		t.Fatalf("expected 14 stored rows, got %d", len(f.rows.rows))
	}
	seen := map[types.ComponentKey]bool{}
	for _, r := range f.rows.rows {
		k := types.ComponentKey{LessonID: r.LessonID, Component: r.Component}
		if seen[k] {
			t.Fatalf("component %+v stored twice", k)
		}
		seen[k] = true
	}

	last := len(progress.stages) - 1
	if progress.stages[0] != "setup" || progress.stages[last] != "finalize" {
		t.Fatalf("unexpected progress stages: %v", progress.stages)
	}
	for i := 1; i < len(progress.pcts); i++ {
		if progress.pcts[i] < progress.pcts[i-1] {
			t.Fatalf("progress went backwards: %v", progress.pcts)
		}
	}
}

func TestPipelineSkipsRecoveryWhenEverythingIsCovered(t *testing.T) {
	comps := components(3)
	gen := &scriptedGenerator{script: []genStep{groundedStep("all", comps, 3)}}
	f := newPipelineFixture(gen, nil)

	summary, err := f.pipeline.Run(context.Background(), runInput(comps), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gen.requests()) != 1 || summary.Round1Failed != 0 || len(summary.Failed) != 0 {
		t.Fatalf("expected one call and no failures, got %d calls, %+v", len(gen.requests()), summary)
	}
	if summary.Settings.Model != "primary" || summary.RunID == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestPipelineResidualFailuresStillGenerated(t *testing.T) {
	comps := components(2)
	f := newPipelineFixture(&scriptedGenerator{}, nil)
	in := runInput(comps)

	summary, err := f.pipeline.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 4 rungs per round, two rounds.
	if n := len(f.gen.requests()); n != 8 {
		t.Fatalf("expected 8 model calls, got %d", n)
	}
	if len(summary.Failed) != 2 || summary.TotalInserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if st := f.curations.records[in.CurationID].State; st != types.StateGenerated {
		t.Fatalf("expected %s, got %s", types.StateGenerated, st)
	}
}

func TestPipelineRejectsConcurrentRun(t *testing.T) {
	f := newPipelineFixture(&scriptedGenerator{}, nil)
	in := runInput(components(1))
	lease, err := f.locker.Acquire(context.Background(), runlock.CurationKey(in.CurationID.String()), time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.locker.Release(context.Background(), lease)

	_, err = f.pipeline.Run(context.Background(), in, nil)
	if !errors.Is(err, ErrRunInProgress) || !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if len(f.gen.requests()) != 0 || f.curations.records[in.CurationID] != nil {
		t.Fatalf("a rejected run must not touch the curation")
	}
}

func TestPipelineReleasesLock(t *testing.T) {
	comps := components(1)
	f := newPipelineFixture(&scriptedGenerator{script: []genStep{groundedStep("x", comps, 1)}}, nil)
	in := runInput(comps)
	if _, err := f.pipeline.Run(context.Background(), in, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := f.pipeline.Run(context.Background(), in, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestPipelineSkipsCoveredComponents(t *testing.T) {
	comps := components(3)
	gen := &scriptedGenerator{script: []genStep{groundedStep("rest", comps[1:], 2)}}
	f := newPipelineFixture(gen, nil)
	in := runInput(comps)
	f.rows.rows = append(f.rows.rows, &types.CurationRow{ID: uuid.New(), CurationID: in.CurationID, LessonID: "L1", Component: "lectura"})

	summary, err := f.pipeline.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.TotalInserted != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if strings.Contains(gen.requests()[0].Prompt, `"L1"`) {
		t.Fatalf("covered component was sent to the model")
	}
}

func TestPipelineGapsAndDedupe(t *testing.T) {
	comps := components(3)
	dup := comps[1]
	dup.LessonTitle = "duplicate"
	in := runInput(append(comps, dup))
	in.Gaps = []types.ComponentKey{comps[1].Key(), comps[2].Key()}

	got, err := PrepareComponents(in)
	if err != nil {
		t.Fatalf("prepareComponents: %v", err)
	}
	if len(got) != 2 || got[0].LessonID != "L2" || got[0].LessonTitle != "Lección 2" {
		t.Fatalf("unexpected components: %+v", got)
	}

	bad := []RunInput{
		{Components: comps},
		{CurationID: uuid.New()},
		{CurationID: uuid.New(), Components: []types.RequiredComponent{{LessonID: "L1"}}},
		{CurationID: uuid.New(), Components: comps, Gaps: []types.ComponentKey{{LessonID: "nope", Component: "x"}}},
	}
	for i, b := range bad {
		if _, err := PrepareComponents(b); !errors.Is(err, apierr.ErrInvalidArgument) {
			t.Fatalf("case %d: expected invalid argument, got %v", i, err)
		}
	}
}

func TestPipelineMissingPromptFailsRun(t *testing.T) {
	f := newPipelineFixture(&scriptedGenerator{}, staticPrompts{})
	in := runInput(components(1))

	_, err := f.pipeline.Run(context.Background(), in, nil)
	if err == nil || !strings.Contains(err.Error(), types.PromptCodePlan) {
		t.Fatalf("expected missing prompt error, got %v", err)
	}
	rec := f.curations.records[in.CurationID]
	if rec.State != types.StateFailed || rec.LastError == "" {
		t.Fatalf("expected a failed curation, got %+v", rec)
	}
	if len(f.gen.requests()) != 0 {
		t.Fatalf("no model call expected")
	}
}

func TestPipelineCanceledContext(t *testing.T) {
	comps := components(10)
	f := newPipelineFixture(&scriptedGenerator{}, nil)
	f.pipeline.deps.Config.BatchSize = 5
	ctx, cancel := context.WithCancel(context.Background())
	f.pipeline.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	in := runInput(comps)

	if _, err := f.pipeline.Run(ctx, in, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := f.curations.records[in.CurationID].State; st != types.StateFailed {
		t.Fatalf("expected %s, got %s", types.StateFailed, st)
	}
}

func TestPipelineAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	if err := db.SeedDefaults(tx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	log := testutil.Logger(t)
	r := repos.New(tx, log)

	comps := components(4)
	gen := &scriptedGenerator{script: []genStep{
		groundedStep("db", comps, 3),
		{resp: &gemini.GroundedResponse{Text: "sin JSON", Chunks: chunks("https://late.example.org/guide")}},
		{resp: &gemini.GroundedResponse{}},
	}}
	runner := NewAttemptRunner(gen, identityResolver{}, hostVerifier{})
	p := NewPipeline(PipelineDeps{
		Log:       log,
		Config:    testConfig(),
		Curations: r.Curation,
		Rows:      r.CurationRow,
		Settings:  r.Settings,
		Prompts:   r.SystemPrompt,
		Batches:   NewBatchProcessor(log, testConfig(), runner, r.CurationRow, nil, nil),
	})
	in := runInput(comps)

	summary, err := p.Run(ctx, in, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.TotalInserted != 4 || len(summary.Failed) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if gen.requests()[0].System != db.DefaultPlanPrompt || gen.requests()[0].Model != "gemini-2.5-flash" {
		t.Fatalf("settings or prompt not read from the database")
	}

	rec, err := r.Curation.GetByID(dbctx.Context{Ctx: ctx}, in.CurationID)
	if err != nil || rec == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.State != types.StateGenerated || rec.TotalInserted != 4 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	stored, err := r.CurationRow.ListByCuration(dbctx.Context{Ctx: ctx}, in.CurationID)
	if err != nil {
		t.Fatalf("ListByCuration: %v", err)
	}
	if len(stored) != 4 || countOrigin(stored, types.OriginGoogleVerified) != 3 || countOrigin(stored, types.OriginGroundingDirect) != 1 {
		t.Fatalf("unexpected stored rows: %+v", stored)
	}
}
