package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/repos"
	jobrt "github.com/yungbote/curation-backend/internal/jobs/runtime"
	"github.com/yungbote/curation-backend/internal/jobs/pipeline/curation_generate"
	"github.com/yungbote/curation-backend/internal/jobs/pipeline/curation_validate"
	"github.com/yungbote/curation-backend/internal/jobs/worker"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/runlock"
	"github.com/yungbote/curation-backend/internal/services"
	"github.com/yungbote/curation-backend/internal/temporalx"
	"github.com/yungbote/curation-backend/internal/temporalx/temporalworker"
)

type Services struct {
	JobNotifier services.JobNotifier
	JobService  services.JobService
	Curation    services.CurationService

	Pipeline   *curationmod.Pipeline
	Validation *curationmod.ValidationAgent

	JobRegistry *jobrt.Registry
	// Exactly one of Worker and TemporalWorker is set when RUN_WORKER is on.
	Worker         *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var locker runlock.Locker
	if clients.Redis != nil {
		locker = runlock.NewRedisLocker(clients.Redis)
	} else {
		locker = runlock.NewLocalLocker()
	}

	cc := cfg.Curation
	runner := curationmod.NewAttemptRunner(clients.Gemini, clients.Resolver, clients.Verifier)
	archiver := curationmod.NewArchiver(log, clients.Archive)
	batches := curationmod.NewBatchProcessor(log, cc, runner, r.CurationRow, archiver, metrics)
	pipeline := curationmod.NewPipeline(curationmod.PipelineDeps{
		Log:       log,
		Config:    cc,
		Curations: r.Curation,
		Rows:      r.CurationRow,
		Settings:  r.Settings,
		Prompts:   r.SystemPrompt,
		Locker:    locker,
		Batches:   batches,
		Metrics:   metrics,
	})

	var grader curationmod.Grader = clients.Gemini
	if clients.OpenAI != nil {
		grader = clients.OpenAI
	}
	validation := curationmod.NewValidationAgent(curationmod.ValidationDeps{
		Log:     log,
		Config:  cc.Validation,
		Rows:    r.CurationRow,
		Prompts: r.SystemPrompt,
		Pages:   clients.Pages,
		Grader:  grader,
		Metrics: metrics,
	})

	jobNotifier := services.NewJobNotifier(log, clients.Bus)
	jobService := services.NewJobService(db, log, r.JobRun, jobNotifier, clients.Temporal, temporalx.LoadConfig().TaskQueue)
	curationService := services.NewCurationService(log, jobService, r.JobRun, pipeline, validation)

	registry := jobrt.NewRegistry()
	for _, h := range []jobrt.Handler{
		curation_generate.New(log, pipeline),
		curation_validate.New(log, validation),
	} {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register job %s: %w", h.Type(), err)
		}
	}

	out := Services{
		JobNotifier: jobNotifier,
		JobService:  jobService,
		Curation:    curationService,
		Pipeline:    pipeline,
		Validation:  validation,
		JobRegistry: registry,
	}
	if !cfg.RunWorker {
		return out, nil
	}
	if clients.Temporal != nil {
		w, err := temporalworker.NewRunner(log, clients.Temporal, db, r.JobRun, registry, jobNotifier, metrics)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = w
	} else {
		out.Worker = worker.NewWorker(db, log, r.JobRun, registry, jobNotifier, metrics, worker.PolicyFromEnv())
	}
	return out, nil
}
