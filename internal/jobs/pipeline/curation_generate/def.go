package curation_generate

import (
	"context"

	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type Runner interface {
	Run(ctx context.Context, in curationmod.RunInput, progress curationmod.ProgressFunc) (*curationmod.RunSummary, error)
}

type Pipeline struct {
	log    *logger.Logger
	runner Runner
}

func New(baseLog *logger.Logger, runner Runner) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", curationmod.JobTypeGenerate),
		runner: runner,
	}
}

func (p *Pipeline) Type() string { return curationmod.JobTypeGenerate }
