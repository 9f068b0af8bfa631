package curation_generate

import (
	"errors"

	jobrt "github.com/yungbote/curation-backend/internal/jobs/runtime"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var payload curationmod.GeneratePayload
	if err := curationmod.FromMap(jc.Payload(), &payload); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jc.Progress("setup", 1, "Starting curation")
	summary, err := p.runner.Run(jc.Ctx, payload.RunInput(), jc.Progress)
	switch {
	case errors.Is(err, curationmod.ErrRunInProgress):
		jc.Fail("lock", err)
		return nil
	case errors.Is(err, apierr.ErrInvalidArgument):
		jc.Fail("validate", err)
		return nil
	case err != nil:
		p.log.Warn("curation run failed", "job_id", jc.Job.ID.String(), "curation_id", payload.CurationID.String(), "error", err)
		jc.Fail("run", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"success":          true,
		"run_id":           summary.RunID,
		"total_inserted":   summary.TotalInserted,
		"total_components": summary.TotalComponents,
		"skipped":          summary.Skipped,
		"round1_failed":    summary.Round1Failed,
		"failed":           summary.Failed,
	})
	return nil
}
