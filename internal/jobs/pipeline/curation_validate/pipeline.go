package curation_validate

import (
	jobrt "github.com/yungbote/curation-backend/internal/jobs/runtime"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var payload curationmod.ValidatePayload
	if err := curationmod.FromMap(jc.Payload(), &payload); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jc.Progress("validate", 1, "Grading curated sources")
	summary, err := p.runner.Run(jc.Ctx, payload.Input(), jc.Progress)
	if err != nil {
		p.log.Warn("curation validation failed", "job_id", jc.Job.ID.String(), "curation_id", payload.CurationID.String(), "error", err)
		jc.Fail("validate", err)
		return nil
	}
	jc.Succeed("done", summary)
	return nil
}
