package curation_validate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/curation-backend/internal/domain"
	jobrt "github.com/yungbote/curation-backend/internal/jobs/runtime"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type fakeRunner struct {
	got curationmod.ValidateInput
	err error
}

func (f *fakeRunner) Run(ctx context.Context, in curationmod.ValidateInput, progress curationmod.ProgressFunc) (*curationmod.ValidationSummary, error) {
	f.got = in
	return &curationmod.ValidationSummary{Total: 3, Approved: 2, Rejected: 1}, f.err
}

func TestRun(t *testing.T) {
	id := uuid.New()
	raw, _ := json.Marshal(curationmod.ValidatePayload{CurationID: id, Revalidate: true, Concurrency: 4})
	job := &types.JobRun{ID: uuid.New(), JobType: curationmod.JobTypeValidate, Payload: datatypes.JSON(raw)}
	runner := &fakeRunner{}

	if err := New(logger.NewNop(), runner).Run(jobrt.NewContext(context.Background(), nil, job, nil, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.got.CurationID != id || !runner.got.Revalidate || runner.got.Concurrency != 4 {
		t.Fatalf("unexpected input: %+v", runner.got)
	}
	if job.Status != types.JobStatusSucceeded || string(job.Result) != `{"total":3,"approved":2,"rejected":1,"errors":0}` {
		t.Fatalf("unexpected job: %s %s", job.Status, job.Result)
	}

	job = &types.JobRun{ID: uuid.New(), JobType: curationmod.JobTypeValidate, Payload: datatypes.JSON(raw)}
	if err := New(logger.NewNop(), &fakeRunner{err: errors.New("db down")}).Run(jobrt.NewContext(context.Background(), nil, job, nil, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != types.JobStatusFailed || job.Error != "db down" {
		t.Fatalf("expected failure, got %s %q", job.Status, job.Error)
	}
}
