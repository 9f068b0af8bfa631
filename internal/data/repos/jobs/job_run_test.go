package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/curation-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
)

func newJob(jobType, status string, created time.Time) *types.JobRun {
	return &types.JobRun{
		ID:        uuid.New(),
		JobType:   jobType,
		Status:    status,
		Stage:     status,
		Payload:   datatypes.JSON([]byte("{}")),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestJobRunRepoClaimOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	queued := newJob("curation_generate", "queued", now.Add(-3*time.Hour))
	failed := newJob("curation_generate", "failed", now.Add(-2*time.Hour))
	failed.LastErrorAt = ptrTime(now.Add(-2 * time.Hour))
	stale := newJob("curation_generate", "running", now.Add(-1*time.Hour))
	stale.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	exhausted := newJob("curation_generate", "failed", now.Add(-4*time.Hour))
	exhausted.Attempts = 3
	done := newJob("curation_generate", "succeeded", now.Add(-5*time.Hour))

	if _, err := repo.Create(dbc, []*types.JobRun{queued, failed, stale, exhausted, done}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	want := []uuid.UUID{queued.ID, failed.ID, stale.ID}
	for i, id := range want {
		got, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("claim #%d: %v", i+1, err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("claim #%d: expected %v got %v", i+1, id, got)
		}
		if got.Status != "running" {
			t.Fatalf("claim #%d: status %q", i+1, got.Status)
		}
	}
	if got, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour); err != nil || got != nil {
		t.Fatalf("claim after drain: got %v err %v", got, err)
	}
}

func TestJobRunRepoUpdatesAndEntityLookups(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	entityID := uuid.New()
	older := newJob("curation_validate", "succeeded", now.Add(-5*time.Hour))
	older.EntityType, older.EntityID = "curation", &entityID
	newer := newJob("curation_validate", "queued", now.Add(-4*time.Hour))
	newer.EntityType, newer.EntityID = "curation", &entityID
	if _, err := repo.Create(dbc, []*types.JobRun{older, newer}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	latest, err := repo.GetLatestByEntity(dbc, "curation", entityID, "curation_validate")
	if err != nil || latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: got %v err %v", latest, err)
	}

	has, err := repo.HasRunnableForEntity(dbc, "curation", entityID, "curation_validate")
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: has=%v err=%v", has, err)
	}

	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{"status": "canceled"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{"canceled"}, map[string]interface{}{"status": "running"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("canceled job must not be overwritten")
	}
	has, err = repo.HasRunnableForEntity(dbc, "curation", entityID, "curation_validate")
	if err != nil || has {
		t.Fatalf("HasRunnableForEntity after cancel: has=%v err=%v", has, err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
