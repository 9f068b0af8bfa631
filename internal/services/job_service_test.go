package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/data/repos"
	"github.com/yungbote/curation-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/ctxutil"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/realtime"
	"github.com/yungbote/curation-backend/internal/realtime/bus"
)

func TestJobServiceEnqueueGetCancel(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	r := repos.New(tx, log)

	eventBus := bus.NewMemoryBus(log)
	var events []string
	if err := eventBus.StartForwarder(context.Background(), func(ev realtime.Event) { events = append(events, ev.Type) }); err != nil {
		t.Fatalf("forwarder: %v", err)
	}
	svc := NewJobService(tx, log, r.JobRun, NewJobNotifier(log, eventBus), nil, "")

	owner := uuid.New()
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "trace-1", RequestID: "req-1"})
	entity := uuid.New()
	job, err := svc.Enqueue(dbctx.Context{Ctx: ctx}, owner, "curation_generate", "curation", &entity, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != types.JobStatusQueued {
		t.Fatalf("status=%s", job.Status)
	}
	if _, err := svc.Enqueue(dbctx.Context{Ctx: ctx}, owner, "", "curation", nil, nil); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("empty job type accepted: %v", err)
	}

	ownerCtx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: owner})
	got, err := svc.GetByIDForRequestUser(dbctx.Context{Ctx: ownerCtx}, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) == "" || !strings.Contains(string(got.Payload), "trace-1") {
		t.Fatalf("trace data not stored in payload: %s", got.Payload)
	}

	strangerCtx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uuid.New()})
	if _, err := svc.GetByIDForRequestUser(dbctx.Context{Ctx: strangerCtx}, job.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("foreign job visible: %v", err)
	}

	canceled, err := svc.CancelForRequestUser(dbctx.Context{Ctx: ownerCtx}, job.ID)
	if err != nil || canceled.Status != types.JobStatusCanceled {
		t.Fatalf("cancel: %+v %v", canceled, err)
	}
	again, err := svc.CancelForRequestUser(dbctx.Context{Ctx: ownerCtx}, job.ID)
	if err != nil || again.Status != types.JobStatusCanceled {
		t.Fatalf("second cancel should be a no-op: %+v %v", again, err)
	}

	latest, err := svc.GetLatestForEntity(dbctx.Context{Ctx: ctx}, "curation", entity, "curation_generate")
	if err != nil || latest == nil || latest.ID != job.ID {
		t.Fatalf("latest: %+v %v", latest, err)
	}
	if len(events) != 2 || events[0] != realtime.EventJobCreated || events[1] != realtime.EventJobCanceled {
		t.Fatalf("unexpected events: %v", events)
	}
}
