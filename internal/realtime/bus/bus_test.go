package bus

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/realtime"
)

func exerciseBus(t *testing.T, b Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan realtime.Event, 1)
	if err := b.StartForwarder(ctx, func(ev realtime.Event) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := realtime.Event{Channel: "user-1", Type: realtime.EventJobProgress, Data: map[string]any{"progress": 40.0}}
	if err := b.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case ev := <-got:
		if ev.Channel != want.Channel || ev.Type != want.Type || ev.Data["progress"] != 40.0 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestMemoryBus(t *testing.T) {
	exerciseBus(t, NewMemoryBus(logger.NewNop()))
}

func TestRedisBus(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	b, err := NewRedisBus(logger.NewNop(), rdb)
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	exerciseBus(t, b)
}
