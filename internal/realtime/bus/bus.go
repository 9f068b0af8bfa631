package bus

import (
	"context"
	"sync"

	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}

// memoryBus delivers events in-process. It backs single-replica deployments
// without redis and tests.
type memoryBus struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs []func(realtime.Event)
}

func NewMemoryBus(log *logger.Logger) Bus {
	return &memoryBus{log: log.With("service", "MemoryEventBus")}
}

func (b *memoryBus) Publish(ctx context.Context, ev realtime.Event) error {
	b.mu.RLock()
	subs := append([]func(realtime.Event){}, b.subs...)
	b.mu.RUnlock()
	b.log.Debug("event published", "channel", ev.Channel, "event", ev.Type)
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error {
	if onEvent == nil {
		return nil
	}
	b.mu.Lock()
	b.subs = append(b.subs, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *memoryBus) Close() error { return nil }
