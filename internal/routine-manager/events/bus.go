package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"daily-routine-service/internal/models"
)

const DefaultBufferSize = 64

// Handler consumes one event. A returned error is logged and the event dropped.
type Handler func(ctx context.Context, e CompletionEvent) error

type subscriber struct {
	name    string
	ch      chan CompletionEvent
	handler Handler
}

// Bus fans completion events out to subscribers. Each subscriber gets its own buffered
// queue and goroutine and sees events in publish order. Publish never blocks: when a
// subscriber's queue is full the event is dropped for that subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscriber
	closed  bool
	buffer  int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{buffer: buffer, ctx: ctx, cancel: cancel}
}

func (b *Bus) Subscribe(name string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return models.ErrClosed
	}
	sub := &subscriber{name: name, ch: make(chan CompletionEvent, b.buffer), handler: h}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	go b.run(sub)
	hlog.Infof("EventBus: subscriber %q registered", name)
	return nil
}

func (b *Bus) run(sub *subscriber) {
	defer b.wg.Done()
	for e := range sub.ch {
		if err := b.deliver(sub, e); err != nil {
			hlog.Warnf("EventBus: subscriber %q failed on event %s (task %s): %v", sub.name, e.ID, e.TaskID, err)
		}
	}
}

func (b *Bus) deliver(sub *subscriber, e CompletionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.handler(b.ctx, e)
}

func (b *Bus) Publish(e CompletionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			hlog.Warnf("EventBus: subscriber %q queue full, dropping event %s (task %s)", sub.name, e.ID, e.TaskID)
		}
	}
}

// Dropped reports how many deliveries were dropped because a queue was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close stops accepting events, lets subscribers drain their queues and waits for them.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.mu.Unlock()
	b.wg.Wait()
	b.cancel()
}
