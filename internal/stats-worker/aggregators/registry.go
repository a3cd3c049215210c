package aggregators

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"

	"daily-routine-service/internal/routine-manager/events"
)

// Aggregator folds completion events into derived counters. Aggregators never feed back
// into routine state.
type Aggregator interface {
	Name() string
	Apply(ctx context.Context, e events.CompletionEvent) error
}

// Aggregator names
const (
	NameStats        = "stats"
	NameAchievements = "achievements"
	NameMetrics      = "metrics"
)

const dedupWindow = 4096

// Registry dispatches each event to every registered aggregator in registration order.
// Events are de-duplicated by id over the last dedupWindow events, so redelivered Kafka
// messages are counted once.
type Registry struct {
	mu          sync.Mutex
	aggregators map[string]Aggregator
	order       []string
	seen        map[uuid.UUID]struct{}
	ring        []uuid.UUID
	next        int
}

func NewRegistry() *Registry {
	return &Registry{
		aggregators: make(map[string]Aggregator),
		seen:        make(map[uuid.UUID]struct{}, dedupWindow),
		ring:        make([]uuid.UUID, 0, dedupWindow),
	}
}

func (r *Registry) Register(a Aggregator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hlog.Infof("Registering aggregator: %s", a.Name())
	if _, exists := r.aggregators[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.aggregators[a.Name()] = a
}

// Dispatch applies e to every aggregator. A failing aggregator does not stop the others;
// the failures are joined into the returned error.
func (r *Registry) Dispatch(ctx context.Context, e events.CompletionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID != uuid.Nil {
		if _, dup := r.seen[e.ID]; dup {
			hlog.Infof("Aggregators: duplicate event %s ignored", e.ID)
			return nil
		}
		r.remember(e.ID)
	}

	var errs []error
	for _, name := range r.order {
		if err := r.aggregators[name].Apply(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("aggregator %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) remember(id uuid.UUID) {
	if len(r.ring) < dedupWindow {
		r.ring = append(r.ring, id)
	} else {
		delete(r.seen, r.ring[r.next])
		r.ring[r.next] = id
		r.next = (r.next + 1) % dedupWindow
	}
	r.seen[id] = struct{}{}
}
