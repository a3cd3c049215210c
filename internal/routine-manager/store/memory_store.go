package store

import (
	"context"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"daily-routine-service/internal/models"
)

// MemoryStatusStore keeps encoded payloads in memory (dev/test use). Payloads go through the
// same encoding as the SQL store, so round-trip behaviour is identical.
type MemoryStatusStore struct {
	mu       sync.Mutex
	tasks    []models.TaskDefinition
	payloads map[string][]byte
}

func NewMemoryStatusStore(tasks []models.TaskDefinition) *MemoryStatusStore {
	return &MemoryStatusStore{tasks: tasks, payloads: make(map[string][]byte)}
}

func (s *MemoryStatusStore) Load(ctx context.Context, date string) (models.StatusSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.PersistenceError{Op: "load", Date: date, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.payloads[date]; ok {
		records, err := decodePayload(date, data, s.tasks)
		if err == nil {
			return records, nil
		}
		hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, Reason: "corrupt stored payload, re-initializing to pending: " + err.Error()})
	}

	fresh := models.NewDay(date, s.tasks)
	data, err := encodePayload(fresh)
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Date: date, Err: err}
	}
	s.payloads[date] = data
	return fresh, nil
}

func (s *MemoryStatusStore) Save(ctx context.Context, date string, records models.StatusSet) error {
	if err := ctx.Err(); err != nil {
		return &models.PersistenceError{Op: "save", Date: date, Err: err}
	}
	data, err := encodePayload(records)
	if err != nil {
		return &models.PersistenceError{Op: "save", Date: date, Err: err}
	}
	s.mu.Lock()
	s.payloads[date] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStatusStore) Prune(ctx context.Context, before string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &models.PersistenceError{Op: "prune", Date: before, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for date := range s.payloads {
		if date < before {
			delete(s.payloads, date)
			n++
		}
	}
	return n, nil
}

// PutRaw stores an arbitrary payload for date, bypassing encoding.
func (s *MemoryStatusStore) PutRaw(date string, data []byte) {
	s.mu.Lock()
	s.payloads[date] = append([]byte(nil), data...)
	s.mu.Unlock()
}

// Dates reports how many dates hold a payload.
func (s *MemoryStatusStore) Dates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}
