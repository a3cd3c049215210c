package aggregators

import (
	"context"
	"sync"

	"daily-routine-service/internal/models"
	"daily-routine-service/internal/routine-manager/events"
)

// Stats are the running completion counters.
type Stats struct {
	TotalCompleted   int    `json:"total_completed"`
	MorningCompleted int    `json:"morning_completed"`
	EveningCompleted int    `json:"evening_completed"`
	CompletedToday   int    `json:"completed_today"`
	Skipped          int    `json:"skipped"`
	Date             string `json:"date,omitempty"`
}

// StatsTracker counts completions and skips. CompletedToday follows the most recent event
// date and restarts at zero when a newer date shows up.
type StatsTracker struct {
	mu    sync.Mutex
	stats Stats
}

func NewStatsTracker() *StatsTracker { return &StatsTracker{} }

func (s *StatsTracker) Name() string { return NameStats }

func (s *StatsTracker) Apply(_ context.Context, e events.CompletionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Date > s.stats.Date {
		s.stats.Date = e.Date
		s.stats.CompletedToday = 0
	}
	switch e.Status {
	case models.StatusChecked:
		s.stats.TotalCompleted++
		switch e.Period {
		case models.PeriodMorning:
			s.stats.MorningCompleted++
		case models.PeriodEvening:
			s.stats.EveningCompleted++
		}
		if e.Date == s.stats.Date {
			s.stats.CompletedToday++
		}
	case models.StatusUnchecked:
		s.stats.Skipped++
	}
	return nil
}

func (s *StatsTracker) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
