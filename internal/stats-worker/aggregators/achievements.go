package aggregators

import (
	"context"
	"sort"
	"sync"
	"time"

	"daily-routine-service/internal/models"
	"daily-routine-service/internal/routine-manager/events"
)

// Achievement ids
const (
	AchievementFirstTask     = "first_task"
	AchievementMorningMaster = "morning_master"
	AchievementEveningExpert = "evening_expert"
	AchievementPerfectDay    = "perfect_day"
)

type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

type dayCount struct {
	morning, evening, total int
}

type achievementRule struct {
	id, name, description string
	reached               func(total int, day dayCount) bool
}

// AchievementTracker unlocks each achievement at most once. Day-based achievements compare
// the completions of a single date with the catalog size of the matching period.
type AchievementTracker struct {
	mu       sync.Mutex
	rules    []achievementRule
	total    int
	days     map[string]*dayCount
	unlocked map[string]Achievement
	onUnlock func(Achievement)
}

// TaskCounts is the catalog view the achievement thresholds come from.
type TaskCounts interface {
	Len() int
	CountByPeriod(p models.Period) int
}

// NewAchievementTracker derives its thresholds from the catalog. onUnlock may be nil.
func NewAchievementTracker(counts TaskCounts, onUnlock func(Achievement)) *AchievementTracker {
	morning := counts.CountByPeriod(models.PeriodMorning)
	evening := counts.CountByPeriod(models.PeriodEvening)
	all := counts.Len()
	return &AchievementTracker{
		rules: []achievementRule{
			{AchievementFirstTask, "First Step!", "Complete your first task", func(total int, _ dayCount) bool {
				return total >= 1
			}},
			{AchievementMorningMaster, "Morning Master", "Complete all morning tasks", func(_ int, d dayCount) bool {
				return morning > 0 && d.morning >= morning
			}},
			{AchievementEveningExpert, "Evening Expert", "Complete all evening tasks", func(_ int, d dayCount) bool {
				return evening > 0 && d.evening >= evening
			}},
			{AchievementPerfectDay, "Perfect Day", "Complete all tasks in one day", func(_ int, d dayCount) bool {
				return all > 0 && d.total >= all
			}},
		},
		days:     make(map[string]*dayCount),
		unlocked: make(map[string]Achievement),
		onUnlock: onUnlock,
	}
}

func (a *AchievementTracker) Name() string { return NameAchievements }

func (a *AchievementTracker) Apply(_ context.Context, e events.CompletionEvent) error {
	if e.Status != models.StatusChecked {
		return nil
	}
	a.mu.Lock()
	a.total++
	day := a.days[e.Date]
	if day == nil {
		day = &dayCount{}
		a.days[e.Date] = day
	}
	day.total++
	switch e.Period {
	case models.PeriodMorning:
		day.morning++
	case models.PeriodEvening:
		day.evening++
	}

	var fresh []Achievement
	for _, r := range a.rules {
		if _, done := a.unlocked[r.id]; done || !r.reached(a.total, *day) {
			continue
		}
		ach := Achievement{ID: r.id, Name: r.name, Description: r.description, UnlockedAt: e.Timestamp}
		a.unlocked[r.id] = ach
		fresh = append(fresh, ach)
	}
	a.mu.Unlock()

	if a.onUnlock != nil {
		for _, ach := range fresh {
			a.onUnlock(ach)
		}
	}
	return nil
}

// Unlocked returns the unlocked achievements ordered by unlock time.
func (a *AchievementTracker) Unlocked() []Achievement {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Achievement, 0, len(a.unlocked))
	for _, ach := range a.unlocked {
		out = append(out, ach)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UnlockedAt.Before(out[j].UnlockedAt)
	})
	return out
}
