package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Period groups catalog tasks for the aggregators. The scheduler ignores it.
type Period string

const (
	PeriodMorning Period = "morning"
	PeriodEvening Period = "evening"
)

func (p Period) Valid() bool { return p == PeriodMorning || p == PeriodEvening }

// Status is the per-day state of one catalog task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusChecked   Status = "checked"
	StatusUnchecked Status = "unchecked"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusChecked || s == StatusUnchecked
}

// Terminal reports whether the status is a user decision (checked or unchecked).
func (s Status) Terminal() bool { return s == StatusChecked || s == StatusUnchecked }

// DateLayout is the calendar date format used as the persistence key.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock minute within one day, stored as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay accepts strict 24h "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(((hour*60+minute)%minutesPerDay + minutesPerDay) % minutesPerDay)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TaskDefinition is one catalog entry. Catalog entries never change at runtime.
type TaskDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Period      Period    `json:"period"`
	Asset       string    `json:"asset,omitempty"`
}

// Contains reports whether t lies inside the inclusive task window.
func (d TaskDefinition) Contains(t TimeOfDay) bool {
	return t >= d.StartTime && t <= d.EndTime
}

// StatusRecord is the persisted state of one task on one date.
type StatusRecord struct {
	TaskID string `json:"taskId"`
	Date   string `json:"-"`
	Status Status `json:"status"`
}

// StatusSet holds the records of one date in catalog order.
type StatusSet []StatusRecord

// StatusOf returns the status recorded for taskID, if any.
func (s StatusSet) StatusOf(taskID string) (Status, bool) {
	for _, r := range s {
		if r.TaskID == taskID {
			return r.Status, true
		}
	}
	return "", false
}

// Clone returns an independent copy.
func (s StatusSet) Clone() StatusSet {
	if s == nil {
		return nil
	}
	out := make(StatusSet, len(s))
	copy(out, s)
	return out
}

// NewDay builds the all-pending record set for date.
func NewDay(date string, catalog []TaskDefinition) StatusSet {
	out := make(StatusSet, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, StatusRecord{TaskID: d.ID, Date: date, Status: StatusPending})
	}
	return out
}

// TaskStatus pairs a catalog entry with its status for the current date.
type TaskStatus struct {
	Task   TaskDefinition `json:"task"`
	Status Status         `json:"status"`
}
