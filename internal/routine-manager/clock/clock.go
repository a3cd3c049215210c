// Package clock reads the routine date and time-of-day.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"

	"daily-routine-service/internal/models"
)

// Source reads wall-clock time in a fixed location.
type Source struct {
	clock clockwork.Clock
	loc   *time.Location
}

// New returns a Source over c. A nil location means time.Local.
func New(c clockwork.Clock, loc *time.Location) *Source {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Source{clock: c, loc: loc}
}

// Now returns the current instant in the configured location.
func (s *Source) Now() time.Time { return s.clock.Now().In(s.loc) }

// Today returns the current date and wall-clock time-of-day.
func (s *Source) Today() (string, models.TimeOfDay) {
	now := s.Now()
	return now.Format(models.DateLayout), models.NewTimeOfDay(now.Hour(), now.Minute())
}

// Current is Today with the time-of-day replaced by simulated when set. The date always
// follows the wall clock.
func (s *Source) Current(simulated *models.TimeOfDay) (string, models.TimeOfDay) {
	date, tod := s.Today()
	if simulated != nil {
		tod = *simulated
	}
	return date, tod
}

// DateBefore returns the date days before today.
func (s *Source) DateBefore(days int) string {
	return s.Now().AddDate(0, 0, -days).Format(models.DateLayout)
}
