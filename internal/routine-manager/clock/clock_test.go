package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-routine-service/internal/models"
)

func TestSource_TodayUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on May 1st is 01:30 on May 2nd in Berlin (CEST)
	fc := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC))
	s := New(fc, loc)

	date, tod := s.Today()
	assert.Equal(t, "2024-05-02", date)
	assert.Equal(t, models.MustTimeOfDay("01:30"), tod)

	date, tod = New(fc, time.UTC).Today()
	assert.Equal(t, "2024-05-01", date)
	assert.Equal(t, models.MustTimeOfDay("23:30"), tod)
}

func TestSource_CurrentWithSimulatedTime(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := New(fc, time.UTC)

	sim := models.MustTimeOfDay("07:15")
	date, tod := s.Current(&sim)
	assert.Equal(t, "2024-05-01", date)
	assert.Equal(t, sim, tod)

	_, tod = s.Current(nil)
	assert.Equal(t, models.MustTimeOfDay("12:00"), tod)
}

func TestSource_AdvanceAndDateBefore(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 23, 59, 30, 0, time.UTC))
	s := New(fc, time.UTC)

	fc.Advance(time.Minute)
	date, tod := s.Today()
	assert.Equal(t, "2024-05-02", date)
	assert.Equal(t, models.MustTimeOfDay("00:00"), tod)
	assert.Equal(t, "2024-04-25", s.DateBefore(7))
}
