// Package scheduler selects the single active routine task for a point in time.
package scheduler

import "daily-routine-service/internal/models"

// ActiveTask returns the id of the task that should be shown at now, or false when none is.
//
// A task is a candidate when its record in records is pending and now lies in its inclusive
// window. Among candidates the earliest start wins, then the earliest catalog position.
// Tasks without a record are never candidates.
func ActiveTask(tasks []models.TaskDefinition, records models.StatusSet, now models.TimeOfDay) (string, bool) {
	best := -1
	for i, d := range tasks {
		if !d.Contains(now) {
			continue
		}
		st, ok := records.StatusOf(d.ID)
		if !ok || st != models.StatusPending {
			continue
		}
		// strict comparison keeps the earlier catalog entry on equal starts
		if best < 0 || d.StartTime < tasks[best].StartTime {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return tasks[best].ID, true
}

// NextBoundary returns the first window edge strictly after now at which the result of
// ActiveTask can change, or false when no edge remains today.
func NextBoundary(tasks []models.TaskDefinition, now models.TimeOfDay) (models.TimeOfDay, bool) {
	var next models.TimeOfDay
	found := false
	consider := func(t models.TimeOfDay) {
		if t > now && (!found || t < next) {
			next, found = t, true
		}
	}
	for _, d := range tasks {
		consider(d.StartTime)
		// a window closes one minute after its inclusive end
		if d.EndTime < models.NewTimeOfDay(23, 59) {
			consider(d.EndTime + 1)
		}
	}
	return next, found
}
