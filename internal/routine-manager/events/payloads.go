package events

import (
	"time"

	"github.com/google/uuid"

	"daily-routine-service/internal/models"
)

// CompletionEvent is emitted by RoutineService after a task leaves pending. It is consumed
// in-process by the aggregators and, when Kafka is enabled, by the stats worker.
type CompletionEvent struct {
	ID        uuid.UUID     `json:"id"`
	TaskID    string        `json:"task_id"`
	Status    models.Status `json:"status"` // checked or unchecked
	Period    models.Period `json:"period"`
	Date      string        `json:"date"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewCompletionEvent(task models.TaskDefinition, status models.Status, date string, at time.Time) CompletionEvent {
	return CompletionEvent{
		ID:        uuid.New(),
		TaskID:    task.ID,
		Status:    status,
		Period:    task.Period,
		Date:      date,
		Timestamp: at,
	}
}

// Key is the Kafka message key. Events of one task on one date share a partition.
func (e CompletionEvent) Key() []byte {
	return []byte(e.Date + "/" + e.TaskID)
}
