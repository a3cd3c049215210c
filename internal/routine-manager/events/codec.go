package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"daily-routine-service/internal/models"
)

// Encode marshals e as a protobuf Struct.
func Encode(e CompletionEvent) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"id":        e.ID.String(),
		"task_id":   e.TaskID,
		"status":    string(e.Status),
		"period":    string(e.Period),
		"date":      e.Date,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build completion event struct: %w", err)
	}
	return proto.Marshal(s)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (CompletionEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return CompletionEvent{}, fmt.Errorf("failed to unmarshal completion event: %w", err)
	}
	fields := s.GetFields()
	str := func(name string) string { return fields[name].GetStringValue() }

	id, err := uuid.Parse(str("id"))
	if err != nil {
		return CompletionEvent{}, fmt.Errorf("completion event id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		return CompletionEvent{}, fmt.Errorf("completion event timestamp: %w", err)
	}
	e := CompletionEvent{
		ID:        id,
		TaskID:    str("task_id"),
		Status:    models.Status(str("status")),
		Period:    models.Period(str("period")),
		Date:      str("date"),
		Timestamp: ts,
	}
	if e.TaskID == "" {
		return CompletionEvent{}, fmt.Errorf("completion event %s has no task id", id)
	}
	if !e.Status.Terminal() {
		return CompletionEvent{}, fmt.Errorf("completion event %s has non-terminal status %q", id, e.Status)
	}
	return e, nil
}
