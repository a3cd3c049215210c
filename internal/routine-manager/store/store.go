// Package store persists the per-day routine status sets.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"daily-routine-service/internal/models"
	"daily-routine-service/pkg/validation"
)

// StatusStore is the durable, date-scoped status persistence.
//
// Load returns the records of date, creating and persisting an all-pending set the first
// time a date is seen. Save overwrites the set of date. Prune deletes every date strictly
// before the given one. Failures are reported as *models.PersistenceError.
type StatusStore interface {
	Load(ctx context.Context, date string) (models.StatusSet, error)
	Save(ctx context.Context, date string, records models.StatusSet) error
	Prune(ctx context.Context, before string) (int64, error)
}

const (
	payloadSchemaJSON = `{"type": "array", "items": {"type": "object"}}`
	recordSchemaJSON  = `{
		"type": "object",
		"required": ["taskId", "status"],
		"properties": {
			"taskId": {"type": "string", "minLength": 1},
			"status": {"enum": ["pending", "checked", "unchecked"]}
		}
	}`
)

var (
	payloadSchema = validation.MustCompile("daily_status.json", payloadSchemaJSON)
	recordSchema  = validation.MustCompile("status_record.json", recordSchemaJSON)
)

// SetStatus returns a copy of records, the set of date, with the record of taskID set to
// status and stamped with date. records is never modified. An unknown task leaves the copy
// unchanged and logs a DataIntegrityWarning.
func SetStatus(date string, records models.StatusSet, taskID string, status models.Status) models.StatusSet {
	out := records.Clone()
	for i := range out {
		if out[i].TaskID == taskID {
			out[i].Status = status
			out[i].Date = date
			return out
		}
	}
	hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, TaskID: taskID, Reason: "no record to update, status change ignored"})
	return out
}

func encodePayload(records models.StatusSet) ([]byte, error) {
	for _, r := range records {
		if r.TaskID == "" {
			return nil, fmt.Errorf("record without task id")
		}
		if !r.Status.Valid() {
			return nil, fmt.Errorf("task %q has invalid status %q", r.TaskID, r.Status)
		}
	}
	if records == nil {
		records = models.StatusSet{}
	}
	return json.Marshal(records)
}

// decodePayload validates a stored payload and aligns it with the catalog. A payload that
// is not a JSON array of objects is corrupt and returned as an error. Malformed entries,
// unknown ids and duplicates are skipped, and catalog tasks without a usable entry default to
// pending, each with a logged warning.
func decodePayload(date string, data []byte, tasks []models.TaskDefinition) (models.StatusSet, error) {
	if err := payloadSchema.ValidateJSON(data); err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	byID := make(map[string]models.Status, len(raw))
	var order []string
	for i, item := range raw {
		if err := recordSchema.ValidateJSON(item); err != nil {
			hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, Reason: fmt.Sprintf("malformed record #%d skipped: %v", i, err)})
			continue
		}
		var r models.StatusRecord
		if err := json.Unmarshal(item, &r); err != nil {
			hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, Reason: fmt.Sprintf("malformed record #%d skipped: %v", i, err)})
			continue
		}
		if _, dup := byID[r.TaskID]; dup {
			hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, TaskID: r.TaskID, Reason: "duplicate stored record skipped"})
			continue
		}
		byID[r.TaskID] = r.Status
		order = append(order, r.TaskID)
	}

	known := make(map[string]struct{}, len(tasks))
	out := make(models.StatusSet, 0, len(tasks))
	for _, d := range tasks {
		known[d.ID] = struct{}{}
		st, ok := byID[d.ID]
		if !ok {
			hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, TaskID: d.ID, Reason: "missing stored record defaulted to pending"})
			st = models.StatusPending
		}
		out = append(out, models.StatusRecord{TaskID: d.ID, Date: date, Status: st})
	}
	for _, id := range order {
		if _, ok := known[id]; !ok {
			hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, TaskID: id, Reason: "stored record for unknown task skipped"})
		}
	}
	return out, nil
}
