package store

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daily-routine-service/internal/models"
	routineDB "daily-routine-service/internal/routine-manager/db"
)

// GormStatusStore keeps one routineDB.DailyStatus row per date.
type GormStatusStore struct {
	DB      *gorm.DB
	tasks   []models.TaskDefinition
	timeout time.Duration
}

func NewGormStatusStore(db *gorm.DB, tasks []models.TaskDefinition, timeout time.Duration) *GormStatusStore {
	return &GormStatusStore{DB: db, tasks: tasks, timeout: timeout}
}

func (s *GormStatusStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GormStatusStore) Load(ctx context.Context, date string) (models.StatusSet, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out models.StatusSet
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row routineDB.DailyStatus
		err := tx.Where("date = ?", date).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh := models.NewDay(date, s.tasks)
			payload, err := encodePayload(fresh)
			if err != nil {
				return err
			}
			row = routineDB.DailyStatus{Date: date, Payload: string(payload), Version: 1}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				hlog.Infof("StatusStore: initialized %d pending tasks for %s", len(fresh), date)
				out = fresh
				return nil
			}
			// another writer initialized the date first
			if err := tx.Where("date = ?", date).Take(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		records, err := decodePayload(date, []byte(row.Payload), s.tasks)
		if err == nil {
			out = records
			return nil
		}
		hlog.Warnf("%v", &models.DataIntegrityWarning{Date: date, Reason: "corrupt stored payload, re-initializing to pending: " + err.Error()})
		fresh := models.NewDay(date, s.tasks)
		payload, err := encodePayload(fresh)
		if err != nil {
			return err
		}
		if err := tx.Model(&row).Updates(map[string]interface{}{"payload": string(payload), "version": row.Version + 1}).Error; err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Date: date, Err: err}
	}
	return out, nil
}

func (s *GormStatusStore) Save(ctx context.Context, date string, records models.StatusSet) error {
	payload, err := encodePayload(records)
	if err != nil {
		return &models.PersistenceError{Op: "save", Date: date, Err: err}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := routineDB.DailyStatus{Date: date, Payload: string(payload), Version: 1}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":    row.Payload,
			"version":    gorm.Expr("daily_statuses.version + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return &models.PersistenceError{Op: "save", Date: date, Err: err}
	}
	return nil
}

func (s *GormStatusStore) Prune(ctx context.Context, before string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.DB.WithContext(ctx).Where("date < ?", before).Delete(&routineDB.DailyStatus{})
	if res.Error != nil {
		return 0, &models.PersistenceError{Op: "prune", Date: before, Err: res.Error}
	}
	return res.RowsAffected, nil
}
