package db

import (
	"time"
)

// DailyStatus holds the routine state of one calendar date.
type DailyStatus struct {
	Date      string    `json:"date" gorm:"primaryKey;size:10"`    // YYYY-MM-DD
	Payload   string    `json:"payload" gorm:"type:text;not null"` // JSON array of {"taskId","status"} in catalog order
	Version   int       `json:"version" gorm:"not null"`           // bumped on every overwrite
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

func (DailyStatus) TableName() string { return "daily_statuses" }
