package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleScope distinguishes the single global toggle from per-user overrides
type ScheduleScope string

const (
	ScheduleScopeGlobal ScheduleScope = "global"
	ScheduleScopeUser   ScheduleScope = "user"
)

// ScheduleConfig controls whether the scheduled trigger fires for a scope.
// The global row gates everything; a user row overrides for that user only.
type ScheduleConfig struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Scope     ScheduleScope `gorm:"index;not null" json:"scope"`
	UserID    *uuid.UUID    `gorm:"type:uuid;index" json:"user_id"` // nil for the global row
	IsEnabled bool          `gorm:"default:true" json:"is_enabled"`
	Cron      string        `json:"cron"` // cadence hint; the daemon reads the global row's value
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *ScheduleConfig) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
