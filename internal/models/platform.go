package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlatformStatus represents whether a platform instance is usable
type PlatformStatus string

const (
	PlatformStatusActive   PlatformStatus = "active"
	PlatformStatusInactive PlatformStatus = "inactive"
)

// Platform represents a configured instance of an external platform
// (e.g. "github", "reddit") together with its credentials/config bag.
type Platform struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Type      string         `gorm:"index;not null" json:"type"` // adapter registry key
	AvatarURL string         `json:"avatar_url"`
	Config    JSON           `gorm:"type:json" json:"config"` // open config bag, decoded by the adapter
	Status    PlatformStatus `gorm:"default:'active'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Platform) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsActive returns true if the platform can be fetched from
func (p *Platform) IsActive() bool {
	return p.Status == PlatformStatusActive
}
