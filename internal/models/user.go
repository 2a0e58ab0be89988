package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackedUser represents a platform user whose content is being aggregated
type TrackedUser struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	PlatformID    uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_platform_user;not null" json:"platform_id"`
	Platform      *Platform   `gorm:"foreignKey:PlatformID" json:"platform,omitempty"`
	UserID        string      `gorm:"uniqueIndex:idx_platform_user;not null" json:"user_id"` // platform-native ID
	Username      string      `gorm:"not null" json:"username"`
	DisplayName   string      `json:"display_name"`
	AvatarURL     string      `json:"avatar_url"`
	Bio           string      `gorm:"type:text" json:"bio"`
	ProfileURL    string      `json:"profile_url"`
	Tags          StringSlice `gorm:"type:json" json:"tags"`
	IsActive      bool        `gorm:"default:true" json:"is_active"`
	LastFetchedAt *time.Time  `gorm:"index" json:"last_fetched_at"` // watermark, advanced only on a successful run
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *TrackedUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
