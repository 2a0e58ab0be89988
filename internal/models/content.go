package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentType represents the primary kind of a content item
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeLink  ContentType = "link"
)

// Content represents one deduplicated content item ingested from a platform
type Content struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	PlatformID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"platform_id"`
	Platform    *Platform   `gorm:"foreignKey:PlatformID" json:"platform,omitempty"`
	UserID      uuid.UUID   `gorm:"type:uuid;index;not null" json:"user_id"`
	User        *TrackedUser `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ContentID   string      `gorm:"index;not null" json:"content_id"` // platform-native ID
	Title       string      `json:"title"`
	Body        string      `gorm:"type:text" json:"body"`
	URL         string      `json:"url"`
	ContentType ContentType `gorm:"default:'text'" json:"content_type"`
	MediaURLs   StringSlice `gorm:"type:json" json:"media_urls"`
	Metadata    JSON        `gorm:"type:json" json:"metadata"`
	PublishedAt *time.Time  `gorm:"index" json:"published_at"` // nil when the platform timestamp was unparsable
	Hash        string      `gorm:"uniqueIndex;not null" json:"hash"` // dedup fingerprint, unique across the store
	IsRead      bool        `gorm:"default:false" json:"is_read"`
	IsFavorite  bool        `gorm:"default:false" json:"is_favorite"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Content) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
