package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskType distinguishes manually triggered runs from scheduled ones
type TaskType string

const (
	TaskTypeManual    TaskType = "manual"
	TaskTypeScheduled TaskType = "scheduled"
)

// TaskStatus represents the lifecycle state of a fetch/export task.
// Transitions are strictly pending -> running -> {succeeded, failed};
// terminal states never transition again.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal returns true for succeeded/failed
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// FetchTask records one content ingestion attempt for one tracked user
type FetchTask struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	User           *TrackedUser `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TaskType       TaskType     `gorm:"not null" json:"task_type"`
	StartTime      *time.Time   `json:"start_time"` // requested window start, nil = from the beginning
	EndTime        *time.Time   `json:"end_time"`   // requested window end
	Cursor         string       `json:"cursor"`     // resume an interrupted pagination from here
	Status         TaskStatus   `gorm:"index;default:'pending'" json:"status"`
	FetchedCount   int          `gorm:"default:0" json:"fetched_count"`
	NewCount       int          `gorm:"default:0" json:"new_count"`
	DuplicateCount int          `gorm:"default:0" json:"duplicate_count"`
	ErrorKind      string       `json:"error_kind"`
	ErrorMessage   string       `gorm:"type:text" json:"error_message"`
	StartedAt      *time.Time   `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (t *FetchTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ExportFormat selects the export backend
type ExportFormat string

const (
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatSheets ExportFormat = "sheets"
)

// ExportTask records one export of a user's stored contents
type ExportTask struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	User          *TrackedUser `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Format        ExportFormat `gorm:"not null" json:"format"`
	Destination   string       `json:"destination"` // file path or spreadsheet ID
	Status        TaskStatus   `gorm:"index;default:'pending'" json:"status"`
	ExportedCount int          `gorm:"default:0" json:"exported_count"`
	ErrorMessage  string       `gorm:"type:text" json:"error_message"`
	StartedAt     *time.Time   `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (t *ExportTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
