package models

import (
	"time"

	"github.com/google/uuid"
)

// Trigger types recorded on sync events and in external metadata.
const (
	TriggerWebhook   = "webhook"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Sync event lifecycle statuses.
const (
	EventPending    = "pending"
	EventQueued     = "queued"
	EventProcessing = "processing"
	EventSucceeded  = "succeeded"
	EventFailed     = "failed"
)

// SyncEvent is the durable record of one requested synchronization. It is an
// audit trail and redelivery anchor only; it never gates an upload, so
// duplicate webhook deliveries still create duplicate ARRMS records (accepted
// limitation).
type SyncEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AppID         int       `gorm:"not null" json:"app_id"`
	RecordID      int       `gorm:"not null" json:"record_id"`
	TriggerType   string    `gorm:"not null" json:"trigger_type"`
	Status        string    `gorm:"not null;default:'pending'" json:"status"`
	AttemptCount  int       `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts   int       `gorm:"not null;default:5" json:"max_attempts"`
	NextAttemptAt time.Time `gorm:"not null;default:now()" json:"next_attempt_at"`
	LastError     *string   `json:"last_error"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SyncEvent) TableName() string {
	return "sync_events"
}

// SyncAttemptLog records the result of one executed attempt for an event.
type SyncAttemptLog struct {
	ID           int64     `gorm:"primary_key;autoIncrement" json:"id"`
	SyncEventID  uuid.UUID `gorm:"type:uuid;not null" json:"sync_event_id"`
	SyncEvent    SyncEvent `gorm:"foreignKey:SyncEventID" json:"sync_event,omitempty"`
	AttemptNo    int       `gorm:"not null" json:"attempt_no"`
	StartedAt    time.Time `gorm:"not null" json:"started_at"`
	FinishedAt   time.Time `gorm:"not null" json:"finished_at"`
	Success      bool      `gorm:"not null" json:"success"`
	FinalState   string    `gorm:"not null" json:"final_state"`
	FilesSynced  int       `gorm:"not null;default:0" json:"files_synced"`
	FilesFailed  int       `gorm:"not null;default:0" json:"files_failed"`
	ErrorSummary *string   `json:"error_summary"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SyncAttemptLog) TableName() string {
	return "sync_attempt_log"
}

// SyncMessage is the message published to the sync queue.
type SyncMessage struct {
	EventID string `json:"event_id"`
}
