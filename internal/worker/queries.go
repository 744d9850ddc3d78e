package worker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

// lockAndLoadSyncEvent locks the event row for processing. Returns nil when
// the event does not exist or is not in queued status, which means a
// duplicate delivery already handled it.
func lockAndLoadSyncEvent(db *gorm.DB, eventID string) (*models.SyncEvent, error) {
	var event models.SyncEvent

	err := db.Raw(`
		SELECT se.*
		FROM sync_events se
		WHERE se.id = $1 AND se.status = 'queued'
		FOR UPDATE
	`, eventID).Scan(&event).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock and load sync event: %w", err)
	}

	// Raw SQL does not return ErrRecordNotFound; a zero id means no row.
	if event.ID == uuid.Nil {
		return nil, nil
	}
	return &event, nil
}

func updateEventToProcessing(db *gorm.DB, eventID uuid.UUID) error {
	return db.Model(&models.SyncEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status":     models.EventProcessing,
			"updated_at": time.Now(),
		}).Error
}

func updateEventAfterAttempt(
	db *gorm.DB,
	eventID uuid.UUID,
	status string,
	attemptCount int,
	nextAttemptAt time.Time,
	lastError *string,
) error {
	updates := map[string]interface{}{
		"status":          status,
		"attempt_count":   attemptCount,
		"next_attempt_at": nextAttemptAt,
		"updated_at":      time.Now(),
	}
	if lastError != nil {
		updates["last_error"] = *lastError
	}

	return db.Model(&models.SyncEvent{}).
		Where("id = ?", eventID).
		Updates(updates).Error
}

func createSyncAttemptLog(
	db *gorm.DB,
	eventID uuid.UUID,
	attemptNo int,
	startedAt, finishedAt time.Time,
	outcome models.SyncOutcome,
	errorSummary *string,
) error {
	attemptLog := models.SyncAttemptLog{
		SyncEventID:  eventID,
		AttemptNo:    attemptNo,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Success:      outcome.Success,
		FinalState:   string(outcome.FinalState),
		FilesSynced:  outcome.FilesSynced,
		FilesFailed:  outcome.FilesFailed,
		ErrorSummary: errorSummary,
		CreatedAt:    time.Now(),
	}
	return db.Create(&attemptLog).Error
}
