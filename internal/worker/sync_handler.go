package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	syncer "github.com/Beleza-Asureti/arrms-onspring-integration/internal/sync"
)

// attemptStatus is the event disposition after one executed attempt.
type attemptStatus struct {
	Status        string
	NextAttemptAt time.Time
	LastError     *string
}

// HandleSyncMessage executes one sync attempt for the event. The row is
// locked while moving to processing, the sync itself runs outside any
// transaction, and the attempt log plus event update commit together.
func HandleSyncMessage(
	ctx context.Context,
	db *gorm.DB,
	cfg *config.WorkerConfig,
	orchestrator *syncer.Orchestrator,
	logger *zap.Logger,
	eventIDStr string,
) error {
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		logger.Error("Invalid event_id in sync message",
			zap.String("event_id", eventIDStr),
			zap.Error(err),
		)
		// ACK, the message is unprocessable
		return nil
	}

	var event *models.SyncEvent
	err = db.Transaction(func(tx *gorm.DB) error {
		event, err = lockAndLoadSyncEvent(tx, eventIDStr)
		if err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return updateEventToProcessing(tx, eventID)
	})
	if err != nil {
		logger.Error("Failed to lock sync event",
			zap.String("event_id", eventIDStr),
			zap.Error(err),
		)
		return err
	}
	if event == nil {
		logger.Info("Event not found or not in queued status, skipping",
			zap.String("event_id", eventIDStr),
		)
		return nil
	}

	startedAt := time.Now()
	outcome := orchestrator.SyncOne(ctx, event.AppID, event.RecordID, event.TriggerType)
	finishedAt := time.Now()

	newAttemptCount := event.AttemptCount + 1
	maxAttempts := event.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = cfg.MaxAttempts
	}
	disposition := decideNextStatus(outcome, newAttemptCount, maxAttempts)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := createSyncAttemptLog(tx, eventID, newAttemptCount, startedAt, finishedAt, outcome, disposition.LastError); err != nil {
			return fmt.Errorf("failed to create sync attempt log: %w", err)
		}
		if err := updateEventAfterAttempt(tx, eventID, disposition.Status, newAttemptCount, disposition.NextAttemptAt, disposition.LastError); err != nil {
			return fmt.Errorf("failed to update event after attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to record sync attempt",
			zap.String("event_id", eventIDStr),
			zap.Error(err),
		)
		return err
	}

	switch disposition.Status {
	case models.EventSucceeded:
		logger.Info("Record sync succeeded",
			zap.String("event_id", eventIDStr),
			zap.Int("record_id", event.RecordID),
			zap.Int("files_synced", outcome.FilesSynced),
			zap.Int("files_failed", outcome.FilesFailed),
		)
	case models.EventFailed:
		logger.Warn("Record sync failed permanently",
			zap.String("event_id", eventIDStr),
			zap.Int("record_id", event.RecordID),
			zap.Int("attempt_count", newAttemptCount),
			zap.Stringp("last_error", disposition.LastError),
		)
	default:
		logger.Info("Record sync will be retried",
			zap.String("event_id", eventIDStr),
			zap.Int("record_id", event.RecordID),
			zap.Int("attempt_count", newAttemptCount),
			zap.Time("next_attempt_at", disposition.NextAttemptAt),
		)
	}

	return nil
}

// decideNextStatus maps a sync outcome to the event's next state. Only
// transient failures are retried; validation, not-found and fatal failures
// are terminal on the first attempt.
func decideNextStatus(outcome models.SyncOutcome, attemptCount, maxAttempts int) attemptStatus {
	now := time.Now()

	if outcome.Success {
		return attemptStatus{Status: models.EventSucceeded, NextAttemptAt: now}
	}

	lastError := "sync failed"
	if len(outcome.Errors) > 0 {
		lastError = strings.Join(outcome.Errors, "; ")
	}

	if outcome.Transient && attemptCount < maxAttempts {
		delay := CalculateBackoffDelay(attemptCount + 1)
		return attemptStatus{
			Status:        models.EventPending,
			NextAttemptAt: now.Add(delay),
			LastError:     &lastError,
		}
	}

	return attemptStatus{Status: models.EventFailed, NextAttemptAt: now, LastError: &lastError}
}
