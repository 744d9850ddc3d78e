package dispatcher

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

// claimDueEvents locks due pending events and marks them queued in one
// transaction. SKIP LOCKED keeps concurrent dispatcher replicas from claiming
// the same rows.
func claimDueEvents(db *gorm.DB, batchSize int) ([]models.SyncEvent, error) {
	var events []models.SyncEvent

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			SELECT se.*
			FROM sync_events se
			WHERE se.status = 'pending' AND se.next_attempt_at <= now()
			ORDER BY se.next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, batchSize).Scan(&events).Error
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		return tx.Model(&models.SyncEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     models.EventQueued,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// revertEventToPending pushes a claimed event back to pending after a publish
// failure so the next cycle retries it.
func revertEventToPending(db *gorm.DB, eventID uuid.UUID, delay time.Duration) error {
	return db.Model(&models.SyncEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status":          models.EventPending,
			"next_attempt_at": time.Now().Add(delay),
			"updated_at":      time.Now(),
		}).Error
}
