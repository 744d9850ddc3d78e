package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/rabbitmq"
)

// Dispatcher periodically republishes pending sync events whose next attempt
// is due. It is the safety net for publish failures and the driver of the
// event-level retry backoff.
type Dispatcher struct {
	cfg    *config.DispatcherConfig
	conn   *rabbitmq.Connection
	db     *gorm.DB
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(cfg *config.DispatcherConfig, conn *rabbitmq.Connection, db *gorm.DB, logger *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		conn:   conn,
		db:     db,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the polling loop.
func (d *Dispatcher) Start() error {
	if d.cfg.SyncRoutingKey == "" {
		return fmt.Errorf("sync routing key is required")
	}
	if d.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	go d.run()

	d.logger.Info("Dispatcher started",
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("batch_size", d.cfg.BatchSize),
	)
	return nil
}

// Stop halts the polling loop.
func (d *Dispatcher) Stop() error {
	d.cancel()
	d.logger.Info("Dispatcher stopped")
	return nil
}

func (d *Dispatcher) run() {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchDue(); err != nil {
				d.logger.Error("Dispatch cycle failed", zap.Error(err))
			}
		}
	}
}

// DispatchDue claims due pending events, marks them queued and publishes one
// sync message per event. Events that fail to publish are pushed back to
// pending so a later cycle retries them.
func (d *Dispatcher) DispatchDue() error {
	events, err := claimDueEvents(d.db, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	d.logger.Info("Dispatching due sync events", zap.Int("count", len(events)))

	failed := 0
	for _, event := range events {
		if err := d.publishSyncMessage(event.ID.String()); err != nil {
			failed++
			d.logger.Error("Failed to publish sync message",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			if revertErr := revertEventToPending(d.db, event.ID, 1*time.Minute); revertErr != nil {
				d.logger.Error("Failed to revert event to pending",
					zap.String("event_id", event.ID.String()),
					zap.Error(revertErr),
				)
			}
		}
	}

	if failed > 0 {
		d.logger.Warn("Some sync events failed to publish",
			zap.Int("failed_count", failed),
			zap.Int("total_count", len(events)),
		)
	}
	return nil
}

func (d *Dispatcher) publishSyncMessage(eventID string) error {
	body, err := json.Marshal(models.SyncMessage{EventID: eventID})
	if err != nil {
		return fmt.Errorf("failed to marshal sync message: %w", err)
	}

	if err := d.conn.PublishMessage(d.cfg.SyncExchange, d.cfg.SyncRoutingKey, false, false, body); err != nil {
		return fmt.Errorf("failed to publish to sync queue: %w", err)
	}
	return nil
}
