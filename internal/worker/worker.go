package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/consumer"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/rabbitmq"
	syncer "github.com/Beleza-Asureti/arrms-onspring-integration/internal/sync"
)

// Worker consumes sync messages from the queue and executes record syncs.
type Worker struct {
	cfg          *config.WorkerConfig
	conn         *rabbitmq.Connection
	db           *gorm.DB
	orchestrator *syncer.Orchestrator
	logger       *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	consumerTag  string
	started      bool
}

func NewWorker(cfg *config.WorkerConfig, conn *rabbitmq.Connection, db *gorm.DB, orchestrator *syncer.Orchestrator, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:          cfg,
		conn:         conn,
		db:           db,
		orchestrator: orchestrator,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		consumerTag:  fmt.Sprintf("sync-worker-%d", time.Now().Unix()),
	}
}

// Start declares the sync queue and begins consuming.
func (w *Worker) Start() error {
	if w.cfg.SyncQueue == "" {
		return fmt.Errorf("sync queue is required")
	}

	if err := w.conn.DeclareQueue(w.cfg.SyncQueue); err != nil {
		return err
	}

	if err := w.startConsuming(); err != nil {
		return err
	}

	w.started = true
	w.logger.Info("Worker started and consuming messages",
		zap.String("sync_queue", w.cfg.SyncQueue),
		zap.String("consumer_tag", w.consumerTag),
	)
	return nil
}

func (w *Worker) startConsuming() error {
	if err := w.conn.SetQoS(w.cfg.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := w.conn.ConsumeMessages(
		w.cfg.SyncQueue,
		w.consumerTag,
		false, // autoAck, we ACK manually
		false, // exclusive
		false, // noLocal
		false, // noWait
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", w.cfg.SyncQueue, err)
	}

	go w.processMessages(messages)
	return nil
}

// Stop cancels the consumer and halts message processing.
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker", zap.String("consumer_tag", w.consumerTag))
	w.cancel()

	if ch := w.conn.GetChannel(); ch != nil {
		if err := ch.Cancel(w.consumerTag, false); err != nil {
			w.logger.Error("Failed to cancel consumer",
				zap.String("consumer_tag", w.consumerTag),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("Worker stopped")
	return nil
}

func (w *Worker) processMessages(messages <-chan amqp.Delivery) {
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Worker context cancelled, stopping message processing")
			return
		case msg, ok := <-messages:
			if !ok {
				w.logger.Warn("Message channel closed, attempting to restart consumer",
					zap.String("sync_queue", w.cfg.SyncQueue),
				)
				// Channel closed, keep retrying until consuming resumes or
				// the worker is stopped.
				for w.started {
					select {
					case <-w.ctx.Done():
						return
					default:
					}

					time.Sleep(2 * time.Second)
					if !w.conn.IsHealthy() {
						continue
					}

					if err := w.startConsuming(); err != nil {
						w.logger.Error("Failed to restart consuming after channel close, will retry",
							zap.Error(err),
						)
						time.Sleep(5 * time.Second)
						continue
					}

					w.logger.Info("Restarted consumer after channel close")
					return
				}
				return
			}
			consumer.ProcessMessage(w.cfg.SyncQueue, msg, w)
		}
	}
}

// HandleMessage implements consumer.MessageHandler.
func (w *Worker) HandleMessage(body []byte) error {
	var syncMsg models.SyncMessage
	if err := json.Unmarshal(body, &syncMsg); err != nil {
		w.logger.Error("Failed to unmarshal sync message",
			zap.Error(err),
			zap.ByteString("body", body),
		)
		return fmt.Errorf("failed to unmarshal sync message: %w", err)
	}

	return HandleSyncMessage(w.ctx, w.db, w.cfg, w.orchestrator, w.logger, syncMsg.EventID)
}
