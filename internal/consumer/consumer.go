package consumer

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
)

// MessageHandler processes one raw queue message body.
type MessageHandler interface {
	HandleMessage(body []byte) error
}

// ProcessMessage runs the handler for one delivery and ACKs on success.
// Handler failures NACK without requeue; queue-level redelivery is handled by
// the dispatcher, not the broker.
func ProcessMessage(queue string, msg amqp.Delivery, handler MessageHandler) {
	logger.Debug("Received message from queue",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)

	if err := handler.HandleMessage(msg.Body); err != nil {
		logger.Error("Failed to process message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		rejectMessage(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		rejectMessage(msg)
		return
	}

	logger.Debug("Message from queue processed",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
}

func rejectMessage(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		logger.Error("Failed to nack a message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
