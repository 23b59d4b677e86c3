package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer starts consuming from the event queue and returns the delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.source.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Event consumer started",
		slog.String("consumer_tag", w.workerID),
	)

	return deliveries, nil
}

// startMessageDispatcher decodes deliveries and hands them to the ingress handler.
// Enqueueing is in-memory, so every decodable delivery is acknowledged right away.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			event, err := decodeFileEvent(delivery.Body)
			if err != nil {
				w.logger.Error("Failed to parse file event",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed events go to the dead-letter queue
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed event",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			w.ingress.HandleFileEvent(ctx, event)

			if ackErr := delivery.Ack(false); ackErr != nil {
				w.logger.Error("Failed to ACK event",
					slog.String("error", ackErr.Error()),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			}
		}
	}
}

func decodeFileEvent(body []byte) (*domain.FileEvent, error) {
	var event domain.FileEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	return &event, nil
}
