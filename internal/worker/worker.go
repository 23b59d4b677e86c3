package worker

import (
	"context"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource yields chat events from the broker
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger   *slog.Logger
	Source   DeliverySource
	Ingress  *Ingress
	Pipeline *Pipeline
	WorkerID string
}

// Worker consumes chat file events and feeds them to the ingress handler
type Worker struct {
	logger   *slog.Logger
	source   DeliverySource
	ingress  *Ingress
	pipeline *Pipeline
	workerID string
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:   cfg.Logger,
		source:   cfg.Source,
		ingress:  cfg.Ingress,
		pipeline: cfg.Pipeline,
		workerID: cfg.WorkerID,
	}
}

// Start subscribes to the event queue and dispatches events until ctx is canceled
// or the delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.wg.Add(1)
	defer w.wg.Done()
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop waits for the dispatcher to exit and for the in-flight batch to drain
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.wg.Wait()
	w.pipeline.Wait()
	w.logger.Info("Worker stopped")
}
