package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/MagnunAVF/shortlink-service/internal/events"
	"github.com/MagnunAVF/shortlink-service/internal/logger"
)

var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// Worker batches click deliveries and flushes them when the batch is full or
// the flush interval elapses. The primary sink decides ack or nack; the
// counter sink is best effort.
type Worker struct {
	primary       Sink
	counters      Sink
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger

	events     []events.ClickEvent
	deliveries []amqp091.Delivery
}

func NewWorker(primary, counters Sink, batchSize int, flushInterval time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Worker{
		primary:       primary,
		counters:      counters,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           logger.For(context.Background(), "analytics"),
	}
}

// Run consumes msgs until ctx is cancelled or msgs is closed. Pending events
// are flushed before returning.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp091.Delivery) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return nil

		case d, ok := <-msgs:
			if !ok {
				w.flush(context.Background())
				return ErrDeliveriesClosed
			}
			ev, err := events.Decode(d.Body)
			if err != nil {
				w.log.Error("Error decoding message. Rejecting.", "err", err)
				d.Reject(false)
				continue
			}
			w.events = append(w.events, ev)
			w.deliveries = append(w.deliveries, d)

			if len(w.events) >= w.batchSize {
				w.flush(ctx)
				ticker.Reset(w.flushInterval)
			}

		case <-ticker.C:
			if len(w.events) > 0 {
				w.log.Info("Timer flush: processing queued events", "count", len(w.events))
				w.flush(ctx)
			}
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	if len(w.events) == 0 {
		return
	}
	evs, deliveries := w.events, w.deliveries
	w.events, w.deliveries = nil, nil

	batch := Aggregate(evs)
	if err := w.primary.Apply(ctx, batch); err != nil {
		w.log.Error("Failed to process batch. Nacking messages.", "count", len(deliveries), "err", err)
		nackAll(deliveries)
		return
	}
	if w.counters != nil {
		if err := w.counters.Apply(ctx, batch); err != nil {
			w.log.Warn("Failed to update click counters", "err", err)
		}
	}

	ackAll(deliveries)
	w.log.Info("Successfully processed and acked messages", "count", len(deliveries), "keys", len(batch))
}

func ackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Ack(false)
	}
}

func nackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Nack(false, true)
	}
}
