package worker

import (
	"context"
	"fmt"
	"log/slog"

	"classroll/internal/metrics"
	"classroll/internal/notify"
	"classroll/internal/queue"
)

// AbsenceAlerter creates alert notifications for one roster day.
type AbsenceAlerter interface {
	AlertOnAbsences(ctx context.Context, classID int, date string) ([]notify.Notification, error)
}

// Worker consumes queue messages and runs the follow-up work for saved rosters.
type Worker struct {
	q       queue.Queue
	alerter AbsenceAlerter
	log     *slog.Logger
}

func New(q queue.Queue, alerter AbsenceAlerter, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{q: q, alerter: alerter, log: log}
}

// Run processes messages until ctx is cancelled or the queue closes.
// A failed message is logged and counted, never retried.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	w.log.Info("worker started")
	for msg := range messages {
		if err := w.Handle(ctx, msg); err != nil {
			metrics.QueueMessages.WithLabelValues(msg.Type, "error").Inc()
			w.log.Error("message failed", "id", msg.ID, "type", msg.Type, "err", err)
		}
	}
	w.log.Info("worker stopped")
	return nil
}

// Handle processes one message. Unknown types are skipped.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeRosterSaved:
		var ev queue.RosterSaved
		if err := msg.Decode(&ev); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		alerts, err := w.alerter.AlertOnAbsences(ctx, ev.ClassID, ev.Date)
		if err != nil {
			return fmt.Errorf("absence alerts for class %d on %s: %w", ev.ClassID, ev.Date, err)
		}
		w.log.Info("roster processed", "class_id", ev.ClassID, "date", ev.Date, "alerts", len(alerts))
		metrics.QueueMessages.WithLabelValues(msg.Type, "ok").Inc()
	default:
		metrics.QueueMessages.WithLabelValues(msg.Type, "skipped").Inc()
		w.log.Debug("skipping message", "id", msg.ID, "type", msg.Type)
	}
	return nil
}
