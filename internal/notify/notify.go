// Package notify is the best-effort side channel for state transitions.
// The engine emits events; delivery is this package's problem and its
// failures never reach the caller of the triggering operation.
package notify

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"churchcare/internal/ctxutil"
	"churchcare/internal/db"
	"churchcare/internal/metrics"
	"churchcare/internal/models"
	"churchcare/internal/observability"
)

type Event struct {
	RecipientID int64                   `json:"recipient_id"`
	Kind        models.NotificationKind `json:"kind"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	RelatedID   string                  `json:"related_id,omitempty"`
}

// Sender pushes a notification text to an external channel. Optional.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Dispatcher struct {
	queue  Queue
	db     *sql.DB
	sender Sender // nil = persist only
	log    *zap.SugaredLogger
}

func NewDispatcher(queue Queue, database *sql.DB, sender Sender, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{queue: queue, db: database, sender: sender, log: log}
}

// Emit enqueues an event, swallowing any failure.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if err := d.queue.Publish(ctx, ev); err != nil {
		metrics.NotificationsDropped.Inc()
		d.log.Warnw("notification enqueue failed", "kind", ev.Kind, "recipient", ev.RecipientID, "err", err)
		return
	}
	metrics.NotificationsQueued.Inc()
}

// Run drains the queue until ctx is cancelled: persists a notification
// row and, when a sender is configured and the recipient has a linked
// chat, delivers the text. Every failure is logged and skipped.
func (d *Dispatcher) Run(ctx context.Context) error {
	events, err := d.queue.Consume(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		d.deliver(ctx, ev)
	}
	return nil
}

func (d *Dispatcher) deliver(parent context.Context, ev Event) {
	// the drain loop runs on a process-lifetime context
	ctx, cancel := ctxutil.WithDBTimeout(parent)
	defer cancel()

	n := models.Notification{
		RecipientID: ev.RecipientID,
		Kind:        ev.Kind,
		Title:       ev.Title,
		Message:     ev.Message,
	}
	if ev.RelatedID != "" {
		n.RelatedID = &ev.RelatedID
	}
	if _, err := db.InsertNotification(ctx, d.db, n); err != nil {
		metrics.NotificationsDropped.Inc()
		observability.CaptureErr(err)
		d.log.Warnw("notification persist failed", "kind", ev.Kind, "recipient", ev.RecipientID, "err", err)
		return
	}

	if d.sender == nil {
		return
	}
	recipient, err := db.GetActorByID(ctx, d.db, ev.RecipientID)
	if err != nil || recipient == nil || recipient.ChatID == nil {
		return
	}
	text := ev.Title + "\n" + ev.Message
	if err := d.sender.Send(ctx, *recipient.ChatID, text); err != nil {
		metrics.NotificationsDropped.Inc()
		d.log.Warnw("notification delivery failed", "recipient", ev.RecipientID, "err", err)
	}
}
