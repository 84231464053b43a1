package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/domain/bus"
	"github.com/events2go/notify-hub/internal/domain/notification"
	"github.com/events2go/notify-hub/internal/obs"
)

// RecordSource loads the full record for a broadcast event that matched a
// local connection. Only replicas that actually hold the connection pay for
// the read.
type RecordSource interface {
	GetByID(ctx context.Context, recipientID string, id int64) (*notification.Notification, error)
}

var (
	mEventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_events_consumed_total",
		Help: "Broadcast events received from the bus.",
	})
	mEventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_events_skipped_total",
		Help: "Events for recipients with no local connection.",
	})
	mEventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_events_delivered_total",
		Help: "Events pushed to at least one local connection.",
	})
)

// Dispatcher is the single bus ingress of one replica: it receives every
// broadcast event, filters against the local registry and pushes matching
// payloads synchronously. Events are dispatched one at a time per replica,
// which keeps per-recipient ordering from the partitioned bus intact.
type Dispatcher struct {
	log      *zap.Logger
	sub      bus.Subscriber
	registry *Registry
	source   RecordSource
}

func NewDispatcher(log *zap.Logger, sub bus.Subscriber, reg *Registry, src RecordSource) *Dispatcher {
	return &Dispatcher{
		log:      log.With(zap.String("component", "hub.dispatcher")),
		sub:      sub,
		registry: reg,
		source:   src,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	err := d.sub.Subscribe(ctx, d.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bus subscribe: %w", err)
	}
	return ctx.Err()
}

// refreshFrame is pushed for the aggregate "mark all read" event
// (notification_id null): it carries no record and tells the client to
// re-pull through the query API.
type refreshFrame struct {
	Refresh bool `json:"refresh"`
}

func (d *Dispatcher) Handle(ctx context.Context, ev bus.Event) error {
	mEventsConsumed.Inc()

	if ev.RecipientID == "" {
		d.log.Warn("event without recipient; dropping", zap.String("kind", string(ev.Kind)))
		return nil
	}
	if !d.registry.Present(ev.RecipientID) {
		mEventsSkipped.Inc()
		return nil
	}

	var payload []byte
	if ev.NotificationID == nil {
		b, err := json.Marshal(refreshFrame{Refresh: true})
		if err != nil {
			return err
		}
		payload = b
	} else {
		rec, err := d.source.GetByID(ctx, ev.RecipientID, *ev.NotificationID)
		if err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				// Deleted or never committed; the client reconciles via pull.
				d.log.Warn("event for missing record",
					zap.Int64("notification_id", *ev.NotificationID))
				return nil
			}
			return fmt.Errorf("load record %d: %w", *ev.NotificationID, err)
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
		payload = b
	}

	if d.registry.SendIfPresent(ev.RecipientID, payload) {
		mEventsDelivered.Inc()
		obs.WithTrace(ctx, d.log).Debug("pushed",
			zap.String("recipient_id", ev.RecipientID),
			zap.String("kind", string(ev.Kind)),
		)
	}
	return nil
}
