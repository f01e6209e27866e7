package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/services/publisher"
)

// Dispatcher fans an opportunity out to every configured sink. Sinks are
// advisory: a failed delivery is logged and the scan continues.
type Dispatcher struct {
	notifier *Notifier
	pub      publisher.Publisher
	log      *logger.Logger
}

// NewDispatcher wires the sinks; pub may be nil when no stream is configured
func NewDispatcher(n *Notifier, pub publisher.Publisher) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		pub:      pub,
		log:      logger.ForNotifier(),
	}
}

// Dispatch delivers one opportunity to the chat and the stream
func (d *Dispatcher) Dispatch(ctx context.Context, o Opportunity) {
	if d.pub != nil {
		data, err := json.Marshal(newOpportunityEvent(o, time.Now()))
		if err != nil {
			d.log.Error().Err(err).Msg("Failed to encode opportunity event")
		} else if err := d.pub.Publish(o.Result.Route.String(), data); err != nil {
			d.log.Warn().Err(err).Msg("Failed to publish opportunity event")
		}
	}

	if d.notifier != nil {
		if err := d.notifier.Send(ctx, FormatOpportunity(o)); err != nil {
			d.log.Warn().Str("item", o.ItemName).Err(err).Msg("Opportunity alert dropped")
		}
	}
}

// Status forwards a status line to the chat sink
func (d *Dispatcher) Status(ctx context.Context, format string, args ...interface{}) {
	if d.notifier != nil {
		d.notifier.Status(ctx, format, args...)
	}
}
