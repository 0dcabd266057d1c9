package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "ouvrage/contexts/program-oversight/delegation-authority/application"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

// OutboxRelay drains pending audit-event outbox rows to the message bus.
// Rows are written transactionally with chain events, so a relayed message
// always refers to an event that exists on the chain.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "delegation.audit"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "delegation_outbox_list_failed",
			"module", "program-oversight/delegation-authority",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "delegation_outbox_decode_failed",
				"module", "program-oversight/delegation-authority",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "delegation_outbox_publish_failed",
				"module", "program-oversight/delegation-authority",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "delegation_outbox_mark_published_failed",
				"module", "program-oversight/delegation-authority",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "delegation_outbox_relay_completed",
			"module", "program-oversight/delegation-authority",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
