package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

func (uc CastVoteUseCase) appendVoteEvent(
	ctx context.Context,
	eventType string,
	record entities.VoteRecord,
	occurredAt time.Time,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newAdmissionEnvelope(eventID, eventType, record, occurredAt)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func newAdmissionEnvelope(
	eventID string,
	eventType string,
	record entities.VoteRecord,
	occurredAt time.Time,
) (ports.EventEnvelope, error) {
	// Events are partitioned by target so per-entry consumers see votes for
	// one entry in order.
	data := map[string]any{
		"vote_id":      record.VoteID,
		"content_type": string(record.Target.Type),
		"content_id":   record.Target.ID,
		"suspicion":    record.Suspicion,
		"flagged":      record.Flagged,
		"window_key":   record.WindowKey,
		"occurred_at":  occurredAt.Format(time.RFC3339),
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-admission",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "content_id",
		PartitionKey:     string(record.Target.Type) + ":" + strconv.FormatInt(record.Target.ID, 10),
		Data:             payload,
	}, nil
}
