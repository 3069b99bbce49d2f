package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "crowdstage/contexts/trust-safety/vote-admission/application"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

// ResolveFlagCommand applies a human moderation decision to a flagged vote.
// "clear" returns the vote to the public tally; "uphold" keeps it flagged.
type ResolveFlagCommand struct {
	VoteID  string
	Action  string
	ActorID string
}

// ReviewUseCase owns the single mutation the ledger permits after insert:
// toggling the flagged marker.
type ReviewUseCase struct {
	Ledger ports.VoteLedger
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc ReviewUseCase) ResolveFlag(ctx context.Context, cmd ResolveFlagCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	action := strings.ToLower(strings.TrimSpace(cmd.Action))
	voteID := strings.TrimSpace(cmd.VoteID)
	logger.Info("flag review processing started",
		"event", "admission_review_started",
		"module", "trust-safety/vote-admission",
		"layer", "application",
		"vote_id", voteID,
		"action", action,
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if action != "clear" && action != "uphold" {
		logger.Warn("flag review validation failed",
			"event", "admission_review_validation_failed",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"vote_id", voteID,
			"action", action,
		)
		return domainerrors.ErrInvalidReviewAction
	}
	if voteID == "" {
		return domainerrors.ErrInvalidReviewAction
	}

	vote, err := uc.Ledger.GetVote(ctx, voteID)
	if err != nil {
		return err
	}
	if !vote.Flagged {
		return domainerrors.ErrVoteNotFlagged
	}

	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}

	if action == "clear" {
		if err := uc.Ledger.SetVoteFlag(ctx, voteID, false); err != nil {
			return err
		}
	}

	eventType := "vote.flag_cleared"
	if action == "uphold" {
		eventType = "vote.flag_upheld"
	}
	if err := uc.appendReviewEvent(ctx, eventType, voteID, strings.TrimSpace(cmd.ActorID), now); err != nil {
		return err
	}

	logger.Info("flag review applied",
		"event", "admission_review_applied",
		"module", "trust-safety/vote-admission",
		"layer", "application",
		"vote_id", voteID,
		"action", action,
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	return nil
}

func (uc ReviewUseCase) appendReviewEvent(
	ctx context.Context,
	eventType string,
	voteID string,
	actorID string,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"vote_id":     voteID,
		"actioned_by": actorID,
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-admission",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "vote_id",
		PartitionKey:     voteID,
		Data:             payload,
	})
}
