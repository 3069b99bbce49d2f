package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "crowdstage/contexts/trust-safety/vote-admission/application"
	"crowdstage/contexts/trust-safety/vote-admission/application/guard"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

// CastVoteCommand is the write-model input for one vote attempt.
type CastVoteCommand struct {
	Email             string
	DisplayName       string
	ContentType       string
	ContentID         int64
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	BotScore          *float64
}

// CastVoteResult carries the admission decision and, when admitted, the
// persisted ledger record.
type CastVoteResult struct {
	Decision entities.AdmissionDecision
	Record   entities.VoteRecord
}

// CastVoteUseCase wires the admission guard to its collaborators and owns the
// persistence the guard deliberately leaves to its caller: geo resolution,
// ledger insert, duplicate-race folding, and outbox event emission.
type CastVoteUseCase struct {
	Ledger ports.VoteLedger
	Guard  guard.Guard
	Geo    ports.GeoResolver
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc CastVoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	attempt := entities.VoteAttempt{
		Email:       strings.TrimSpace(cmd.Email),
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Target: entities.ContentRef{
			Type: entities.ContentType(strings.ToLower(strings.TrimSpace(cmd.ContentType))),
			ID:   cmd.ContentID,
		},
		IPAddress:         strings.TrimSpace(cmd.IPAddress),
		UserAgent:         strings.TrimSpace(cmd.UserAgent),
		DeviceFingerprint: strings.TrimSpace(cmd.DeviceFingerprint),
		BotScore:          cmd.BotScore,
	}
	logger.Info("vote attempt processing started",
		"event", "admission_attempt_started",
		"module", "trust-safety/vote-admission",
		"layer", "application",
		"target_type", string(attempt.Target.Type),
		"target_id", attempt.Target.ID,
	)

	attempt.Geo = uc.resolveGeo(ctx, attempt.IPAddress, logger)

	decision, err := uc.Guard.Evaluate(ctx, attempt, uc.Ledger, now)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !decision.Admitted() {
		logger.Info("vote attempt rejected",
			"event", "admission_attempt_rejected",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"reason", string(decision.Reason),
			"target_type", string(attempt.Target.Type),
			"target_id", attempt.Target.ID,
		)
		return CastVoteResult{Decision: decision}, nil
	}

	email, _, err := guard.NormalizeEmail(attempt.Email)
	if err != nil {
		return CastVoteResult{}, domainerrors.ErrInvalidAttempt
	}
	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	record := entities.VoteRecord{
		VoteID:            voteID,
		Email:             email,
		DisplayName:       attempt.DisplayName,
		Target:            attempt.Target,
		IPAddress:         attempt.IPAddress,
		UserAgent:         attempt.UserAgent,
		DeviceFingerprint: attempt.DeviceFingerprint,
		BotScore:          attempt.BotScore,
		Geo:               attempt.Geo,
		Suspicion:         decision.Suspicion,
		Flagged:           decision.Outcome == entities.OutcomeAdmittedFlagged,
		WindowKey:         decision.WindowKey,
		CreatedAt:         now,
	}

	// The guard's duplicate check is an optimistic fast path. The ledger's
	// unique index on (email, target, window) is authoritative; a violation
	// here means a concurrent vote won the race and this one is a duplicate,
	// not a server error.
	if err := uc.Ledger.InsertVote(ctx, record); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateLedgerEntry) {
			logger.Info("vote insert lost duplicate race",
				"event", "admission_duplicate_race",
				"module", "trust-safety/vote-admission",
				"layer", "application",
				"target_type", string(attempt.Target.Type),
				"target_id", attempt.Target.ID,
				"window_key", decision.WindowKey,
			)
			return CastVoteResult{Decision: entities.Rejected(entities.RejectDuplicateVote)}, nil
		}
		return CastVoteResult{}, err
	}

	eventType := "vote.admitted"
	if record.Flagged {
		eventType = "vote.flagged"
	}
	if err := uc.appendVoteEvent(ctx, eventType, record, now); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote admitted",
		"event", "admission_vote_admitted",
		"module", "trust-safety/vote-admission",
		"layer", "application",
		"vote_id", record.VoteID,
		"target_type", string(record.Target.Type),
		"target_id", record.Target.ID,
		"suspicion", record.Suspicion,
		"flagged", record.Flagged,
	)
	return CastVoteResult{Decision: decision, Record: record}, nil
}

func (uc CastVoteUseCase) resolveGeo(ctx context.Context, ip string, logger *slog.Logger) entities.GeoLocation {
	if uc.Geo == nil || strings.TrimSpace(ip) == "" {
		return entities.GeoLocation{}
	}
	geo, err := uc.Geo.Resolve(ctx, ip)
	if err != nil {
		// Geo lookup is advisory; a failed resolver only weakens the
		// country-mismatch signal.
		logger.Warn("geo lookup degraded",
			"event", "admission_geo_degraded",
			"module", "trust-safety/vote-admission",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.GeoLocation{}
	}
	return geo
}

func (uc CastVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
