package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/adapters/memory"
	"crowdstage/contexts/trust-safety/vote-admission/application/commands"
	"crowdstage/contexts/trust-safety/vote-admission/application/guard"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var castNow = time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)

func newCastFixture(t *testing.T) (*memory.Store, commands.CastVoteUseCase) {
	t.Helper()
	store := memory.NewStore(nil)
	store.SetNow(castNow)
	store.SetContent(ports.ContentProjection{
		Ref:      entities.ContentRef{Type: entities.ContentTypeSong, ID: 42},
		Title:    "Midnight Run",
		Status:   "approved",
		Timezone: "UTC",
	})
	useCase := commands.CastVoteUseCase{
		Ledger: store,
		Guard: guard.Guard{
			Catalog:  store,
			Denylist: store,
			Config:   guard.DefaultConfig(),
		},
		Geo:    store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}
	return store, useCase
}

func songCommand() commands.CastVoteCommand {
	score := 0.9
	return commands.CastVoteCommand{
		Email:             "Voter@Example.com",
		DisplayName:       "Voter",
		ContentType:       "song",
		ContentID:         42,
		IPAddress:         "203.0.113.10",
		UserAgent:         "Mozilla/5.0",
		DeviceFingerprint: "fp-1",
		BotScore:          &score,
	}
}

func TestCastVotePersistsNormalizedRecord(t *testing.T) {
	store, useCase := newCastFixture(t)

	result, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)

	require.True(t, result.Decision.Admitted())
	assert.Equal(t, "voter@example.com", result.Record.Email)
	assert.Equal(t, "2026-03-14", result.Record.WindowKey)
	assert.False(t, result.Record.Flagged)

	stored, err := store.GetVote(context.Background(), result.Record.VoteID)
	require.NoError(t, err)
	assert.Equal(t, result.Record, stored)
}

func TestCastVoteEmitsAdmittedEvent(t *testing.T) {
	store, useCase := newCastFixture(t)

	result, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "vote.admitted", pending[0].EventType)
	assert.Equal(t, "song:42", pending[0].PartitionKey)

	var envelope ports.EventEnvelope
	require.NoError(t, json.Unmarshal(pending[0].Payload, &envelope))
	assert.Equal(t, "vote-admission", envelope.SourceService)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.NotEmpty(t, result.Record.VoteID)
}

func TestCastVoteSecondAttemptSameDayRejected(t *testing.T) {
	_, useCase := newCastFixture(t)

	first, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)
	require.True(t, first.Decision.Admitted())

	second, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)

	assert.Equal(t, entities.OutcomeRejected, second.Decision.Outcome)
	assert.Equal(t, entities.RejectDuplicateVote, second.Decision.Reason)
	assert.Empty(t, second.Record.VoteID)
}

// racingLedger simulates a concurrent vote winning between the guard's
// duplicate read and the insert: the read sees a clean window, the insert
// hits the unique index.
type racingLedger struct {
	*memory.Store
}

func (l *racingLedger) HasDuplicateVote(
	_ context.Context,
	_ string,
	_ entities.ContentRef,
	_ time.Time,
	_ time.Time,
) (bool, error) {
	return false, nil
}

func (l *racingLedger) InsertVote(_ context.Context, _ entities.VoteRecord) error {
	return domainerrors.ErrDuplicateLedgerEntry
}

func TestCastVoteFoldsLostInsertRaceIntoDuplicate(t *testing.T) {
	store, useCase := newCastFixture(t)
	useCase.Ledger = &racingLedger{Store: store}

	result, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)

	assert.Equal(t, entities.OutcomeRejected, result.Decision.Outcome)
	assert.Equal(t, entities.RejectDuplicateVote, result.Decision.Reason)
	assert.Empty(t, result.Record.VoteID)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCastVoteRejectionSkipsLedgerAndOutbox(t *testing.T) {
	store, useCase := newCastFixture(t)

	cmd := songCommand()
	low := 0.2
	cmd.BotScore = &low

	result, err := useCase.CastVote(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, entities.RejectLowTrustScore, result.Decision.Reason)

	votes, err := store.ListVotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, votes)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCastVoteFlagsHighSuspicion(t *testing.T) {
	store, useCase := newCastFixture(t)

	// Six distinct voters share the fingerprint and IP inside the sharing
	// window, then a seventh shows up with no user agent.
	for i := 0; i < 6; i++ {
		cmd := songCommand()
		cmd.Email = string(rune('a'+i)) + "@farm.example"
		cmd.DeviceFingerprint = "fp-farm"
		cmd.IPAddress = "198.51.100.7"
		_, err := useCase.CastVote(context.Background(), cmd)
		require.NoError(t, err)
	}

	cmd := songCommand()
	cmd.Email = "fresh@example.com"
	cmd.DeviceFingerprint = "fp-farm"
	cmd.IPAddress = "198.51.100.7"
	cmd.UserAgent = ""

	result, err := useCase.CastVote(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, entities.OutcomeAdmittedFlagged, result.Decision.Outcome)
	assert.True(t, result.Record.Flagged)

	stored, err := store.GetVote(context.Background(), result.Record.VoteID)
	require.NoError(t, err)
	assert.True(t, stored.Flagged)
}

func TestCastVoteGeoOutageDegradesToEmptyLocation(t *testing.T) {
	store, useCase := newCastFixture(t)
	store.FailGeo(errors.New("geo down"))

	result, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)

	assert.True(t, result.Decision.Admitted())
	assert.True(t, result.Record.Geo.IsZero())
}

func TestResolveFlagClearRemovesMarker(t *testing.T) {
	store, useCase := newCastFixture(t)
	review := commands.ReviewUseCase{
		Ledger: store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}

	for i := 0; i < 6; i++ {
		cmd := songCommand()
		cmd.Email = string(rune('a'+i)) + "@farm.example"
		cmd.DeviceFingerprint = "fp-farm"
		cmd.IPAddress = "198.51.100.7"
		_, err := useCase.CastVote(context.Background(), cmd)
		require.NoError(t, err)
	}
	cmd := songCommand()
	cmd.Email = "fresh@example.com"
	cmd.DeviceFingerprint = "fp-farm"
	cmd.IPAddress = "198.51.100.7"
	cmd.UserAgent = ""
	result, err := useCase.CastVote(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, result.Record.Flagged)

	err = review.ResolveFlag(context.Background(), commands.ResolveFlagCommand{
		VoteID:  result.Record.VoteID,
		Action:  "clear",
		ActorID: "mod-1",
	})
	require.NoError(t, err)

	stored, err := store.GetVote(context.Background(), result.Record.VoteID)
	require.NoError(t, err)
	assert.False(t, stored.Flagged)
}

func TestResolveFlagRejectsUnflaggedVote(t *testing.T) {
	store, useCase := newCastFixture(t)
	review := commands.ReviewUseCase{Ledger: store, Clock: store, IDGen: store}

	result, err := useCase.CastVote(context.Background(), songCommand())
	require.NoError(t, err)
	require.False(t, result.Record.Flagged)

	err = review.ResolveFlag(context.Background(), commands.ResolveFlagCommand{
		VoteID: result.Record.VoteID,
		Action: "uphold",
	})
	assert.ErrorIs(t, err, domainerrors.ErrVoteNotFlagged)
}

func TestResolveFlagRejectsUnknownAction(t *testing.T) {
	store, _ := newCastFixture(t)
	review := commands.ReviewUseCase{Ledger: store, Clock: store, IDGen: store}

	err := review.ResolveFlag(context.Background(), commands.ResolveFlagCommand{
		VoteID: "vote-1",
		Action: "escalate",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidReviewAction)
}
