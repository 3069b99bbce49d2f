package queries_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/adapters/memory"
	"crowdstage/contexts/trust-safety/vote-admission/application/queries"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func seededBoard(t *testing.T) queries.LeaderboardUseCase {
	t.Helper()
	var seed []entities.VoteRecord
	add := func(email string, target entities.ContentRef, flagged bool, offset time.Duration) {
		seed = append(seed, entities.VoteRecord{
			VoteID:    fmt.Sprintf("vote-%d", len(seed)+1),
			Email:     email,
			Target:    target,
			Flagged:   flagged,
			WindowKey: queryNow.Add(offset).Format("2006-01-02"),
			CreatedAt: queryNow.Add(offset),
		})
	}
	song1 := entities.ContentRef{Type: entities.ContentTypeSong, ID: 1}
	song2 := entities.ContentRef{Type: entities.ContentTypeSong, ID: 2}
	video := entities.ContentRef{Type: entities.ContentTypeVideo, ID: 9}

	add("a@example.com", song1, false, -3*time.Hour)
	add("b@example.com", song1, false, -2*time.Hour)
	add("c@example.com", song1, true, -1*time.Hour)
	add("a@example.com", song2, false, -4*time.Hour)
	add("b@example.com", video, false, -30*time.Minute)

	return queries.LeaderboardUseCase{Ledger: memory.NewStore(seed)}
}

func TestLeaderboardHoldsFlaggedVotesOut(t *testing.T) {
	board := seededBoard(t)

	tallies, err := board.Leaderboard(context.Background(), "song")
	require.NoError(t, err)
	require.Len(t, tallies, 2)

	assert.Equal(t, int64(1), tallies[0].Target.ID)
	assert.Equal(t, 2, tallies[0].Votes)
	assert.Equal(t, 1, tallies[0].Flagged)
	assert.Equal(t, 1, tallies[1].Votes)
}

func TestLeaderboardUnfilteredCoversAllTypes(t *testing.T) {
	board := seededBoard(t)

	tallies, err := board.Leaderboard(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, tallies, 3)
}

func TestLeaderboardRejectsUnknownContentType(t *testing.T) {
	board := seededBoard(t)

	_, err := board.Leaderboard(context.Background(), "podcast")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidListFilter)
}

func TestStatsCountsDistinctVoters(t *testing.T) {
	board := seededBoard(t)

	stats, err := board.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalVotes)
	assert.Equal(t, 1, stats.FlaggedVotes)
	assert.Equal(t, 3, stats.DistinctVoters)
	assert.Equal(t, 4, stats.ByContentType[entities.ContentTypeSong])
	assert.Equal(t, 1, stats.ByContentType[entities.ContentTypeVideo])
}

func TestVoterHistoryNewestFirst(t *testing.T) {
	board := seededBoard(t)

	votes, err := board.VoterHistory(context.Background(), "A@example.com")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.True(t, votes[0].CreatedAt.After(votes[1].CreatedAt))
}

func TestVoterHistoryRejectsMalformedEmail(t *testing.T) {
	board := seededBoard(t)

	_, err := board.VoterHistory(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidListFilter)
}

func TestFlagQueueOldestFirst(t *testing.T) {
	board := seededBoard(t)

	flagged, err := board.FlagQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "c@example.com", flagged[0].Email)
}
