package queries

import (
	"context"
	"sort"
	"strings"

	"crowdstage/contexts/trust-safety/vote-admission/application/guard"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

type LeaderboardUseCase struct {
	Ledger ports.VoteLedger
}

// Leaderboard tallies admitted votes per target, optionally scoped to one
// content type. Flagged records are counted separately and held out of the
// public tally until review clears them.
func (uc LeaderboardUseCase) Leaderboard(ctx context.Context, contentType string) ([]entities.TargetTally, error) {
	filter := entities.ContentType(strings.ToLower(strings.TrimSpace(contentType)))
	var (
		votes []entities.VoteRecord
		err   error
	)
	if filter == "" {
		votes, err = uc.Ledger.ListVotes(ctx)
	} else {
		if !filter.Valid() {
			return nil, domainerrors.ErrInvalidListFilter
		}
		votes, err = uc.Ledger.ListByContentType(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	tallies := aggregate(votes)
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Votes == tallies[j].Votes {
			if tallies[i].Target.Type == tallies[j].Target.Type {
				return tallies[i].Target.ID < tallies[j].Target.ID
			}
			return tallies[i].Target.Type < tallies[j].Target.Type
		}
		return tallies[i].Votes > tallies[j].Votes
	})
	return tallies, nil
}

func (uc LeaderboardUseCase) Stats(ctx context.Context) (entities.VotingStats, error) {
	votes, err := uc.Ledger.ListVotes(ctx)
	if err != nil {
		return entities.VotingStats{}, err
	}
	stats := entities.VotingStats{
		ByContentType: make(map[entities.ContentType]int),
	}
	voters := make(map[string]struct{})
	for _, vote := range votes {
		stats.TotalVotes++
		if vote.Flagged {
			stats.FlaggedVotes++
		}
		stats.ByContentType[vote.Target.Type]++
		voters[vote.Email] = struct{}{}
	}
	stats.DistinctVoters = len(voters)
	return stats, nil
}

// VoterHistory lists the ledger records for one identity signal, newest
// first.
func (uc LeaderboardUseCase) VoterHistory(ctx context.Context, email string) ([]entities.VoteRecord, error) {
	normalized, _, err := guard.NormalizeEmail(email)
	if err != nil {
		return nil, domainerrors.ErrInvalidListFilter
	}
	votes, err := uc.Ledger.ListByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CreatedAt.After(votes[j].CreatedAt)
	})
	return votes, nil
}

// FlagQueue lists flagged records for the moderation review queue, oldest
// first so reviewers drain it in arrival order.
func (uc LeaderboardUseCase) FlagQueue(ctx context.Context) ([]entities.VoteRecord, error) {
	votes, err := uc.Ledger.ListFlagged(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CreatedAt.Before(votes[j].CreatedAt)
	})
	return votes, nil
}

func aggregate(votes []entities.VoteRecord) []entities.TargetTally {
	byTarget := make(map[entities.ContentRef]entities.TargetTally)
	for _, vote := range votes {
		current := byTarget[vote.Target]
		current.Target = vote.Target
		if vote.Flagged {
			current.Flagged++
		} else {
			current.Votes++
		}
		if vote.CreatedAt.After(current.LastVoteAt) {
			current.LastVoteAt = vote.CreatedAt
		}
		byTarget[vote.Target] = current
	}

	items := make([]entities.TargetTally, 0, len(byTarget))
	for _, tally := range byTarget {
		items = append(items, tally)
	}
	return items
}
