package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/application/commands"
	"crowdstage/contexts/trust-safety/vote-admission/application/queries"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	httptransport "crowdstage/contexts/trust-safety/vote-admission/transport/http"
)

type Handler struct {
	Votes  commands.CastVoteUseCase
	Review commands.ReviewUseCase
	Boards queries.LeaderboardUseCase
	Logger *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	req httptransport.CastVoteRequest,
) (httptransport.VoteDecisionResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		Email:             req.Email,
		DisplayName:       req.Name,
		ContentType:       req.ContentType,
		ContentID:         req.ContentID,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
		BotScore:          req.BotScore,
	})
	if err != nil {
		return httptransport.VoteDecisionResponse{}, err
	}
	return mapDecision(result), nil
}

func (h Handler) LeaderboardHandler(ctx context.Context, contentType string) (httptransport.LeaderboardResponse, error) {
	tallies, err := h.Boards.Leaderboard(ctx, contentType)
	if err != nil {
		return httptransport.LeaderboardResponse{}, err
	}
	items := make([]httptransport.LeaderboardItem, 0, len(tallies))
	for index, tally := range tallies {
		items = append(items, httptransport.LeaderboardItem{
			ContentType: string(tally.Target.Type),
			ContentID:   tally.Target.ID,
			Votes:       tally.Votes,
			Flagged:     tally.Flagged,
			Rank:        index + 1,
		})
	}
	return httptransport.LeaderboardResponse{Items: items}, nil
}

func (h Handler) StatsHandler(ctx context.Context) (httptransport.VotingStatsResponse, error) {
	stats, err := h.Boards.Stats(ctx)
	if err != nil {
		return httptransport.VotingStatsResponse{}, err
	}
	byType := make(map[string]int, len(stats.ByContentType))
	for contentType, count := range stats.ByContentType {
		byType[string(contentType)] = count
	}
	return httptransport.VotingStatsResponse{
		TotalVotes:     stats.TotalVotes,
		FlaggedVotes:   stats.FlaggedVotes,
		DistinctVoters: stats.DistinctVoters,
		ByContentType:  byType,
	}, nil
}

func (h Handler) VoterHistoryHandler(ctx context.Context, email string) (httptransport.VoteHistoryResponse, error) {
	votes, err := h.Boards.VoterHistory(ctx, email)
	if err != nil {
		return httptransport.VoteHistoryResponse{}, err
	}
	resolved := email
	if len(votes) > 0 {
		resolved = votes[0].Email
	}
	return httptransport.VoteHistoryResponse{
		Email: resolved,
		Items: mapRecords(votes),
	}, nil
}

func (h Handler) FlagQueueHandler(ctx context.Context) (httptransport.FlagQueueResponse, error) {
	votes, err := h.Boards.FlagQueue(ctx)
	if err != nil {
		return httptransport.FlagQueueResponse{}, err
	}
	return httptransport.FlagQueueResponse{Items: mapRecords(votes)}, nil
}

func (h Handler) ResolveFlagHandler(ctx context.Context, voteID string, actorID string, req httptransport.ResolveFlagRequest) error {
	return h.Review.ResolveFlag(ctx, commands.ResolveFlagCommand{
		VoteID:  voteID,
		Action:  req.Action,
		ActorID: actorID,
	})
}

func mapDecision(result commands.CastVoteResult) httptransport.VoteDecisionResponse {
	decision := result.Decision
	switch decision.Outcome {
	case entities.OutcomeAdmittedFlagged:
		suspicion := decision.Suspicion
		return httptransport.VoteDecisionResponse{
			Status:    string(entities.OutcomeAdmittedFlagged),
			Suspicion: &suspicion,
			VoteID:    result.Record.VoteID,
		}
	case entities.OutcomeAdmitted:
		return httptransport.VoteDecisionResponse{
			Status: string(entities.OutcomeAdmitted),
			VoteID: result.Record.VoteID,
		}
	default:
		return httptransport.VoteDecisionResponse{
			Status: string(entities.OutcomeRejected),
			Reason: string(decision.Reason),
		}
	}
}

func mapRecords(votes []entities.VoteRecord) []httptransport.VoteRecordItem {
	items := make([]httptransport.VoteRecordItem, 0, len(votes))
	for _, vote := range votes {
		items = append(items, httptransport.VoteRecordItem{
			VoteID:      vote.VoteID,
			Email:       vote.Email,
			Name:        vote.DisplayName,
			ContentType: string(vote.Target.Type),
			ContentID:   vote.Target.ID,
			Country:     vote.Geo.Country,
			Suspicion:   vote.Suspicion,
			Flagged:     vote.Flagged,
			BotScore:    vote.BotScore,
			CreatedAt:   vote.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}
