package unit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	voteadmission "crowdstage/contexts/trust-safety/vote-admission"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
	httptransport "crowdstage/contexts/trust-safety/vote-admission/transport/http"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
)

func newVotingModule(t *testing.T) voteadmission.Module {
	t.Helper()
	module := voteadmission.NewInMemoryModule(nil, nil)
	module.Store.SetNow(time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC))
	module.Store.SetContent(ports.ContentProjection{
		Ref:      entities.ContentRef{Type: entities.ContentTypeSong, ID: 42},
		Title:    "Midnight Run",
		Status:   "approved",
		Timezone: "UTC",
	})
	return module
}

func castRequest(email string) httptransport.CastVoteRequest {
	score := 0.9
	return httptransport.CastVoteRequest{
		Email:             email,
		Name:              "Voter",
		ContentType:       "song",
		ContentID:         42,
		IPAddress:         "203.0.113.10",
		UserAgent:         "Mozilla/5.0",
		DeviceFingerprint: "fp-e2e",
		BotScore:          &score,
	}
}

func TestVoteAdmissionCastAndDuplicate(t *testing.T) {
	module := newVotingModule(t)
	ctx := context.Background()

	first, err := module.Handler.CastVoteHandler(ctx, castRequest("voter@example.com"))
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if first.Status != "admitted" {
		t.Fatalf("expected admitted, got %s", first.Status)
	}
	if first.VoteID == "" {
		t.Fatalf("expected vote id on admitted vote")
	}

	second, err := module.Handler.CastVoteHandler(ctx, castRequest("voter@example.com"))
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}
	if second.Status != "rejected" || second.Reason != "DUPLICATE_VOTE" {
		t.Fatalf("expected duplicate rejection, got %s/%s", second.Status, second.Reason)
	}
}

func TestVoteAdmissionRejectsUnknownTarget(t *testing.T) {
	module := newVotingModule(t)

	req := castRequest("voter@example.com")
	req.ContentID = 777
	_, err := module.Handler.CastVoteHandler(context.Background(), req)
	if !errors.Is(err, domainerrors.ErrInvalidAttempt) {
		t.Fatalf("expected invalid attempt, got %v", err)
	}
}

func TestVoteAdmissionLeaderboardAndStats(t *testing.T) {
	module := newVotingModule(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := castRequest(fmt.Sprintf("voter%d@example.com", i))
		req.DeviceFingerprint = fmt.Sprintf("fp-%d", i)
		req.IPAddress = fmt.Sprintf("203.0.113.%d", 20+i)
		resp, err := module.Handler.CastVoteHandler(ctx, req)
		if err != nil {
			t.Fatalf("vote %d failed: %v", i, err)
		}
		if resp.Status != "admitted" {
			t.Fatalf("vote %d not admitted: %s", i, resp.Status)
		}
	}

	board, err := module.Handler.LeaderboardHandler(ctx, "song")
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(board.Items) != 1 || board.Items[0].Votes != 3 || board.Items[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard: %+v", board.Items)
	}

	stats, err := module.Handler.StatsHandler(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalVotes != 3 || stats.DistinctVoters != 3 || stats.FlaggedVotes != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestVoteAdmissionFlagReviewRoundTrip(t *testing.T) {
	module := newVotingModule(t)
	ctx := context.Background()

	// Enough distinct voters on one fingerprint and IP to push the next
	// attempt over the flag threshold.
	for i := 0; i < 6; i++ {
		req := castRequest(fmt.Sprintf("farm%d@example.com", i))
		req.DeviceFingerprint = "fp-farm"
		req.IPAddress = "198.51.100.7"
		if _, err := module.Handler.CastVoteHandler(ctx, req); err != nil {
			t.Fatalf("farm vote %d failed: %v", i, err)
		}
	}
	req := castRequest("fresh@example.com")
	req.DeviceFingerprint = "fp-farm"
	req.IPAddress = "198.51.100.7"
	req.UserAgent = ""
	resp, err := module.Handler.CastVoteHandler(ctx, req)
	if err != nil {
		t.Fatalf("suspicious vote failed: %v", err)
	}
	if resp.Status != "flagged" {
		t.Fatalf("expected flagged admission, got %s", resp.Status)
	}
	if resp.Suspicion == nil || *resp.Suspicion < 0.7 {
		t.Fatalf("expected suspicion >= 0.7, got %v", resp.Suspicion)
	}

	queue, err := module.Handler.FlagQueueHandler(ctx)
	if err != nil {
		t.Fatalf("flag queue failed: %v", err)
	}
	if len(queue.Items) != 1 || queue.Items[0].VoteID != resp.VoteID {
		t.Fatalf("unexpected flag queue: %+v", queue.Items)
	}

	err = module.Handler.ResolveFlagHandler(ctx, resp.VoteID, "mod-1", httptransport.ResolveFlagRequest{Action: "clear"})
	if err != nil {
		t.Fatalf("resolve flag failed: %v", err)
	}

	queue, err = module.Handler.FlagQueueHandler(ctx)
	if err != nil {
		t.Fatalf("flag queue after clear failed: %v", err)
	}
	if len(queue.Items) != 0 {
		t.Fatalf("expected empty flag queue after clear, got %d items", len(queue.Items))
	}
}

func TestVoteAdmissionVoterHistory(t *testing.T) {
	module := newVotingModule(t)
	ctx := context.Background()

	if _, err := module.Handler.CastVoteHandler(ctx, castRequest("Voter@Example.com")); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	history, err := module.Handler.VoterHistoryHandler(ctx, "voter@example.com")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if history.Email != "voter@example.com" || len(history.Items) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}
