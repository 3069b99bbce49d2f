package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	Email             string   `json:"email"`
	Name              string   `json:"name,omitempty"`
	ContentType       string   `json:"content_type"`
	ContentID         int64    `json:"content_id"`
	IPAddress         string   `json:"ip_address,omitempty"`
	UserAgent         string   `json:"user_agent,omitempty"`
	DeviceFingerprint string   `json:"device_fingerprint"`
	BotScore          *float64 `json:"bot_score,omitempty"`
}

// VoteDecisionResponse is the wire shape for all three admission outcomes:
// {status: "admitted"}, {status: "flagged", suspicion: s}, or
// {status: "rejected", reason: r}.
type VoteDecisionResponse struct {
	Status    string   `json:"status"`
	Suspicion *float64 `json:"suspicion,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	VoteID    string   `json:"vote_id,omitempty"`
}

type LeaderboardItem struct {
	ContentType string `json:"content_type"`
	ContentID   int64  `json:"content_id"`
	Votes       int    `json:"votes"`
	Flagged     int    `json:"flagged"`
	Rank        int    `json:"rank"`
}

type LeaderboardResponse struct {
	Items []LeaderboardItem `json:"items"`
}

type VotingStatsResponse struct {
	TotalVotes     int            `json:"total_votes"`
	FlaggedVotes   int            `json:"flagged_votes"`
	DistinctVoters int            `json:"distinct_voters"`
	ByContentType  map[string]int `json:"by_content_type"`
}

type VoteRecordItem struct {
	VoteID      string   `json:"vote_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	ContentType string   `json:"content_type"`
	ContentID   int64    `json:"content_id"`
	Country     string   `json:"country,omitempty"`
	Suspicion   float64  `json:"suspicion"`
	Flagged     bool     `json:"flagged"`
	BotScore    *float64 `json:"bot_score,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

type VoteHistoryResponse struct {
	Email string           `json:"email"`
	Items []VoteRecordItem `json:"items"`
}

type FlagQueueResponse struct {
	Items []VoteRecordItem `json:"items"`
}

type ResolveFlagRequest struct {
	Action string `json:"action"`
}
