package entities

import "time"

type ContentType string

const (
	ContentTypeSong   ContentType = "song"
	ContentTypeVideo  ContentType = "video"
	ContentTypeVisual ContentType = "visual"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeSong, ContentTypeVideo, ContentTypeVisual:
		return true
	default:
		return false
	}
}

// ContentRef identifies the target of a vote: one approved contest entry.
type ContentRef struct {
	Type ContentType
	ID   int64
}

func (r ContentRef) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

// GeoLocation is resolved from the originating IP by an external lookup
// collaborator. A zero value means the lookup was skipped or failed.
type GeoLocation struct {
	Country string
	Region  string
	City    string
}

func (g GeoLocation) IsZero() bool {
	return g.Country == "" && g.Region == "" && g.City == ""
}

// VoteAttempt is one incoming request to cast a vote, not yet judged.
// It is ephemeral: rejected attempts are discarded, admitted ones are
// converted 1:1 into a persisted VoteRecord.
type VoteAttempt struct {
	Email             string
	DisplayName       string
	Target            ContentRef
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	BotScore          *float64
	Geo               GeoLocation
}

// VoteRecord is a persisted, admitted (possibly flagged) vote. Records are
// append-only: after creation only the Flagged marker may change, during
// moderation review.
type VoteRecord struct {
	VoteID            string
	Email             string
	DisplayName       string
	Target            ContentRef
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	BotScore          *float64
	Geo               GeoLocation
	Suspicion         float64
	Flagged           bool
	WindowKey         string
	CreatedAt         time.Time
}

type Outcome string

const (
	OutcomeAdmitted        Outcome = "admitted"
	OutcomeAdmittedFlagged Outcome = "flagged"
	OutcomeRejected        Outcome = "rejected"
)

type RejectReason string

const (
	RejectDuplicateVote  RejectReason = "DUPLICATE_VOTE"
	RejectRateLimited    RejectReason = "RATE_LIMITED"
	RejectLowTrustScore  RejectReason = "LOW_TRUST_SCORE"
	RejectInvalidAttempt RejectReason = "INVALID_ATTEMPT"
)

// AdmissionDecision is the tagged outcome of guard evaluation. Business
// rejections travel here as values, never as Go errors. WindowKey carries the
// voting-window identity the persistence layer needs for its uniqueness
// constraint on admitted records.
type AdmissionDecision struct {
	Outcome   Outcome
	Reason    RejectReason
	Suspicion float64
	WindowKey string
}

func (d AdmissionDecision) Admitted() bool {
	return d.Outcome == OutcomeAdmitted || d.Outcome == OutcomeAdmittedFlagged
}

func Rejected(reason RejectReason) AdmissionDecision {
	return AdmissionDecision{Outcome: OutcomeRejected, Reason: reason}
}

// TargetTally is one leaderboard row. Flagged records are persisted but held
// out of the public tally until review clears them.
type TargetTally struct {
	Target     ContentRef
	Votes      int
	Flagged    int
	LastVoteAt time.Time
}

type VotingStats struct {
	TotalVotes     int
	FlaggedVotes   int
	DistinctVoters int
	ByContentType  map[ContentType]int
}
