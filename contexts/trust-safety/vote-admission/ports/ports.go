package ports

import (
	"context"
	"encoding/json"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
)

// LedgerQuery is the read-only snapshot view the admission guard evaluates
// against. Every rule is an explicit per-request query; no process-wide
// counters are kept anywhere.
type LedgerQuery interface {
	HasDuplicateVote(
		ctx context.Context,
		email string,
		target entities.ContentRef,
		windowStart time.Time,
		windowEnd time.Time,
	) (bool, error)
	CountByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) (int, error)
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
	DistinctEmailsByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) (int, error)
	DistinctEmailsByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
	CountriesForEmail(ctx context.Context, email string) ([]string, error)
}

// VoteLedger is the append-only vote store. InsertVote must surface a
// uniqueness-constraint violation on (email, target, window) as
// ErrDuplicateLedgerEntry so callers can fold the check-then-act race back
// into a DUPLICATE_VOTE rejection.
type VoteLedger interface {
	LedgerQuery
	InsertVote(ctx context.Context, record entities.VoteRecord) error
	GetVote(ctx context.Context, voteID string) (entities.VoteRecord, error)
	SetVoteFlag(ctx context.Context, voteID string, flagged bool) error
	ListFlagged(ctx context.Context) ([]entities.VoteRecord, error)
	ListByEmail(ctx context.Context, email string) ([]entities.VoteRecord, error)
	ListByContentType(ctx context.Context, contentType entities.ContentType) ([]entities.VoteRecord, error)
	ListVotes(ctx context.Context) ([]entities.VoteRecord, error)
}

// ContentProjection mirrors the content catalog owned by the submission side
// of the platform. Only currently-approved entries are votable.
type ContentProjection struct {
	Ref      entities.ContentRef
	Title    string
	Status   string
	Timezone string
}

type ContentCatalog interface {
	GetContent(ctx context.Context, ref entities.ContentRef) (ContentProjection, error)
}

// DomainDenylist checks whether an email domain belongs to a disposable-mail
// provider. The guard treats an unreachable checker as non-blocking.
type DomainDenylist interface {
	IsDisposable(ctx context.Context, domain string) (bool, error)
}

// GeoResolver maps an originating IP to a coarse location. Resolution
// failures degrade to a zero GeoLocation.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (entities.GeoLocation, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
