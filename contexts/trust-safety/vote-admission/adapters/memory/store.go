package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type windowIdentity struct {
	email     string
	target    entities.ContentRef
	windowKey string
}

// Store is the in-process adapter implementing every vote-admission port.
// It mirrors the persistence contract exactly, including the uniqueness
// constraint on (email, target, window) that backs the duplicate-race fold.
type Store struct {
	mu sync.RWMutex

	votes     map[string]entities.VoteRecord
	byWindow  map[windowIdentity]string
	content   map[entities.ContentRef]ports.ContentProjection
	denylist  map[string]bool
	geo       map[string]entities.GeoLocation
	outbox    map[string]outboxRecord
	outboxSeq []string

	denylistErr error
	geoErr      error
	now         time.Time
}

func NewStore(seed []entities.VoteRecord) *Store {
	store := &Store{
		votes:    make(map[string]entities.VoteRecord, len(seed)),
		byWindow: make(map[windowIdentity]string, len(seed)),
		content:  make(map[entities.ContentRef]ports.ContentProjection),
		denylist: make(map[string]bool),
		geo:      make(map[string]entities.GeoLocation),
		outbox:   make(map[string]outboxRecord),
	}
	for _, vote := range seed {
		store.votes[vote.VoteID] = vote
		store.byWindow[identityOf(vote)] = vote.VoteID
	}
	return store
}

func identityOf(vote entities.VoteRecord) windowIdentity {
	return windowIdentity{
		email:     strings.ToLower(strings.TrimSpace(vote.Email)),
		target:    vote.Target,
		windowKey: strings.TrimSpace(vote.WindowKey),
	}
}

func (s *Store) SetContent(projection ports.ContentProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[projection.Ref] = projection
}

func (s *Store) SetDisposableDomain(domain string, disposable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denylist[strings.ToLower(strings.TrimSpace(domain))] = disposable
}

// FailDenylist makes the disposable-domain check return the supplied error,
// exercising the guard's fail-open path.
func (s *Store) FailDenylist(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denylistErr = err
}

func (s *Store) SetGeo(ip string, geo entities.GeoLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geo[strings.TrimSpace(ip)] = geo
}

func (s *Store) FailGeo(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geoErr = err
}

// SetNow pins the store clock for deterministic window and velocity tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) InsertVote(_ context.Context, record entities.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity := identityOf(record)
	if _, exists := s.byWindow[identity]; exists {
		return domainerrors.ErrDuplicateLedgerEntry
	}
	if _, exists := s.votes[record.VoteID]; exists {
		return domainerrors.ErrConflict
	}
	s.votes[record.VoteID] = record
	s.byWindow[identity] = record.VoteID
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.VoteRecord{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) SetVoteFlag(_ context.Context, voteID string, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return domainerrors.ErrVoteNotFound
	}
	vote.Flagged = flagged
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) ListFlagged(_ context.Context) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.VoteRecord
	for _, vote := range s.votes {
		if vote.Flagged {
			items = append(items, vote)
		}
	}
	return items, nil
}

func (s *Store) ListByEmail(_ context.Context, email string) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	var items []entities.VoteRecord
	for _, vote := range s.votes {
		if strings.ToLower(vote.Email) == needle {
			items = append(items, vote)
		}
	}
	return items, nil
}

func (s *Store) ListByContentType(_ context.Context, contentType entities.ContentType) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.VoteRecord
	for _, vote := range s.votes {
		if vote.Target.Type == contentType {
			items = append(items, vote)
		}
	}
	return items, nil
}

func (s *Store) ListVotes(_ context.Context) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.VoteRecord, 0, len(s.votes))
	for _, vote := range s.votes {
		items = append(items, vote)
	}
	return items, nil
}

func (s *Store) HasDuplicateVote(
	_ context.Context,
	email string,
	target entities.ContentRef,
	windowStart time.Time,
	windowEnd time.Time,
) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, vote := range s.votes {
		if strings.ToLower(vote.Email) != needle || vote.Target != target {
			continue
		}
		if !vote.CreatedAt.Before(windowStart) && vote.CreatedAt.Before(windowEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountByFingerprintSince(_ context.Context, fingerprint string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, vote := range s.votes {
		if vote.DeviceFingerprint == fingerprint && !vote.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountByIPSince(_ context.Context, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, vote := range s.votes {
		if vote.IPAddress == ip && !vote.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) DistinctEmailsByFingerprintSince(_ context.Context, fingerprint string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := make(map[string]struct{})
	for _, vote := range s.votes {
		if vote.DeviceFingerprint == fingerprint && !vote.CreatedAt.Before(since) {
			emails[strings.ToLower(vote.Email)] = struct{}{}
		}
	}
	return len(emails), nil
}

func (s *Store) DistinctEmailsByIPSince(_ context.Context, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := make(map[string]struct{})
	for _, vote := range s.votes {
		if vote.IPAddress == ip && !vote.CreatedAt.Before(since) {
			emails[strings.ToLower(vote.Email)] = struct{}{}
		}
	}
	return len(emails), nil
}

func (s *Store) CountriesForEmail(_ context.Context, email string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	seen := make(map[string]struct{})
	var countries []string
	for _, vote := range s.votes {
		if strings.ToLower(vote.Email) != needle || vote.Geo.Country == "" {
			continue
		}
		if _, ok := seen[vote.Geo.Country]; ok {
			continue
		}
		seen[vote.Geo.Country] = struct{}{}
		countries = append(countries, vote.Geo.Country)
	}
	return countries, nil
}

func (s *Store) GetContent(_ context.Context, ref entities.ContentRef) (ports.ContentProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projection, ok := s.content[ref]
	if !ok {
		return ports.ContentProjection{}, domainerrors.ErrTargetNotFound
	}
	return projection, nil
}

func (s *Store) IsDisposable(_ context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.denylistErr != nil {
		return false, s.denylistErr
	}
	return s.denylist[strings.ToLower(strings.TrimSpace(domain))], nil
}

func (s *Store) Resolve(_ context.Context, ip string) (entities.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.geoErr != nil {
		return entities.GeoLocation{}, s.geoErr
	}
	return s.geo[strings.TrimSpace(ip)], nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	payload, err := encodeEnvelope(envelope)
	if err != nil {
		return err
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
	}
	s.outboxSeq = append(s.outboxSeq, outboxID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var items []ports.OutboxMessage
	for _, outboxID := range s.outboxSeq {
		record := s.outbox[outboxID]
		if record.published {
			continue
		}
		items = append(items, record.message)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[outboxID] = record
	return nil
}

func encodeEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

var _ ports.VoteLedger = (*Store)(nil)
var _ ports.ContentCatalog = (*Store)(nil)
var _ ports.DomainDenylist = (*Store)(nil)
var _ ports.GeoResolver = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
