package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/adapters/memory"
	"crowdstage/contexts/trust-safety/vote-admission/application/workers"
	"crowdstage/contexts/trust-safety/vote-admission/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
	fail   bool
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func appendEnvelope(t *testing.T, store *memory.Store, eventID string, eventType string) {
	t.Helper()
	require.NoError(t, store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC),
		SourceService: "vote-admission",
		SchemaVersion: 1,
		PartitionKey:  "song:42",
	}))
}

func TestOutboxRelayPublishesPendingBatch(t *testing.T) {
	store := memory.NewStore(nil)
	appendEnvelope(t, store, "evt-1", "vote.admitted")
	appendEnvelope(t, store, "evt-2", "vote.flagged")

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
		BatchSize: 10,
	}

	require.NoError(t, relay.RunOnce(context.Background()))

	assert.Equal(t, []string{"vote.admitted", "vote.flagged"}, publisher.topics)
	require.Len(t, publisher.events, 2)
	assert.Equal(t, "evt-1", publisher.events[0].EventID)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	appendEnvelope(t, store, "evt-1", "vote.admitted")

	publisher := &capturingPublisher{fail: true}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
	}

	require.Error(t, relay.RunOnce(context.Background()))

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOutboxRelayNoopOnEmptyOutbox(t *testing.T) {
	store := memory.NewStore(nil)
	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
	}

	require.NoError(t, relay.RunOnce(context.Background()))
	assert.Empty(t, publisher.events)
}
