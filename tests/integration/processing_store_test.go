package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/processing"
)

func TestRedisIdempotencyStore_MarkProcessed(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	store := processing.NewRedisIdempotencyStore(infra.RedisClient, createTestIdempotencyConfig(), createTestCircuitBreakerConfig(), createTestLogger())
	ctx := context.Background()

	messageID := uuid.New().String()

	fresh, err := store.MarkProcessed(ctx, messageID)
	require.NoError(t, err)
	assert.True(t, fresh, "first sighting must be fresh")

	fresh, err = store.MarkProcessed(ctx, messageID)
	require.NoError(t, err)
	assert.False(t, fresh, "second sighting must be a duplicate")
}

func TestRedisIdempotencyStore_DistinctMessages(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	store := processing.NewRedisIdempotencyStore(infra.RedisClient, createTestIdempotencyConfig(), createTestCircuitBreakerConfig(), createTestLogger())
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, uuid.New().String())
	require.NoError(t, err)
	second, err := store.MarkProcessed(ctx, uuid.New().String())
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
}

func TestAuditStore_Record(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	store := processing.NewAuditStore(infra.PostgresDB)
	ctx := context.Background()

	event := processing.ProcessedEvent{
		MessageID:     uuid.New().String(),
		MessageType:   "OrderCreatedEvent",
		CorrelationID: "order-1",
		OrderID:       "order-1",
	}

	require.NoError(t, store.Record(ctx, event))

	recent, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, event.MessageID, recent[0].MessageID)
	assert.False(t, recent[0].ProcessedAt.IsZero())
}

func TestAuditStore_RecordIgnoresReplay(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	store := processing.NewAuditStore(infra.PostgresDB)
	ctx := context.Background()

	event := processing.ProcessedEvent{
		MessageID:   uuid.New().String(),
		MessageType: "OrderCreatedEvent",
		OrderID:     "order-replay",
	}

	require.NoError(t, store.Record(ctx, event))
	require.NoError(t, store.Record(ctx, event), "replay of the same message id must not error")

	recent, err := store.ListRecent(ctx, 100)
	require.NoError(t, err)

	count := 0
	for _, e := range recent {
		if e.MessageID == event.MessageID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
