package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/orders"
	pkgerrors "orderflow/pkg/errors"
)

func TestOrdersRepository_Create(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	order := createTestOrder("user-1")
	err := repo.Create(ctx, order)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.False(t, order.CreatedAt.IsZero())
	assert.False(t, order.OrderDate.IsZero())
	for _, item := range order.LineItems {
		assert.NotEmpty(t, item.ID)
	}
}

func TestOrdersRepository_GetByID(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	order := createTestOrder("user-1")
	require.NoError(t, repo.Create(ctx, order))

	retrieved, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, order.ID, retrieved.ID)
	assert.Equal(t, order.UserID, retrieved.UserID)
	assert.Equal(t, order.UserEmail, retrieved.UserEmail)
	assert.Equal(t, orders.StatusPending, retrieved.Status)
	assert.InDelta(t, order.TotalAmount, retrieved.TotalAmount, 0.0001)
	assert.Equal(t, order.ShippingAddress, retrieved.ShippingAddress)
	require.Len(t, retrieved.LineItems, 2)
}

func TestOrdersRepository_GetByID_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)

	_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestOrdersRepository_ListByUser(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, createTestOrder("list-user")))
	}
	require.NoError(t, repo.Create(ctx, createTestOrder("other-user")))

	result, err := repo.ListByUser(ctx, "list-user", 10)
	require.NoError(t, err)
	assert.Len(t, result, 3)
	for _, o := range result {
		assert.Equal(t, "list-user", o.UserID)
		assert.Len(t, o.LineItems, 2)
	}
}

func TestOrdersRepository_ListByStatus(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	order := createTestOrder("status-user")
	require.NoError(t, repo.Create(ctx, order))

	pending, err := repo.ListByStatus(ctx, orders.StatusPending, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, pending)

	shipped, err := repo.ListByStatus(ctx, orders.StatusShipped, 10)
	require.NoError(t, err)
	assert.Empty(t, shipped)
}

func TestOrdersRepository_UpdateStatus(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	order := createTestOrder("transition-user")
	require.NoError(t, repo.Create(ctx, order))

	updated, err := repo.UpdateStatus(ctx, order.ID, orders.StatusPending, orders.StatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, updated.Status)

	updated, err = repo.UpdateStatus(ctx, order.ID, orders.StatusProcessing, orders.StatusShipped, "TRACK-99")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, updated.Status)
	assert.Equal(t, "TRACK-99", updated.TrackingNumber)
}

func TestOrdersRepository_UpdateStatus_WrongPrecondition(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := orders.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	order := createTestOrder("conflict-user")
	require.NoError(t, repo.Create(ctx, order))

	_, err := repo.UpdateStatus(ctx, order.ID, orders.StatusProcessing, orders.StatusShipped, "TRACK-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	current, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, current.Status, "failed transition must not change the row")
}
