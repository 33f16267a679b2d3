package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/events"
	"orderflow/internal/logger"
	pkgerrors "orderflow/pkg/errors"
)

type fakeRepo struct {
	created   []*Order
	createErr error
	orders    map[string]*Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*Order)}
}

func (f *fakeRepo) Create(ctx context.Context, order *Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	order.ID = "generated-id"
	f.created = append(f.created, order)
	f.orders[order.ID] = order
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("order %s not found", id)
	}
	return order, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	var result []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (f *fakeRepo) ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	var result []Order
	for _, o := range f.orders {
		if o.Status == status {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, from, to OrderStatus, trackingNumber string) (*Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("order %s not found", id)
	}
	if order.Status != from {
		return nil, pkgerrors.ErrConflict.WithMessage("order %s is %s, expected %s", id, order.Status, from)
	}
	order.Status = to
	if trackingNumber != "" {
		order.TrackingNumber = trackingNumber
	}
	return order, nil
}

type fakePublisher struct {
	published  []events.OrderCreatedEvent
	publishErr error
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		UserID:    "user-42",
		UserEmail: "buyer@example.com",
		ShippingAddress: events.ShippingAddress{
			Address:    "123 Main St",
			City:       "Springfield",
			Province:   "ON",
			PostalCode: "A1B 2C3",
		},
		LineItems: []CreateLineItem{
			{ProductID: "p1", ProductName: "Widget", Quantity: 2, Price: 50.00},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 1, Price: 99.99},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	repo := newFakeRepo()
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher, logger.NopLogger())

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.InDelta(t, 199.99, order.TotalAmount, 0.0001)
	assert.Len(t, order.LineItems, 2)
	require.Len(t, repo.created, 1)

	require.Len(t, publisher.published, 1)
	event := publisher.published[0]
	assert.Equal(t, order.ID, event.OrderID)
	assert.Equal(t, order.UserEmail, event.UserEmail)
	assert.InDelta(t, order.TotalAmount, event.TotalAmount, 0.0001)
	assert.Len(t, event.LineItems, 2)
}

func TestCreateOrderPublishFailureDoesNotFailCreation(t *testing.T) {
	repo := newFakeRepo()
	publisher := &fakePublisher{
		publishErr: pkgerrors.ErrMessagePublishingFailed.WithMessage("broker down"),
	}
	svc := NewService(repo, publisher, logger.NopLogger())

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, StatusPending, order.Status)
	assert.Len(t, repo.created, 1, "order must be persisted even when publishing fails")
}

func TestCreateOrderPersistFailureDoesNotPublish(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("connection refused")
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher, logger.NopLogger())

	_, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.Error(t, err)

	assert.Equal(t, "DatabaseError", pkgerrors.Code(err))
	assert.Empty(t, publisher.published, "no event may be published for an unpersisted order")
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{
			name:   "missing user id",
			mutate: func(r *CreateOrderRequest) { r.UserID = "" },
		},
		{
			name:   "missing email",
			mutate: func(r *CreateOrderRequest) { r.UserEmail = "" },
		},
		{
			name:   "malformed email",
			mutate: func(r *CreateOrderRequest) { r.UserEmail = "not-an-email" },
		},
		{
			name:   "no line items",
			mutate: func(r *CreateOrderRequest) { r.LineItems = nil },
		},
		{
			name:   "zero quantity",
			mutate: func(r *CreateOrderRequest) { r.LineItems[0].Quantity = 0 },
		},
		{
			name:   "negative price",
			mutate: func(r *CreateOrderRequest) { r.LineItems[0].Price = -1 },
		},
		{
			name:   "missing shipping address",
			mutate: func(r *CreateOrderRequest) { r.ShippingAddress.Address = "" },
		},
		{
			name:   "missing province",
			mutate: func(r *CreateOrderRequest) { r.ShippingAddress.Province = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			publisher := &fakePublisher{}
			svc := NewService(repo, publisher, logger.NopLogger())

			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Empty(t, repo.created)
			assert.Empty(t, publisher.published)
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePublisher{}, logger.NopLogger())

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	order, err = svc.StartProcessing(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, order.Status)

	order, err = svc.ShipOrder(context.Background(), order.ID, "TRACK-123")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, order.Status)
	assert.Equal(t, "TRACK-123", order.TrackingNumber)

	order, err = svc.DeliverOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, order.Status)
}

func TestOrderLifecycleRejectsSkippedStates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePublisher{}, logger.NopLogger())

	order, err := svc.CreateOrder(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.DeliverOrder(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	_, err = svc.ShipOrder(context.Background(), order.ID, "TRACK-123")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestShipOrderRequiresTrackingNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePublisher{}, logger.NopLogger())

	_, err := svc.ShipOrder(context.Background(), "any", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}
