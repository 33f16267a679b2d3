package orders

import (
	"context"
	"strings"
	"time"

	"orderflow/internal/logger"
	pkgerrors "orderflow/pkg/errors"
	"orderflow/pkg/logging"
	"orderflow/pkg/metrics"
)

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListUserOrders(ctx context.Context, userID string, limit int) ([]Order, error)
	ListOrdersByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	StartProcessing(ctx context.Context, id string) (*Order, error)
	ShipOrder(ctx context.Context, id, trackingNumber string) (*Order, error)
	DeliverOrder(ctx context.Context, id string) (*Order, error)
}

type service struct {
	repo      Repository
	publisher EventPublisher
	logger    logger.Logger
}

func NewService(repo Repository, publisher EventPublisher, log logger.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// CreateOrder validates, persists, and then publishes. Persistence is the
// source of truth: the event is built from the stored order, and a publish
// failure does not fail the request. The order stays Pending and is
// recoverable by operational tooling.
func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := ValidateCreateOrder(req); err != nil {
		metrics.OrdersCreatedTotal.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	order := &Order{
		UserID:          strings.TrimSpace(req.UserID),
		UserEmail:       strings.TrimSpace(req.UserEmail),
		OrderDate:       time.Now().UTC(),
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
	}
	for _, item := range req.LineItems {
		li := LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
		order.TotalAmount += li.Subtotal()
		order.LineItems = append(order.LineItems, li)
	}

	if err := s.repo.Create(ctx, order); err != nil {
		metrics.OrdersCreatedTotal.WithLabelValues("failure").Inc()
		if pkgerrors.Code(err) != "" {
			return nil, err
		}
		return nil, pkgerrors.ErrDatabaseError.WithCause(err)
	}

	ctx = logging.WithOrderID(ctx, order.ID)
	s.logger.InfowCtx(ctx, "Order created",
		"user_id", order.UserID,
		"total_amount", order.TotalAmount,
		"item_count", len(order.LineItems),
	)
	metrics.OrdersCreatedTotal.WithLabelValues("success").Inc()

	if err := s.publisher.PublishOrderCreated(ctx, order.Event()); err != nil {
		// Already logged by the publisher. The order was persisted, so
		// the client still gets a success response.
		s.logger.WarnwCtx(ctx, "Order created but event not published",
			"error_code", pkgerrors.Code(err),
		)
	}

	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListUserOrders(ctx context.Context, userID string, limit int) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.ErrValidationFailed.WithMessage("userId is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *service) ListOrdersByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	switch status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered:
	default:
		return nil, pkgerrors.ErrValidationFailed.WithMessage("unknown order status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *service) StartProcessing(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, StatusPending, StatusProcessing, "")
}

func (s *service) ShipOrder(ctx context.Context, id, trackingNumber string) (*Order, error) {
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, pkgerrors.ErrValidationFailed.WithMessage("trackingNumber is required")
	}
	return s.transition(ctx, id, StatusProcessing, StatusShipped, trackingNumber)
}

func (s *service) DeliverOrder(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, StatusShipped, StatusDelivered, "")
}

func (s *service) transition(ctx context.Context, id string, from, to OrderStatus, trackingNumber string) (*Order, error) {
	if err := ValidateTransition(from, to); err != nil {
		return nil, err
	}

	order, err := s.repo.UpdateStatus(ctx, id, from, to, trackingNumber)
	if err != nil {
		return nil, err
	}

	s.logger.InfowCtx(logging.WithOrderID(ctx, id), "Order status changed",
		"from", from,
		"to", to,
	)
	return order, nil
}
