package integration

import (
	"time"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/events"
	"orderflow/internal/logger"
	"orderflow/internal/orders"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestCircuitBreakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      60 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func createTestIdempotencyConfig() config.IdempotencyConfig {
	return config.IdempotencyConfig{
		Enabled:      true,
		TTLSeconds:   300,
		OnRedisError: constants.FallbackAllow,
	}
}

func createTestOrder(userID string) *orders.Order {
	return &orders.Order{
		UserID:    userID,
		UserEmail: userID + "@example.com",
		Status:    orders.StatusPending,
		ShippingAddress: events.ShippingAddress{
			Address:    "123 Main St",
			City:       "Springfield",
			Province:   "ON",
			PostalCode: "A1B 2C3",
		},
		TotalAmount: 199.99,
		LineItems: []orders.LineItem{
			{ProductID: "p1", ProductName: "Widget", Quantity: 2, Price: 50.00},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 1, Price: 99.99},
		},
	}
}
