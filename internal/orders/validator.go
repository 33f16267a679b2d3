package orders

import (
	"fmt"
	"net/mail"
	"strings"

	pkgerrors "orderflow/pkg/errors"
)

// ValidateCreateOrder checks a create request before anything is persisted.
// All failures are reported as coded validation errors so the HTTP layer
// maps them to 400 responses.
func ValidateCreateOrder(req CreateOrderRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return validationError("userId is required")
	}
	if strings.TrimSpace(req.UserEmail) == "" {
		return validationError("userEmail is required")
	}
	if _, err := mail.ParseAddress(req.UserEmail); err != nil {
		return validationError("userEmail is not a valid email address")
	}

	if strings.TrimSpace(req.ShippingAddress.Address) == "" {
		return validationError("shippingAddress.address is required")
	}
	if strings.TrimSpace(req.ShippingAddress.City) == "" {
		return validationError("shippingAddress.city is required")
	}
	if strings.TrimSpace(req.ShippingAddress.Province) == "" {
		return validationError("shippingAddress.province is required")
	}
	if strings.TrimSpace(req.ShippingAddress.PostalCode) == "" {
		return validationError("shippingAddress.postalCode is required")
	}

	if len(req.LineItems) == 0 {
		return validationError("order must contain at least one line item")
	}
	for i, item := range req.LineItems {
		if strings.TrimSpace(item.ProductID) == "" {
			return validationError(fmt.Sprintf("lineItems[%d].productId is required", i))
		}
		if strings.TrimSpace(item.ProductName) == "" {
			return validationError(fmt.Sprintf("lineItems[%d].productName is required", i))
		}
		if item.Quantity <= 0 {
			return validationError(fmt.Sprintf("lineItems[%d].quantity must be positive", i))
		}
		if item.Price < 0 {
			return validationError(fmt.Sprintf("lineItems[%d].price must not be negative", i))
		}
	}

	return nil
}

// validTransitions encodes the forward-only status lifecycle.
var validTransitions = map[OrderStatus]OrderStatus{
	StatusPending:    StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

func ValidateTransition(from, to OrderStatus) error {
	if validTransitions[from] != to {
		return pkgerrors.ErrConflict.WithMessage("order cannot move from %s to %s", from, to)
	}
	return nil
}

func validationError(msg string) error {
	return pkgerrors.ErrValidationFailed.WithMessage("%s", msg)
}
