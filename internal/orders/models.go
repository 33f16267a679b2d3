package orders

import (
	"time"

	"orderflow/internal/events"
)

// OrderStatus is the lifecycle state of an order. Transitions only move
// forward: Pending -> Processing -> Shipped -> Delivered.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
)

type Order struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId"`
	UserEmail       string                 `json:"userEmail"`
	OrderDate       time.Time              `json:"orderDate"`
	Status          OrderStatus            `json:"status"`
	TotalAmount     float64                `json:"totalAmount"`
	TrackingNumber  string                 `json:"trackingNumber,omitempty"`
	ShippingAddress events.ShippingAddress `json:"shippingAddress"`
	LineItems       []LineItem             `json:"lineItems"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type LineItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Subtotal is the line total, quantity times unit price.
func (li LineItem) Subtotal() float64 {
	return float64(li.Quantity) * li.Price
}

type CreateOrderRequest struct {
	UserID          string                 `json:"userId"`
	UserEmail       string                 `json:"userEmail"`
	ShippingAddress events.ShippingAddress `json:"shippingAddress"`
	LineItems       []CreateLineItem       `json:"lineItems"`
}

type CreateLineItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Event maps a persisted order to its integration event. All fields are
// copied from the stored row, never from the request, so the event always
// reflects what was actually persisted.
func (o *Order) Event() events.OrderCreatedEvent {
	items := make([]events.OrderLineItem, len(o.LineItems))
	for i, li := range o.LineItems {
		items[i] = events.OrderLineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Quantity:    li.Quantity,
			Price:       li.Price,
		}
	}
	return events.OrderCreatedEvent{
		OrderID:         o.ID,
		UserID:          o.UserID,
		UserEmail:       o.UserEmail,
		OrderDate:       o.OrderDate,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		LineItems:       items,
	}
}
