package events

import "time"

// MessageTypeOrderCreated is the logical type tag consumers dispatch on.
const MessageTypeOrderCreated = "OrderCreatedEvent"

// OrderCreatedEvent is published after an order row is durably persisted.
// Product names and prices are snapshots taken at order time; later catalog
// changes must not alter the historical record, so the event copies them
// instead of referencing the live catalog.
type OrderCreatedEvent struct {
	OrderID         string          `json:"orderId"`
	UserID          string          `json:"userId"`
	UserEmail       string          `json:"userEmail"`
	OrderDate       time.Time       `json:"orderDate"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	LineItems       []OrderLineItem `json:"lineItems"`
}

// ShippingAddress is a copy of the shipping destination at order time.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

type OrderLineItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}
