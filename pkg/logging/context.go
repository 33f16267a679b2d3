package logging

import (
	"context"
)

const (
	CorrelationIDKey = "correlation_id"
	MessageIDKey     = "message_id"
	OrderIDKey       = "order_id"
	ServiceNameKey   = "service_name"
)

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, OrderIDKey, orderID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetOrderID(ctx context.Context) string {
	if orderID, ok := ctx.Value(OrderIDKey).(string); ok {
		return orderID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		fields = append(fields, "correlation_id", correlationID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if orderID := GetOrderID(ctx); orderID != "" {
		fields = append(fields, "order_id", orderID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
