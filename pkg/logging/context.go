package logging

import (
	"context"
)

type contextKey string

const (
	MessageIDKey   contextKey = "message_id"
	ManagerKey     contextKey = "manager"
	ServiceNameKey contextKey = "service_name"
	RemoteAddrKey  contextKey = "remote_addr"
	RequestIDKey   contextKey = "request_id"
)

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithManager(ctx context.Context, manager string) context.Context {
	return context.WithValue(ctx, ManagerKey, manager)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func value(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	return value(ctx, MessageIDKey)
}

func GetManager(ctx context.Context) string {
	return value(ctx, ManagerKey)
}

func GetServiceName(ctx context.Context) string {
	return value(ctx, ServiceNameKey)
}

func GetRequestID(ctx context.Context) string {
	return value(ctx, RequestIDKey)
}

// GetLogFields returns the context values as alternating zap keys and values.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []contextKey{MessageIDKey, ManagerKey, ServiceNameKey, RemoteAddrKey, RequestIDKey} {
		if v := value(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}

	return fields
}
