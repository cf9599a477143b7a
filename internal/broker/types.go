// Package broker connects mail2alert to Kafka: routing decisions go out on one
// topic and envelopes to route can arrive on another.
package broker

import (
	"context"

	"mail2alert/pkg/models"
)

type Producer interface {
	// Publish writes value as JSON under key.
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, env models.Envelope) error
