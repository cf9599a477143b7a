package bootstrap

import (
	"context"
	"fmt"

	"mail2alert/internal/broker"
	"mail2alert/internal/config"
	"mail2alert/internal/logger"
	"mail2alert/pkg/tracing"
)

// Base holds what every mail2alert process sets up regardless of command.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
	Tracer   *tracing.TracerProvider
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitTracing installs the global tracer provider. With tracing disabled it is a
// no-op provider and spans cost nothing.
func (b *Base) InitTracing(serviceName string) error {
	tp, err := tracing.Init(b.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	b.Tracer = tp
	return nil
}

// InitBroker creates the Kafka producer and consumer that the configuration
// enables. Either may stay nil.
func (b *Base) InitBroker(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker.Kafka, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker.Kafka, b.Logger)
	if err != nil {
		if producer != nil {
			producer.Close()
		}
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if consumer != nil && serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Producer = producer
	b.Consumer = consumer
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	return errs
}

// Shutdown closes the broker, then runs additionalShutdown, then flushes spans
// so those recorded while stopping are exported too.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if b.Tracer != nil {
		if err := b.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
