package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"mail2alert/internal/config"
	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/logging"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/retry"
	"mail2alert/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration("mail2alert", topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten("mail2alert", topic)
	metrics.ObserveKafkaMessageSize("mail2alert", topic, "out", len(body))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "mail2alert",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume feeds every envelope on topic to handler until ctx is cancelled.
// Undecodable records are logged and committed; handler failures are retried
// per the configured policy and then committed so the partition keeps moving.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			metrics.IncKafkaMessagesRead(c.serviceName, topic)
			metrics.ObserveKafkaMessageSize(c.serviceName, topic, "in", len(m.Value))
			if m.HighWaterMark > 0 {
				metrics.SetKafkaConsumerLag(c.serviceName, topic, m.Partition, m.HighWaterMark-m.Offset-1)
			}

			c.handle(ctx, consumeCtx, topic, m, handler)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) handle(ctx, consumeCtx context.Context, topic string, m kafka.Message, handler HandlerFunc) {
	defer func() {
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
				"error", err,
				"topic", topic,
			)
		}
	}()

	env, err := DecodeEnvelope(m.Value)
	if err != nil {
		c.logger.ErrorwCtx(consumeCtx, "Failed to decode envelope",
			"error", err,
			"topic", topic,
			"offset", m.Offset,
		)
		return
	}

	msgCtx, span := tracing.StartConsumeSpan(ctx, m)
	defer span.End()

	if key := string(m.Key); key != "" {
		msgCtx = logging.WithMessageID(msgCtx, key)
	}
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	if err := c.processWithRetry(msgCtx, env, handler, topic); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process envelope after retries, skipping",
			"error", err,
			"topic", topic,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, env models.Envelope, handler HandlerFunc, topic string) error {
	policy := RetryPolicy(c.cfg.Retry)

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = retry.NewFatalError(errors.RecoverPanic(r))
				c.logger.ErrorwCtx(ctx, "Panic recovered during envelope processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, env)
	}, retry.Logged(ctx, c.logger, c.serviceName, topic))
}

// RetryPolicy fills unset retry settings with the consumer defaults.
func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

// DecodeEnvelope reads one intake record: JSON {from, to, data} with data in base64.
func DecodeEnvelope(value []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return models.Envelope{}, errors.ErrParse.WithMessage("invalid envelope json").WithCause(err)
	}
	if err := models.ValidateEnvelope(&env); err != nil {
		return models.Envelope{}, errors.ErrParse.WithCause(err)
	}
	return env, nil
}
