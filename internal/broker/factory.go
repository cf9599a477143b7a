package broker

import (
	"fmt"

	"mail2alert/internal/config"
	"mail2alert/internal/logger"
)

// NewProducer returns nil when decisions are not published.
func NewProducer(cfg config.KafkaConfig, log logger.Logger) (Producer, error) {
	if !cfg.DecisionsEnabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	return NewKafkaProducer(cfg, log), nil
}

// NewConsumer returns nil when the Kafka intake is off.
func NewConsumer(cfg config.KafkaConfig, log logger.Logger) (Consumer, error) {
	if !cfg.IntakeEnabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	return NewKafkaConsumer(cfg, log), nil
}
