package broker

import (
	"context"

	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
)

// DecisionPublisher writes one record per processed message, keyed by message id.
type DecisionPublisher struct {
	producer Producer
	topic    string
}

func NewDecisionPublisher(producer Producer, topic string) *DecisionPublisher {
	return &DecisionPublisher{producer: producer, topic: topic}
}

func (p *DecisionPublisher) PublishDecision(ctx context.Context, decision models.Decision) error {
	if err := p.producer.Publish(ctx, p.topic, decision.MessageID, decision); err != nil {
		metrics.DecisionsPublishedTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.DecisionsPublishedTotal.WithLabelValues("success").Inc()
	return nil
}
