package router

import (
	"context"
	"time"

	"mail2alert/internal/actions"
	"mail2alert/internal/logger"
	"mail2alert/pkg/models"
)

type SlackNotifier interface {
	// Notify posts msg to every target and returns failures keyed by destination.
	Notify(ctx context.Context, msg *models.Message, targets []actions.Slack) map[string]error
}

type DecisionPublisher interface {
	PublishDecision(ctx context.Context, decision models.Decision) error
}

// Delivery turns matched raw actions into side effects and the outgoing envelope.
type Delivery struct {
	Manager   string
	Resolver  *actions.Resolver
	Slack     SlackNotifier
	Publisher DecisionPublisher
	Logger    logger.Logger
	Now       func() time.Time
}

func NewDelivery(manager string, slack SlackNotifier, publisher DecisionPublisher, log logger.Logger) *Delivery {
	return &Delivery{
		Manager:   manager,
		Resolver:  actions.NewResolver(manager, log),
		Slack:     slack,
		Publisher: publisher,
		Logger:    log,
		Now:       time.Now,
	}
}

// Deliver resolves raw actions, posts chat notifications and publishes the
// decision. The returned envelope carries the mailto recipients only.
func (d *Delivery) Deliver(ctx context.Context, msg *models.Message, literal models.Event, raw []string, env models.Envelope) models.Envelope {
	set := d.Resolver.Resolve(ctx, raw)

	if len(set.Slack) > 0 {
		if d.Slack == nil {
			d.Logger.WarnwCtx(ctx, "Slack actions matched but no Slack notifier is configured",
				"targets", len(set.Slack),
			)
		} else {
			for dest, err := range d.Slack.Notify(ctx, msg, set.Slack) {
				d.Logger.ErrorwCtx(ctx, "Failed to post Slack notification",
					"destination", dest,
					"error", err,
				)
			}
		}
	}

	recipients := set.Recipients()
	d.publish(ctx, msg, literal, raw, env, recipients)

	return models.Envelope{
		From: env.From,
		To:   recipients,
		Data: env.Data,
	}
}

func (d *Delivery) publish(ctx context.Context, msg *models.Message, literal models.Event, raw []string, env models.Envelope, recipients []string) {
	if d.Publisher == nil {
		return
	}

	decision := models.Decision{
		Manager:      d.Manager,
		MessageID:    msg.ID,
		From:         env.From,
		Subject:      msg.Subject,
		Pipeline:     msg.Pipeline,
		Stage:        msg.Stage,
		LiteralEvent: literal.String(),
		Event:        msg.Event.String(),
		Actions:      raw,
		Recipients:   recipients,
		Timestamp:    d.Now().UTC(),
	}
	if decision.Actions == nil {
		decision.Actions = []string{}
	}

	if err := d.Publisher.PublishDecision(ctx, decision); err != nil {
		d.Logger.WarnwCtx(ctx, "Failed to publish routing decision",
			"error", err,
		)
	}
}
