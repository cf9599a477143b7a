// Package notify posts routed messages to chat.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"mail2alert/internal/actions"
	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	apperrors "mail2alert/pkg/errors"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/retry"
	"mail2alert/pkg/tracing"
)

type SlackConfig struct {
	Token string
	// APIURL overrides the Slack Web API base URL; it must end with a slash.
	APIURL string
	RPS    float64
	Burst  int
}

// Slack posts messages to Slack channels and users. Posts share one rate
// limiter; a rate-limited response is retried after the delay Slack asks for.
type Slack struct {
	client  *slack.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  logger.Logger
}

func NewSlack(cfg SlackConfig, log logger.Logger) *Slack {
	opts := []slack.Option{}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Slack{
		client:  slack.New(cfg.Token, opts...),
		limiter: rate.NewLimiter(limit, burst),
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
			MaxElapsedTime:  30 * time.Second,
		},
		logger: log,
	}
}

// Text is the message line shown above the attachment.
func Text(msg *models.Message) string {
	return "Message from: " + msg.From
}

// Attachment renders msg for style. Brief carries the subject only; full adds
// the body.
func Attachment(msg *models.Message, style string) (slack.Attachment, error) {
	attachment := slack.Attachment{
		Title:    msg.Subject,
		Fallback: msg.Subject,
		Color:    msg.AlertLevel.Color(),
	}

	switch style {
	case constants.SlackStyleBrief:
	case constants.SlackStyleFull:
		attachment.Text = msg.Body()
	default:
		return slack.Attachment{}, apperrors.ErrAction.WithMessage("unknown slack style %q", style)
	}
	return attachment, nil
}

func (s *Slack) Notify(ctx context.Context, msg *models.Message, targets []actions.Slack) map[string]error {
	ctx, span := tracing.GetTracer("notify").Start(ctx, "slack.notify")
	defer span.End()

	failures := make(map[string]error)
	for _, target := range targets {
		attachment, err := Attachment(msg, target.Style)
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Skipping Slack action",
				"destination", target.Destination,
				"style", target.Style,
				"error", err,
			)
			metrics.SlackPostsTotal.WithLabelValues("skipped").Inc()
			failures[target.Destination] = err
			continue
		}

		if err := s.post(ctx, target.Destination, Text(msg), attachment); err != nil {
			metrics.SlackPostsTotal.WithLabelValues("failure").Inc()
			failures[target.Destination] = err
			continue
		}

		metrics.SlackPostsTotal.WithLabelValues("success").Inc()
		s.logger.DebugwCtx(ctx, "Posted Slack notification",
			"destination", target.Destination,
			"style", target.Style,
		)
	}
	return failures
}

func (s *Slack) post(ctx context.Context, channel, text string, attachment slack.Attachment) error {
	err := retry.RetryWithCallback(ctx, s.policy, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.NewFatalError(err)
		}

		_, _, err := s.client.PostMessageContext(ctx, channel,
			slack.MsgOptionText(text, false),
			slack.MsgOptionAttachments(attachment),
		)
		if err == nil {
			return nil
		}

		var limited *slack.RateLimitedError
		if !errors.As(err, &limited) {
			return retry.NewFatalError(err)
		}

		select {
		case <-time.After(limited.RetryAfter):
		case <-ctx.Done():
			return retry.NewFatalError(ctx.Err())
		}
		return err
	}, retry.Logged(ctx, s.logger, "slack", "chat.postMessage"))
	if err != nil {
		return apperrors.ErrDelivery.WithMessage("slack post to %s failed", channel).WithCause(err)
	}
	return nil
}
