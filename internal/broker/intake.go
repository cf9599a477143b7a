package broker

import (
	"context"
	"errors"

	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/pkg/models"
	"mail2alert/pkg/retry"
)

var errNoRelay = errors.New("no relay configured")

type Router interface {
	Route(ctx context.Context, env models.Envelope) (router.Result, error)
}

type Relay interface {
	Forward(ctx context.Context, env models.Envelope) (map[string]error, error)
}

// RouteHandler handles intake envelopes the way the SMTP proxy handles a DATA
// command. Routing failures are final; relay failures are retried.
func RouteHandler(r Router, relay Relay, log logger.Logger) HandlerFunc {
	return func(ctx context.Context, env models.Envelope) error {
		result, err := r.Route(ctx, env)
		if err != nil {
			log.ErrorwCtx(ctx, "Failed to process envelope, not relaying",
				"from", env.From,
				"error", err,
			)
			return nil
		}

		if result.Drop() {
			log.InfowCtx(ctx, "No recipients left, envelope not relayed",
				"manager", result.Manager,
			)
			return nil
		}

		if relay == nil {
			return retry.NewFatalError(errNoRelay)
		}

		refused, err := relay.Forward(ctx, result.Envelope)
		if err != nil {
			return err
		}
		log.InfowCtx(ctx, "Relayed envelope",
			"recipients", len(result.Envelope.To),
			"refused", len(refused),
		)
		return nil
	}
}
