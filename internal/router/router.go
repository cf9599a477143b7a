package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mail2alert/internal/logger"
	"mail2alert/pkg/logging"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/tracing"
)

type Result struct {
	Envelope models.Envelope
	// Manager is empty when no manager wanted the envelope.
	Manager string
}

// Handled reports whether a manager processed the envelope.
func (r Result) Handled() bool {
	return r.Manager != ""
}

// Drop reports whether the proxy should swallow the message.
func (r Result) Drop() bool {
	return len(r.Envelope.To) == 0
}

type Router struct {
	managers []Manager
	logger   logger.Logger
}

func New(managers []Manager, log logger.Logger) *Router {
	return &Router{managers: managers, logger: log}
}

func (r *Router) Managers() []Manager {
	return r.managers
}

// Route gives env to the first manager, in configuration order, that wants it.
// Unwanted envelopes come back unchanged. On a processing error the result has
// no recipients.
func (r *Router) Route(ctx context.Context, env models.Envelope) (Result, error) {
	ctx, span := tracing.GetTracer("router").Start(ctx, "router.route")
	defer span.End()

	if logging.GetMessageID(ctx) == "" {
		ctx = logging.WithMessageID(ctx, uuid.NewString())
	}

	for _, m := range r.managers {
		if !m.Wants(env) {
			continue
		}

		ctx := logging.WithManager(ctx, m.Name())
		span.SetAttributes(attribute.String("router.manager", m.Name()))
		r.logger.DebugwCtx(ctx, "Manager accepted envelope",
			"from", env.From,
			"to", env.To,
		)

		start := time.Now()
		out, err := m.Process(ctx, env)
		metrics.ObserveProcessingDuration(m.Name(), time.Since(start))

		if err != nil {
			metrics.MessagesTotal.WithLabelValues(m.Name(), "error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "processing failed")
			return Result{Envelope: models.Envelope{From: env.From, Data: env.Data}, Manager: m.Name()},
				fmt.Errorf("manager %s: %w", m.Name(), err)
		}

		status := "forwarded"
		if len(out.To) == 0 {
			status = "dropped"
		}
		metrics.MessagesTotal.WithLabelValues(m.Name(), status).Inc()
		r.logger.InfowCtx(ctx, "Processed message",
			"recipients", out.To,
			"status", status,
		)
		return Result{Envelope: out, Manager: m.Name()}, nil
	}

	metrics.MessagesTotal.WithLabelValues("", "passthrough").Inc()
	r.logger.DebugwCtx(ctx, "No manager wants envelope, passing through",
		"from", env.From,
		"to", env.To,
	)
	return Result{Envelope: env}, nil
}

// SelfTest collects every manager's report. A failing manager aborts the run.
func (r *Router) SelfTest(ctx context.Context) (models.SelfTestReport, error) {
	report := make(models.SelfTestReport, len(r.managers))
	for _, m := range r.managers {
		groups, err := m.SelfTest(ctx)
		if err != nil {
			return nil, fmt.Errorf("self-test of manager %s: %w", m.Name(), err)
		}
		if groups == nil {
			groups = []models.GroupReport{}
		}
		report[m.Name()] = groups
	}
	return report, nil
}
