package smtpproxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/tracing"
)

type ForwarderConfig struct {
	// Remote is the upstream MTA as host:port.
	Remote    string
	LocalName string
	User      string
	Password  string
	// StartTLS upgrades the connection before any other command. The handshake
	// greets the upstream as "localhost", so LocalName is not sent in that mode.
	StartTLS bool
	// TLS overrides the client TLS settings used by StartTLS.
	TLS *tls.Config
}

// Forwarder relays envelopes to the upstream MTA, one connection per message.
type Forwarder struct {
	cfg    ForwarderConfig
	logger logger.Logger
}

func NewForwarder(cfg ForwarderConfig, log logger.Logger) *Forwarder {
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	return &Forwarder{cfg: cfg, logger: log}
}

// Forward sends env upstream. Recipients the upstream refused are returned with
// the refusal; the error covers failures of the transaction as a whole.
func (f *Forwarder) Forward(ctx context.Context, env models.Envelope) (map[string]error, error) {
	ctx, span := tracing.GetTracer("smtpproxy").Start(ctx, "smtp.forward")
	defer span.End()

	refused, err := f.send(ctx, env)
	if err != nil {
		metrics.SMTPForwardTotal.WithLabelValues("failure").Inc()
		return refused, errors.ErrDelivery.WithMessage("forward to %s failed", f.cfg.Remote).WithCause(err)
	}

	for rcpt, rerr := range refused {
		metrics.SMTPRefusedRecipientsTotal.Inc()
		f.logger.WarnwCtx(ctx, "Upstream refused recipient",
			"recipient", rcpt,
			"error", rerr,
		)
	}
	metrics.SMTPForwardTotal.WithLabelValues("success").Inc()
	return refused, nil
}

func (f *Forwarder) dial(ctx context.Context) (*smtp.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", f.cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if !f.cfg.StartTLS {
		c := smtp.NewClient(conn)
		if err := c.Hello(f.cfg.LocalName); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("hello: %w", err)
		}
		return c, nil
	}

	tlsCfg := f.cfg.TLS
	if tlsCfg == nil {
		host, _, _ := net.SplitHostPort(f.cfg.Remote)
		tlsCfg = &tls.Config{ServerName: host}
	}
	c, err := smtp.NewClientStartTLS(conn, tlsCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("starttls: %w", err)
	}
	return c, nil
}

func (f *Forwarder) send(ctx context.Context, env models.Envelope) (map[string]error, error) {
	c, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if f.cfg.User != "" {
		if err := c.Auth(sasl.NewPlainClient("", f.cfg.User, f.cfg.Password)); err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(env.From, nil); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}

	refused := make(map[string]error)
	for _, rcpt := range env.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			refused[rcpt] = err
		}
	}
	if len(refused) == len(env.To) {
		_ = c.Reset()
		return refused, nil
	}

	w, err := c.Data()
	if err != nil {
		return refused, fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(env.Data); err != nil {
		_ = w.Close()
		return refused, fmt.Errorf("write data: %w", err)
	}
	if err := w.Close(); err != nil {
		return refused, fmt.Errorf("end data: %w", err)
	}

	_ = c.Quit()
	return refused, nil
}
