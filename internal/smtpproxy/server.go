// Package smtpproxy is the SMTP face of mail2alert: it accepts mail, lets the
// router decide who should get it, and relays the result to the upstream MTA.
package smtpproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	apperrors "mail2alert/pkg/errors"
	"mail2alert/pkg/logging"
	"mail2alert/pkg/models"
)

type Router interface {
	Route(ctx context.Context, env models.Envelope) (router.Result, error)
}

type Relay interface {
	Forward(ctx context.Context, env models.Envelope) (map[string]error, error)
}

type Config struct {
	Listen          string
	Domain          string
	MaxMessageBytes int64
	MaxRecipients   int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

type Server struct {
	srv    *smtp.Server
	logger logger.Logger
}

func NewServer(cfg Config, r Router, relay Relay, log logger.Logger) *Server {
	srv := smtp.NewServer(&backend{router: r, relay: relay, logger: log})
	srv.Addr = cfg.Listen
	srv.Domain = cfg.Domain
	srv.MaxMessageBytes = cfg.MaxMessageBytes
	srv.MaxRecipients = cfg.MaxRecipients
	srv.ReadTimeout = cfg.ReadTimeout
	srv.WriteTimeout = cfg.WriteTimeout
	srv.AllowInsecureAuth = true

	return &Server{srv: srv, logger: log}
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Infow("SMTP proxy listening", "addr", l.Addr().String())
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			errChan <- fmt.Errorf("smtp server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("smtp server shutdown error: %w", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

type backend struct {
	router Router
	relay  Relay
	logger logger.Logger
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if conn := c.Conn(); conn != nil {
		remote = conn.RemoteAddr().String()
	}
	return &session{backend: b, remote: remote}, nil
}

type session struct {
	*backend
	remote string
	from   string
	to     []string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// Data routes the message and relays it. A routing failure or a message no
// manager addressed anywhere is accepted and not relayed.
func (s *session) Data(r io.Reader) (err error) {
	ctx := logging.WithMessageID(context.Background(), uuid.NewString())
	ctx = logging.WithRemoteAddr(ctx, s.remote)

	defer func() {
		if rec := recover(); rec != nil {
			perr := apperrors.RecoverPanic(rec)
			s.logger.ErrorwCtx(ctx, "Recovered panic while handling message", "error", perr)
			err = &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Temporary failure, try again later",
			}
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	env := models.Envelope{From: s.from, To: append([]string(nil), s.to...), Data: data}
	result, rerr := s.router.Route(ctx, env)
	if rerr != nil {
		s.logger.ErrorwCtx(ctx, "Failed to process message, not relaying",
			"from", env.From,
			"error", rerr,
		)
		return nil
	}

	if result.Drop() {
		s.logger.InfowCtx(ctx, "No recipients left, message not relayed",
			"manager", result.Manager,
		)
		return nil
	}

	refused, ferr := s.relay.Forward(ctx, result.Envelope)
	if ferr != nil {
		s.logger.ErrorwCtx(ctx, "Failed to relay message",
			"recipients", result.Envelope.To,
			"error", ferr,
		)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 4, 1},
			Message:      "Upstream relay unavailable",
		}
	}

	s.logger.InfowCtx(ctx, "Relayed message",
		"recipients", len(result.Envelope.To),
		"refused", len(refused),
	)
	return nil
}
