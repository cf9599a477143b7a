// Package router hands each envelope to the first interested manager and
// carries the delivery steps that every manager shares.
package router

import (
	"context"

	"mail2alert/pkg/models"
)

// Manager owns one notification domain: it decides whether an envelope is its
// business, processes it into a re-addressed envelope, and can describe its
// routing table without live traffic.
type Manager interface {
	Name() string
	Wants(env models.Envelope) bool
	Process(ctx context.Context, env models.Envelope) (models.Envelope, error)
	SelfTest(ctx context.Context) ([]models.GroupReport, error)
}

// Criteria selects envelopes by recipient or by sender. To is checked first and,
// when set, decides alone.
type Criteria struct {
	To   string `mapstructure:"to" json:"to,omitempty"`
	From string `mapstructure:"from" json:"from,omitempty"`
}

func (c Criteria) Wants(env models.Envelope) bool {
	if c.To != "" {
		return env.HasRecipient(c.To)
	}
	if c.From != "" {
		return env.From == c.From
	}
	return false
}

func (c Criteria) IsZero() bool {
	return c.To == "" && c.From == ""
}
