package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
)

func TestResolveMailActions(t *testing.T) {
	set := NewResolver("gocd", logger.NopLogger()).Resolve(context.Background(), []string{"mailto:a@b.c", "mailto:d@e.f"})

	assert.Equal(t, []string{"a@b.c", "d@e.f"}, set.Recipients())
	assert.Empty(t, set.Slack)
}

func TestResolveMixedActionsDropsUnknownKinds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	resolver := NewResolver("gocd", logger.NewObserved(core))

	set := resolver.Resolve(context.Background(), []string{
		"mailto:a@b.c",
		"mailtoooooo:d@e.f",
		"slack:#channel",
		"slack:@user:full",
	})

	assert.Equal(t, []string{"a@b.c"}, set.Recipients())
	assert.Equal(t, []Slack{
		{Destination: "#channel", Style: "brief"},
		{Destination: "@user", Style: "full"},
	}, set.Slack)

	entries := logs.FilterMessage("Unexpected action").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mailtoooooo:d@e.f", entries[0].ContextMap()["action"])
}

func TestResolveKeepsDuplicates(t *testing.T) {
	set := NewResolver("gocd", logger.NopLogger()).Resolve(context.Background(), []string{"mailto:a@b.c", "mailto:a@b.c"})

	assert.Equal(t, []string{"a@b.c", "a@b.c"}, set.Recipients())
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    interface{}
		wantErr bool
	}{
		{raw: "mailto:ops@example.com", want: Mailto{Destination: "ops@example.com"}},
		{raw: "slack:#ci", want: Slack{Destination: "#ci", Style: "brief"}},
		{raw: "slack:#ci:", want: Slack{Destination: "#ci", Style: "brief"}},
		{raw: "slack:#ci:loud", want: Slack{Destination: "#ci", Style: "loud"}},
		{raw: "slack:#ci:full:extra", wantErr: true},
		{raw: "mailto:", wantErr: true},
		{raw: "slack:", wantErr: true},
		{raw: "pager:team", wantErr: true},
		{raw: "nocolon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetEmpty(t *testing.T) {
	assert.True(t, Set{}.Empty())
	assert.False(t, Set{Slack: []Slack{{Destination: "#ci"}}}.Empty())
}
