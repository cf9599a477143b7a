package mailmsg

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/internal/actions"
	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/pkg/models"
)

type recordingSlack struct {
	mu      sync.Mutex
	targets []actions.Slack
	titles  []string
}

func (r *recordingSlack) Notify(_ context.Context, msg *models.Message, targets []actions.Slack) map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, targets...)
	r.titles = append(r.titles, msg.Subject)
	return nil
}

func newTestManager(t *testing.T, slack router.SlackNotifier, onError string, ruleList []rules.Rule) *Manager {
	t.Helper()
	exprNS, err := rules.NewExprNamespace()
	require.NoError(t, err)
	log := logger.NopLogger()
	return NewManager(ManagerConfig{
		Name:    "mail",
		Wanted:  router.Criteria{To: "mail2alert@example.com"},
		Rules:   ruleList,
		OnError: onError,
	}, exprNS, router.NewDelivery("mail", slack, nil, log), log)
}

var rawBackupMail = []byte("From: backup@example.com\r\nSubject: Backup failed\r\n\r\nDisk full\r\n")

func TestManagerProcess(t *testing.T) {
	slack := &recordingSlack{}
	m := newTestManager(t, slack, "", []rules.Rule{
		{Filter: rules.Filter{Function: "mail.in_subject", Args: []interface{}{"backup"}}, Actions: []string{"mailto:ops@example.com", "slack:#backups:full"}},
		{Filter: rules.Filter{Function: "mail.in_subject", Args: []interface{}{"restore"}}, Actions: []string{"mailto:never@example.com"}},
		{Filter: rules.Filter{Function: "expr.match", Args: []interface{}{`from == "backup@example.com"`}}, Actions: []string{"mailto:audit@example.com"}},
	})

	env := models.Envelope{From: "backup@example.com", To: []string{"mail2alert@example.com"}, Data: rawBackupMail}
	require.True(t, m.Wants(env))

	out, err := m.Process(context.Background(), env)

	require.NoError(t, err)
	assert.Equal(t, "backup@example.com", out.From)
	assert.Equal(t, []string{"ops@example.com", "audit@example.com"}, out.To)
	assert.Equal(t, rawBackupMail, out.Data)
	assert.Equal(t, []actions.Slack{{Destination: "#backups", Style: "full"}}, slack.targets)
	assert.Equal(t, []string{"Backup failed"}, slack.titles)
}

func TestManagerNoMatchDropsRecipients(t *testing.T) {
	m := newTestManager(t, nil, "", []rules.Rule{
		{Filter: rules.Filter{Function: "mail.in_subject", Args: []interface{}{"restore"}}, Actions: []string{"mailto:ops@example.com"}},
	})

	out, err := m.Process(context.Background(), models.Envelope{From: "x@example.com", Data: rawBackupMail})

	require.NoError(t, err)
	assert.Empty(t, out.To)
}

func TestManagerFailPolicyReturnsError(t *testing.T) {
	m := newTestManager(t, nil, constants.ErrorHandlingFail, []rules.Rule{
		{Filter: rules.Filter{Function: "pipelines.in_group", Args: []interface{}{"g"}}, Actions: []string{"mailto:ops@example.com"}},
	})

	_, err := m.Process(context.Background(), models.Envelope{Data: rawBackupMail})

	assert.Error(t, err)
}

func TestManagerSelfTestIsEmpty(t *testing.T) {
	m := newTestManager(t, nil, "", nil)

	report, err := m.SelfTest(context.Background())

	require.NoError(t, err)
	assert.Empty(t, report)
}
