package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/internal/config"
	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/pkg/models"
	"mail2alert/pkg/retry"
)

type published struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	records []published
	err     error
}

func (f *fakeProducer) Publish(_ context.Context, topic, key string, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, published{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestDecisionPublisherKeysByMessageID(t *testing.T) {
	producer := &fakeProducer{}
	p := NewDecisionPublisher(producer, "mail2alert.decisions")

	decision := models.Decision{Manager: "gocd", MessageID: "m-1", Event: "BREAKS"}
	require.NoError(t, p.PublishDecision(context.Background(), decision))

	require.Len(t, producer.records, 1)
	assert.Equal(t, "mail2alert.decisions", producer.records[0].topic)
	assert.Equal(t, "m-1", producer.records[0].key)
	assert.Equal(t, decision, producer.records[0].value)
}

func TestDecisionPublisherReturnsProducerError(t *testing.T) {
	p := NewDecisionPublisher(&fakeProducer{err: errors.New("broker down")}, "t")
	assert.Error(t, p.PublishDecision(context.Background(), models.Decision{MessageID: "m"}))
}

func TestDecodeEnvelope(t *testing.T) {
	raw, err := json.Marshal(models.Envelope{From: "a@b", To: []string{"c@d"}, Data: []byte("Subject: hi\r\n\r\n")})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":"U3ViamVjdDogaGkNCg0K"`)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@b", env.From)
	assert.Equal(t, []string{"c@d"}, env.To)
	assert.Equal(t, "Subject: hi\r\n\r\n", string(env.Data))
}

func TestDecodeEnvelopeRejectsInvalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"from":"a@b","to":["c@d"]}`))
	assert.Error(t, err)
}

type stubRouter struct {
	result router.Result
	err    error
}

func (s stubRouter) Route(context.Context, models.Envelope) (router.Result, error) {
	return s.result, s.err
}

type stubRelay struct {
	calls int
	err   error
}

func (s *stubRelay) Forward(context.Context, models.Envelope) (map[string]error, error) {
	s.calls++
	return nil, s.err
}

func TestRouteHandler(t *testing.T) {
	forwarded := router.Result{Envelope: models.Envelope{To: []string{"team@example.com"}}, Manager: "gocd"}
	dropped := router.Result{Manager: "gocd"}

	tests := []struct {
		name      string
		router    stubRouter
		relayErr  error
		wantCalls int
		wantErr   bool
	}{
		{name: "forwarded", router: stubRouter{result: forwarded}, wantCalls: 1},
		{name: "dropped", router: stubRouter{result: dropped}, wantCalls: 0},
		{name: "routing error is final", router: stubRouter{result: dropped, err: errors.New("rule failed")}, wantCalls: 0},
		{name: "relay error is returned", router: stubRouter{result: forwarded}, relayErr: errors.New("mta down"), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &stubRelay{err: tt.relayErr}
			err := RouteHandler(tt.router, relay, logger.NopLogger())(context.Background(), models.Envelope{})
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantCalls, relay.calls)
		})
	}
}

func TestRouteHandlerWithoutRelayIsFatal(t *testing.T) {
	r := stubRouter{result: router.Result{Envelope: models.Envelope{To: []string{"x@y"}}}}
	err := RouteHandler(r, nil, logger.NopLogger())(context.Background(), models.Envelope{})
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{MaxAttempts: 5, InitialInterval: 50 * time.Millisecond})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 30*time.Second, p.MaxInterval)
	assert.Equal(t, 2.0, p.Multiplier)
}

func TestFactoriesReturnNilWhenDisabled(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{}, logger.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, p)

	c, err := NewConsumer(config.KafkaConfig{}, logger.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = NewProducer(config.KafkaConfig{DecisionsEnabled: true}, logger.NopLogger())
	assert.Error(t, err)
}
