package models

import "sync"

// Message is the normalized view of one inbound mail. Every field except Event is
// fixed once extraction finishes; the build-state tracker may rewrite Event.
type Message struct {
	ID         string
	From       string
	Subject    string
	Pipeline   string
	Stage      string
	Event      Event
	AlertLevel AlertLevel

	bodyOnce sync.Once
	bodyFn   func() string
	body     string
}

// NewMessage creates a message whose body is produced by bodyFn on first use.
func NewMessage(id, from, subject string, bodyFn func() string) *Message {
	return &Message{
		ID:      id,
		From:    from,
		Subject: subject,
		bodyFn:  bodyFn,
	}
}

func (m *Message) Body() string {
	m.bodyOnce.Do(func() {
		if m.bodyFn != nil {
			m.body = m.bodyFn()
			m.bodyFn = nil
		}
	})
	return m.body
}

func (m *Message) HasPipeline() bool {
	return m.Pipeline != ""
}

// StateKey identifies the pipeline stage this message reports on.
func (m *Message) StateKey() string {
	return StateKey(m.Pipeline, m.Stage)
}

func StateKey(pipeline, stage string) string {
	return pipeline + "/" + stage
}

// Fields exposes the message as a flat map for expression evaluation.
func (m *Message) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":       m.ID,
		"from":     m.From,
		"subject":  m.Subject,
		"pipeline": m.Pipeline,
		"stage":    m.Stage,
		"event":    m.Event.String(),
	}
}
