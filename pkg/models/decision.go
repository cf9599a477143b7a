package models

import "time"

// Decision records what a manager did with one message.
type Decision struct {
	Manager      string    `json:"manager"`
	MessageID    string    `json:"message_id"`
	From         string    `json:"from"`
	Subject      string    `json:"subject"`
	Pipeline     string    `json:"pipeline,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	LiteralEvent string    `json:"literal_event,omitempty"`
	Event        string    `json:"event,omitempty"`
	Actions      []string  `json:"actions"`
	Recipients   []string  `json:"recipients"`
	Timestamp    time.Time `json:"timestamp"`
}
