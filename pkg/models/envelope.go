package models

import "fmt"

// Envelope is one SMTP transaction: sender, recipients and the raw message.
type Envelope struct {
	From string   `json:"from"`
	To   []string `json:"to"`
	Data []byte   `json:"data"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEnvelope(env *Envelope) error {
	if env == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "envelope cannot be nil",
		}
	}

	if len(env.Data) == 0 {
		return &ValidationError{
			Field:   "data",
			Message: "message data is required",
		}
	}

	return nil
}

// HasRecipient reports whether addr is one of the envelope recipients.
func (env Envelope) HasRecipient(addr string) bool {
	for _, rcpt := range env.To {
		if rcpt == addr {
			return true
		}
	}
	return false
}
