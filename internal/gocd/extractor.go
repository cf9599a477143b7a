// Package gocd routes GoCD stage notification mail. It extracts the pipeline,
// stage and event from the subject, reconciles the event with build history,
// and matches rules against the pipeline group topology fetched from the server.
package gocd

import (
	"regexp"
	"strings"

	"mail2alert/internal/mailmsg"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/models"
)

// Stage [<pipeline>/<counter>/<stage>/<job counter>] <phrase>
var subjectPattern = regexp.MustCompile(`Stage\s*\[\s*([^/\]]+)/([^/\]]+)/([^/\]]+)/([^/\]]+)\]\s*(.+)$`)

var phraseEvents = map[string]models.Event{
	"is fixed":     models.EventFixed,
	"is broken":    models.EventBreaks,
	"is cancelled": models.EventCancelled,
	"passed":       models.EventPasses,
	"failed":       models.EventFails,
}

type Subject struct {
	Pipeline string
	Stage    string
	Phrase   string
	Event    models.Event
}

// ParseSubject matches the notification grammar. ok is false when the subject
// does not follow it; an unknown phrase yields ok with EventNone.
func ParseSubject(subject string) (Subject, bool) {
	m := subjectPattern.FindStringSubmatch(subject)
	if m == nil {
		return Subject{}, false
	}

	phrase := strings.Join(strings.Fields(m[5]), " ")
	return Subject{
		Pipeline: strings.TrimSpace(m[1]),
		Stage:    strings.TrimSpace(m[3]),
		Phrase:   phrase,
		Event:    phraseEvents[strings.ToLower(phrase)],
	}, true
}

// Extract parses raw mail into a message with pipeline, stage and literal event.
// The message is always usable; the error describes what could not be extracted
// and leaves the matching fields absent.
func Extract(id string, raw []byte) (*models.Message, error) {
	msg, err := mailmsg.Parse(id, raw)
	if err != nil {
		return msg, err
	}

	subject, ok := ParseSubject(msg.Subject)
	if !ok {
		return msg, errors.ErrParse.WithMessage("subject %q does not match the stage notification format", msg.Subject)
	}

	msg.Pipeline = subject.Pipeline
	msg.Stage = subject.Stage
	msg.Event = subject.Event
	msg.AlertLevel = models.AlertLevelForEvent(msg.Event)

	if subject.Event.IsNone() {
		return msg, errors.ErrParse.WithMessage("unexpected event %q in subject %q", subject.Phrase, msg.Subject)
	}
	return msg, nil
}
