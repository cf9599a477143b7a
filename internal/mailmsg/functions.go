package mailmsg

import (
	"context"
	"strings"

	"mail2alert/internal/rules"
	"mail2alert/pkg/models"
)

// Namespace exposes the "mail" filter functions.
func Namespace() rules.Namespace {
	return rules.Namespace{
		"in_subject": inSubject,
		"from":       from,
	}
}

// inSubject matches when every word occurs in the subject, ignoring case.
func inSubject(args []interface{}) (rules.Predicate, error) {
	words, err := rules.StringArgs(args)
	if err != nil {
		return nil, err
	}
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}

	return func(_ context.Context, msg *models.Message) (bool, error) {
		subject := strings.ToLower(msg.Subject)
		for _, word := range words {
			if !strings.Contains(subject, word) {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

func from(args []interface{}) (rules.Predicate, error) {
	addrs, err := rules.ExactStringArgs(args, 1)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(SenderAddress(addrs[0]))

	return func(_ context.Context, msg *models.Message) (bool, error) {
		return strings.ToLower(SenderAddress(msg.From)) == want, nil
	}, nil
}
