// Package mailmsg parses raw mail into messages and routes generic,
// non-CI mail by subject and sender.
package mailmsg

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"mail2alert/pkg/errors"
	"mail2alert/pkg/models"
)

const maxBodyDepth = 5

var wordDecoder = &mime.WordDecoder{}

// Parse reads raw RFC 5322 bytes. It always returns a message; on failure the
// message has an empty subject and an ErrParse error is returned alongside it.
// The body is decoded on first use.
func Parse(id string, raw []byte) (*models.Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return models.NewMessage(id, "", "", func() string { return "" }),
			errors.ErrParse.WithMessage("message is not RFC 5322").WithCause(err)
	}

	body, err := io.ReadAll(m.Body)
	if err != nil {
		return models.NewMessage(id, decodeHeader(m.Header.Get("From")), decodeHeader(m.Header.Get("Subject")), nil),
			errors.ErrParse.WithMessage("failed to read message body").WithCause(err)
	}

	header := textproto.MIMEHeader(m.Header)
	msg := models.NewMessage(
		id,
		decodeHeader(m.Header.Get("From")),
		decodeHeader(m.Header.Get("Subject")),
		func() string { return textBody(header, body, 0) },
	)
	msg.AlertLevel = models.AlertLevelPrimary
	return msg, nil
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

// SenderAddress extracts the bare address from a From header value.
func SenderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// textBody returns the first text/plain part, or the whole body for single part
// messages without a content type.
func textBody(header textproto.MIMEHeader, body []byte, depth int) string {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxBodyDepth || params["boundary"] == "" {
			return ""
		}
		reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
		for {
			part, err := reader.NextRawPart()
			if err != nil {
				return ""
			}
			partBody, err := io.ReadAll(part)
			if err != nil {
				return ""
			}
			if text := textBody(part.Header, partBody, depth+1); text != "" {
				return text
			}
		}
	}

	if mediaType != "text/plain" {
		return ""
	}
	return string(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
}

func decodeTransfer(encoding string, body []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body
		}
		return decoded
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(body))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return body
		}
		return decoded
	default:
		return body
	}
}
