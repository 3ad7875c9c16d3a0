// Package mailmime parses RFC 822/MIME message sources into the shape the
// cache store persists: ordered headers, a decoded text body, a sanitized
// HTML body, and extracted attachments (including TNEF/winmail.dat
// attachments, expanded into ordinary ones).
package mailmime

import (
	"io"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/hkdb/mailcache/internal/logging"
	"github.com/microcosm-cc/bluemonday"
	"github.com/teamwork/tnef"
)

// maxPartSize bounds a single MIME part read, guarding against a hostile
// or corrupt message exhausting memory.
const maxPartSize = 10 * 1024 * 1024

// HeaderLine is one "Name: Value" pair in source order, preserving
// multi-valued headers as repeated lines (spec §6 wire format).
type HeaderLine struct {
	Name  string
	Value string
}

// Attachment is an extracted attachment, file-based or inline.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	IsInline    bool
	Content     []byte
}

// Parsed is the result of parsing one raw message.
type Parsed struct {
	Headers        []HeaderLine
	MessageID      string // Message-ID header value, <> stripped; "" if absent
	Subject        string
	BodyText       string
	BodyHTML       string
	Attachments    []Attachment
	HasAttachments bool
}

var htmlPolicy = bluemonday.UGCPolicy()

// Parse parses a raw RFC 822 message. Parse failures degrade to treating
// the whole payload as a single plain-text body rather than failing the
// caller — a cache should still be able to store an unparseable message
// rather than lose it.
func Parse(raw []byte) *Parsed {
	log := logging.WithComponent("mailmime")

	entity, err := gomessage.Read(strings.NewReader(string(raw)))
	if err != nil {
		log.Debug().Err(err).Msg("failed to parse message, storing as plain text")
		return &Parsed{BodyText: string(raw)}
	}

	result := &Parsed{
		Headers:   headerLines(entity.Header),
		MessageID: strings.Trim(entity.Header.Get("Message-Id"), "<>"),
		Subject:   decodeHeaderText(entity.Header, "Subject"),
	}

	if mr := entity.MultipartReader(); mr != nil {
		parseMultipart(mr, result)
	} else {
		parseSinglePart(entity, result)
	}

	if result.BodyHTML != "" {
		result.BodyHTML = htmlPolicy.Sanitize(result.BodyHTML)
	}
	result.HasAttachments = len(result.Attachments) > 0
	return result
}

func headerLines(h gomessage.Header) []HeaderLine {
	var lines []HeaderLine
	fields := h.Fields()
	for fields.Next() {
		value := fields.Value()
		if text, err := fields.Text(); err == nil {
			value = text
		}
		lines = append(lines, HeaderLine{Name: fields.Key(), Value: value})
	}
	return lines
}

func decodeHeaderText(h gomessage.Header, key string) string {
	dec := new(mime.WordDecoder)
	raw := h.Get(key)
	if decoded, err := dec.DecodeHeader(raw); err == nil {
		return decoded
	}
	return raw
}

func parseMultipart(mr gomessage.MultipartReader, result *Parsed) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		contentType, ctParams, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		disposition, dispParams, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		contentID := strings.Trim(part.Header.Get("Content-Id"), "<>")

		if isTNEF(contentType, dispParams) {
			appendTNEFAttachments(part, result)
			continue
		}

		if disposition == "attachment" {
			appendAttachment(result, part, contentType, dispParams, contentID, contentID != "")
			continue
		}

		if strings.HasPrefix(contentType, "multipart/") {
			if nested := part.MultipartReader(); nested != nil {
				parseMultipart(nested, result)
			}
			continue
		}

		if (disposition == "inline" && strings.HasPrefix(contentType, "image/")) ||
			(contentID != "" && strings.HasPrefix(contentType, "image/")) {
			appendAttachment(result, part, contentType, dispParams, contentID, true)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
		switch contentType {
		case "text/plain":
			if result.BodyText == "" {
				result.BodyText = decodeBytes(body, ctParams["charset"], nil)
			}
		case "text/html":
			if result.BodyHTML == "" {
				result.BodyHTML = decodeBytes(body, ctParams["charset"], body)
			}
		}
	}
}

func parseSinglePart(entity *gomessage.Entity, result *Parsed) {
	contentType, ctParams, _ := mime.ParseMediaType(entity.Header.Get("Content-Type"))
	body, _ := io.ReadAll(io.LimitReader(entity.Body, maxPartSize))
	if contentType == "text/html" {
		result.BodyHTML = decodeBytes(body, ctParams["charset"], body)
	} else {
		result.BodyText = decodeBytes(body, ctParams["charset"], nil)
	}
}

func appendAttachment(result *Parsed, part *gomessage.Entity, contentType string, dispParams map[string]string, contentID string, inline bool) {
	body, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
	if err != nil && len(body) == 0 {
		return
	}
	result.Attachments = append(result.Attachments, Attachment{
		Filename:    dispParams["filename"],
		ContentType: contentType,
		ContentID:   contentID,
		IsInline:    inline,
		Content:     body,
	})
}

// isTNEF reports whether a part is a Microsoft TNEF (winmail.dat)
// attachment, identified by content-type or filename.
func isTNEF(contentType string, dispParams map[string]string) bool {
	if strings.EqualFold(contentType, "application/ms-tnef") || strings.EqualFold(contentType, "application/vnd.ms-tnef") {
		return true
	}
	return strings.EqualFold(dispParams["filename"], "winmail.dat")
}

// appendTNEFAttachments decodes a winmail.dat part via teamwork/tnef and
// expands its contained attachments into ordinary ones, instead of caching
// one opaque TNEF blob.
func appendTNEFAttachments(part *gomessage.Entity, result *Parsed) {
	raw, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
	if err != nil {
		return
	}
	data, err := tnef.Decode(raw)
	if err != nil {
		logging.WithComponent("mailmime").Debug().Err(err).Msg("failed to decode TNEF attachment")
		return
	}
	for _, a := range data.Attachments {
		result.Attachments = append(result.Attachments, Attachment{
			Filename:    a.Title,
			ContentType: "application/octet-stream",
			Content:     a.Data,
		})
	}
}
