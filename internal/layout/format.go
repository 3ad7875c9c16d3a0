// Package layout produces filesystem-safe identifiers and implements the
// fixed on-disk directory tree the cache store is built on (spec §4.5,
// §4.7): one subtree per account, one per folder, one per message, with
// fixed filenames for headers, bodies, attachments, and flags.
package layout

import (
	"fmt"
	"strings"
	"time"
)

// reservedChars are the characters the spec requires replaced with "_" when
// sanitizing a subject or filename for use as a path component.
const reservedChars = `\/:*?"<>|`

// maxSubjectLen is the truncation cap applied to the sanitized subject
// before it is concatenated into a message directory name.
const maxSubjectLen = 100

// Sanitize replaces every reserved filesystem character in s with "_". It
// is also used, unmodified, to sanitize message-ids and attachment
// filenames.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MessageDirName computes the stable YYYY-MM-DD_HH-MM_SanitizedSubject
// directory name for a message, per spec §4.7. now supplies "now" when
// sentDate is zero and the millisecond timestamp used when subject is
// empty; it is a parameter (rather than a time.Now call) so the function
// stays a pure, deterministically testable function of its inputs.
func MessageDirName(sentDate time.Time, subject string, now func() time.Time) string {
	ts := sentDate
	if ts.IsZero() {
		ts = now()
	}

	var subjectPart string
	if strings.TrimSpace(subject) == "" {
		subjectPart = fmt.Sprintf("NoSubject_%d", now().UnixMilli())
	} else {
		sanitized := Sanitize(subject)
		if runes := []rune(sanitized); len(runes) > maxSubjectLen {
			sanitized = string(runes[:maxSubjectLen])
		}
		subjectPart = sanitized
	}

	return fmt.Sprintf("%s_%s", ts.Format("2006-01-02_15-04"), subjectPart)
}

// GeneratedMessageID builds the synthetic Message-ID the spec mandates for
// a source message that lacked one: <epochMillis.index@mailcache.generated>.
func GeneratedMessageID(epochMillis int64, index int) string {
	return fmt.Sprintf("<%d.%d@mailcache.generated>", epochMillis, index)
}
