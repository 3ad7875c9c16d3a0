// Package remote defines the abstract IMAP client capability the core
// mailcache engine depends on (spec §6) and a concrete adapter over
// emersion/go-imap/v2. The core never imports imapclient directly — it only
// ever sees the Client interface, so tests substitute a fake.
package remote

import (
	"context"
	"time"
)

// Flag is an IMAP/cache message flag token, e.g. "\Seen", "\Flagged", or a
// custom keyword.
type Flag string

const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
)

// MailboxInfo describes one remote mailbox as returned by LIST.
type MailboxInfo struct {
	Name       string
	Delimiter  string
	Attributes []string
}

// MessageMeta is the metadata the synchronizer and message repository need
// about one remote message without necessarily fetching its full body.
type MessageMeta struct {
	UID       uint32
	MessageID string // RFC 822 Message-ID header value, with <> stripped
	Subject   string
	Date      time.Time
	Size      int64
	Flags     []Flag
	Raw       []byte // full RFC822 source, populated when the caller asked for it
}

// SearchCriteria is the subset of query shapes the mail-access API exposes
// (spec §4.3): sender/subject substring, an exact header match (notably
// Message-ID), and sent-year equality. Zero-value fields are not applied.
type SearchCriteria struct {
	FromContains    string
	SubjectContains string
	HeaderEquals    map[string]string
	SentYear        int
}

// Client is the abstract IMAP capability injected into a Store (spec §6).
// Every method may block. IMAPClient honours ctx only while dialing in
// Connect; its other calls run until the server answers or a per-read or
// per-write connection deadline expires.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error

	ListChildren(ctx context.Context, parent string) ([]MailboxInfo, error)
	MailboxExists(ctx context.Context, name string) (bool, error)

	// Open selects a mailbox. readWrite selects it read-write; otherwise
	// read-only. Re-opening an already-open mailbox is allowed and simply
	// re-selects it.
	Open(ctx context.Context, name string, readWrite bool) error
	Close(ctx context.Context, expunge bool) error

	CreateMailbox(ctx context.Context, name string) error
	RenameMailbox(ctx context.Context, oldName, newName string) error
	DeleteMailbox(ctx context.Context, name string) error

	// ListMessages enumerates metadata (optionally including raw source)
	// for every message in the currently open mailbox.
	ListMessages(ctx context.Context, withRaw bool) ([]MessageMeta, error)
	Search(ctx context.Context, criteria SearchCriteria) ([]MessageMeta, error)

	AppendMessage(ctx context.Context, mailbox string, raw []byte, flags []Flag, date time.Time) (uid uint32, err error)
	SetFlags(ctx context.Context, uid uint32, flags []Flag, add bool) error
	CopyMessage(ctx context.Context, uid uint32, destMailbox string) error
	DeleteMessage(ctx context.Context, uid uint32) error
}
