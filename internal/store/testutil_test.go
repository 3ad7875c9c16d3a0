package store

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/index"
	"github.com/hkdb/mailcache/internal/mode"
	"github.com/hkdb/mailcache/internal/remote"
)

// newTestStore opens a Store rooted at a fresh temp directory with a real
// (temp-file-backed) index, bypassing only the Registry's one-account
// exclusivity bookkeeping, which these tests don't exercise.
func newTestStore(t *testing.T, m mode.Mode, client remote.Client) *Store {
	t.Helper()
	root := t.TempDir()
	idx, err := index.Open(filepath.Join(root, ".mailcache-index.db"))
	if err != nil {
		t.Fatalf("index.Open() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	s, err := open(Config{
		AccountID:   "acct",
		CacheRoot:   root,
		InitialMode: m,
	}, client, events.New(), idx)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	return s
}

func rawMessage(messageID, from, subject, body string) []byte {
	msg := "From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n"
	if messageID != "" {
		msg += "Message-Id: <" + messageID + ">\r\n"
	}
	msg += "\r\n" + body
	return []byte(msg)
}
