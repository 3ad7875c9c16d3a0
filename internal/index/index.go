// Package index maintains a small SQLite-backed lookup accelerator in
// front of the on-disk message cache. It answers "which message directory
// holds message-id X in folder Y" without a directory walk; it is strictly
// a derived cache — the filesystem layout (spec §4.5) remains the sole
// source of truth, and Rebuild can always regenerate this index from a
// walk of the tree.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hkdb/mailcache/internal/logging"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Index is the message-id/dir lookup accelerator for one store.
type Index struct {
	db  *sql.DB
	log zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	folder_path TEXT NOT NULL,
	message_id  TEXT NOT NULL,
	dir_name    TEXT NOT NULL,
	uid         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (folder_path, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_dir ON messages(folder_path, dir_name);
`

// Open opens (creating if absent) the index database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(4)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("set index permissions: %w", err)
	}

	return &Index{db: db, log: logging.WithComponent("index")}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Put records (or updates) the directory name for a message-id within a
// folder.
func (idx *Index) Put(folderPath, messageID, dirName string, uid uint32) error {
	_, err := idx.db.Exec(
		`INSERT INTO messages (folder_path, message_id, dir_name, uid) VALUES (?, ?, ?, ?)
		 ON CONFLICT(folder_path, message_id) DO UPDATE SET dir_name=excluded.dir_name, uid=excluded.uid`,
		folderPath, messageID, dirName, uid,
	)
	if err != nil {
		return fmt.Errorf("index put: %w", err)
	}
	return nil
}

// LookupByMessageID returns the directory name cached for messageID within
// folderPath, or found=false if absent.
func (idx *Index) LookupByMessageID(folderPath, messageID string) (dirName string, found bool, err error) {
	row := idx.db.QueryRow(`SELECT dir_name FROM messages WHERE folder_path = ? AND message_id = ?`, folderPath, messageID)
	if err := row.Scan(&dirName); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("index lookup: %w", err)
	}
	return dirName, true, nil
}

// Delete removes the entry for messageID within folderPath, if any.
func (idx *Index) Delete(folderPath, messageID string) error {
	if _, err := idx.db.Exec(`DELETE FROM messages WHERE folder_path = ? AND message_id = ?`, folderPath, messageID); err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}

// ClearFolder drops every entry recorded for folderPath, used before a
// Rebuild or when a folder is cleared/archived.
func (idx *Index) ClearFolder(folderPath string) error {
	if _, err := idx.db.Exec(`DELETE FROM messages WHERE folder_path = ?`, folderPath); err != nil {
		return fmt.Errorf("index clear folder: %w", err)
	}
	return nil
}

// Count returns the number of entries recorded for folderPath, used to
// detect a missing or emptied index before it is trusted for lookups.
func (idx *Index) Count(folderPath string) (int, error) {
	var n int
	row := idx.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE folder_path = ?`, folderPath)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("index count: %w", err)
	}
	return n, nil
}

// Entry is one row rebuilt from a filesystem walk.
type Entry struct {
	MessageID string
	DirName   string
	UID       uint32
}

// Rebuild replaces every entry for folderPath with entries, in one
// transaction, so the index can always be regenerated from the
// authoritative on-disk layout after corruption or an out-of-band edit.
func (idx *Index) Rebuild(folderPath string, entries []Entry) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("index rebuild begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE folder_path = ?`, folderPath); err != nil {
		return fmt.Errorf("index rebuild clear: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO messages (folder_path, message_id, dir_name, uid) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index rebuild prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(folderPath, e.MessageID, e.DirName, e.UID); err != nil {
			return fmt.Errorf("index rebuild insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index rebuild commit: %w", err)
	}
	idx.log.Debug().Str("folder", folderPath).Int("count", len(entries)).Msg("rebuilt index")
	return nil
}
