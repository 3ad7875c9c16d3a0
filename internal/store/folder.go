package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/layout"
	"github.com/hkdb/mailcache/internal/mode"
)

// OpenState is a Folder handle's position in the Closed/ReadOnly/ReadWrite
// state machine (spec §4.2).
type OpenState int

const (
	Closed OpenState = iota
	ReadOnly
	ReadWrite
)

// Folder is an open handle on one mailbox path within a Store. At most one
// handle owns a given on-disk directory's mutating operations at a time
// (spec §5); callers obtain one via Store.OpenFolder.
type Folder struct {
	store *Store
	Path  string
	dir   string
	state OpenState
}

// Dir returns the folder's on-disk directory.
func (f *Folder) Dir() string { return f.dir }

// State returns the folder handle's current open state.
func (f *Folder) State() OpenState { return f.state }

// FolderExists implements §4.2 exists(name): true if the local directory
// exists, or — in a server-read mode — the remote folder exists, in which
// case the local directory is materialized before returning true.
func (s *Store) FolderExists(ctx context.Context, name string) (bool, error) {
	dir := layout.FolderDir(s.CacheRoot, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return true, nil
	}

	m, done := s.gate.Begin()
	defer done()
	if !m.ReadsFromServer() || s.client == nil {
		return false, nil
	}

	exists, err := s.client.MailboxExists(ctx, name)
	if err != nil {
		return false, errs.Wrap(errs.RemoteUnavailable, "Folder.Exists", "check remote mailbox", err)
	}
	if !exists {
		return false, nil
	}
	if err := layout.EnsureDir(layout.MessagesDir(dir)); err != nil {
		return false, errs.Wrap(errs.IoFailure, "Folder.Exists", "materialize folder directory", err)
	}
	return true, nil
}

// ListFolders implements §4.2 list(parent): the union of local subdirectories
// and, in server-read modes, remote children, de-duplicated by full path.
func (s *Store) ListFolders(ctx context.Context, parent string) ([]string, error) {
	parentDir := layout.FolderDir(s.CacheRoot, parent)
	seen := make(map[string]bool)
	var names []string

	entries, err := os.ReadDir(parentDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.IoFailure, "Folder.List", "read local folder directory", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == layout.MessagesDirname || e.Name() == layout.ArchiveDirname {
			continue
		}
		path := joinPath(parent, e.Name())
		if !seen[path] {
			seen[path] = true
			names = append(names, path)
		}
	}

	m, done := s.gate.Begin()
	defer done()
	if m.ReadsFromServer() && s.client != nil {
		children, err := s.client.ListChildren(ctx, parent)
		if err != nil {
			return nil, errs.Wrap(errs.RemoteUnavailable, "Folder.List", "list remote children", err)
		}
		for _, c := range children {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// CreateFolder implements §4.2 create(name): server-first, with ACCELERATED
// creating the local directory anyway and signalling a warning on remote
// failure; ONLINE/REFRESH/DESTRUCTIVE fail fatally with no local side
// effect.
func (s *Store) CreateFolder(ctx context.Context, name string) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.WriteAllowed() {
		return errs.New(errs.ModeViolation, "Folder.Create", "mode forbids folder creation")
	}

	if err := s.remoteSideEffect(ctx, m, "Folder.Create", func() error {
		if s.client == nil {
			return nil
		}
		return s.client.CreateMailbox(ctx, name)
	}); err != nil {
		return err
	}

	dir := layout.FolderDir(s.CacheRoot, name)
	if err := layout.EnsureDir(layout.MessagesDir(dir)); err != nil {
		return errs.Wrap(errs.IoFailure, "Folder.Create", "create local folder directory", err)
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.FolderAdded, Item: name})
	return nil
}

// RenameFolder implements §4.2 rename(oldName, newName): write-gated,
// server-first with the same ACCELERATED fallback rule as CreateFolder.
func (s *Store) RenameFolder(ctx context.Context, oldName, newName string) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.WriteAllowed() {
		return errs.New(errs.ModeViolation, "Folder.Rename", "mode forbids folder rename")
	}

	if err := s.remoteSideEffect(ctx, m, "Folder.Rename", func() error {
		if s.client == nil {
			return nil
		}
		return s.client.RenameMailbox(ctx, oldName, newName)
	}); err != nil {
		return err
	}

	oldDir := layout.FolderDir(s.CacheRoot, oldName)
	newDir := layout.FolderDir(s.CacheRoot, newName)
	if _, err := os.Stat(oldDir); err == nil {
		if err := layout.EnsureDir(filepath.Dir(newDir)); err != nil {
			return errs.Wrap(errs.IoFailure, "Folder.Rename", "prepare destination parent", err)
		}
		if err := os.Rename(oldDir, newDir); err != nil {
			return errs.Wrap(errs.IoFailure, "Folder.Rename", "rename local folder directory", err)
		}
	} else {
		if err := layout.EnsureDir(layout.MessagesDir(newDir)); err != nil {
			return errs.Wrap(errs.IoFailure, "Folder.Rename", "create renamed folder directory", err)
		}
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.FolderUpdated, Item: newName})
	return nil
}

// DeleteFolder implements §4.2 delete(name): delete-gated. Moves the local
// directory under archive/<timestamp>/<name> before requesting remote
// deletion; if archival fails the remote delete must not be issued.
func (s *Store) DeleteFolder(ctx context.Context, name string) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.DeleteAllowed() {
		return errs.New(errs.ModeViolation, "Folder.Delete", "mode forbids folder deletion")
	}

	dir := layout.FolderDir(s.CacheRoot, name)
	if _, err := os.Stat(dir); err == nil {
		archiveRoot := layout.ArchiveDir(s.CacheRoot)
		dest := filepath.Join(archiveRoot, timestampDir(), filepath.Base(name))
		if err := layout.EnsureDir(filepath.Dir(dest)); err != nil {
			return errs.Wrap(errs.IoFailure, "Folder.Delete", "prepare archive directory", err)
		}
		if err := os.Rename(dir, dest); err != nil {
			return errs.Wrap(errs.IoFailure, "Folder.Delete", "archive local folder directory", err)
		}
	}

	if s.client != nil {
		if err := s.client.DeleteMailbox(ctx, name); err != nil {
			return errs.Wrap(errs.RemoteUnavailable, "Folder.Delete", "delete remote mailbox", err)
		}
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.FolderRemoved, Item: name})
	return nil
}

// OpenFolder transitions a folder handle Closed -> ReadOnly or Closed ->
// ReadWrite (spec §4.2). The on-disk directory is materialized if absent.
func (s *Store) OpenFolder(ctx context.Context, name string, readWrite bool) (*Folder, error) {
	s.mu.Lock()
	if existing, ok := s.folders[name]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	dir := layout.FolderDir(s.CacheRoot, name)
	if err := layout.EnsureDir(layout.MessagesDir(dir)); err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Folder.Open", "materialize folder directory", err)
	}

	if s.client != nil {
		m, done := s.gate.Begin()
		readsFromServer := m.ReadsFromServer()
		done()
		if readsFromServer {
			if err := s.client.Open(ctx, name, readWrite); err != nil {
				return nil, errs.Wrap(errs.RemoteUnavailable, "Folder.Open", "open remote mailbox", err)
			}
		}
	}

	state := ReadOnly
	if readWrite {
		state = ReadWrite
	}
	f := &Folder{store: s, Path: name, dir: dir, state: state}
	if s.idx != nil {
		if err := s.reconcileIndex(f); err != nil {
			s.log.Warn().Err(err).Str("folder", name).Msg("index reconciliation failed, lookups fall back to directory scans")
		}
	}
	s.registerFolder(f)
	return f, nil
}

// Close transitions the handle back to Closed. expunge=true is rejected
// unless the mode is DESTRUCTIVE; otherwise treated as close-without-expunge
// (spec §4.2).
func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.state == Closed {
		return nil
	}
	m, done := f.store.gate.Begin()
	doExpunge := expunge && m == mode.Destructive
	done()

	var err error
	if f.store.client != nil {
		err = f.store.client.Close(ctx, doExpunge)
	}
	f.state = Closed
	f.store.unregisterFolder(f.Path)
	if err != nil {
		return errs.Wrap(errs.RemoteUnavailable, "Folder.Close", "close remote mailbox", err)
	}
	return nil
}

// remoteSideEffect runs op (a remote mutation) under the server-first
// ordering rule: failures under ACCELERATED are logged and swallowed (the
// local side effect proceeds); under ONLINE/REFRESH/DESTRUCTIVE they are
// surfaced and must prevent the local side effect.
func (s *Store) remoteSideEffect(ctx context.Context, m mode.Mode, op string, fn func() error) error {
	if err := fn(); err != nil {
		if m == mode.Accelerated {
			s.log.Warn().Err(err).Str("op", op).Msg("remote operation failed under accelerated mode, proceeding locally")
			return nil
		}
		return errs.Wrap(errs.RemoteUnavailable, op, "remote operation failed", err)
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func timestampDir() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
