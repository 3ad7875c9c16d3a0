package store

import (
	"context"
	"os"
	"time"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/layout"
	"github.com/hkdb/mailcache/internal/mode"
	"github.com/hkdb/mailcache/internal/remote"
)

// SyncStatus is the ephemeral per-folder record spec §3/§4.4 requires:
// not persisted across process restarts.
type SyncStatus struct {
	StartTime          time.Time
	EndTime            time.Time
	Success            bool
	SyncedMessageCount int
	LastError          string
}

// GetSyncStatus returns (lazily creating) folder's ephemeral sync status.
func (s *Store) GetSyncStatus(folderPath string) *SyncStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.statuses[folderPath]
	if !ok {
		st = &SyncStatus{}
		s.statuses[folderPath] = st
	}
	return st
}

func (s *Store) setSyncStatus(folderPath string, st SyncStatus) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.statuses[folderPath] = &st
}

// Synchronize implements §4.4 synchronize(folder): pulls the remote
// message listing, materializing any message not already cached by
// message-id, checkpointing cancellation after each message.
func (s *Store) Synchronize(ctx context.Context, folder *Folder) error {
	m, done := s.gate.Begin()
	defer done()
	if m == mode.Offline {
		return errs.New(errs.ModeViolation, "Synchronizer", "mode forbids synchronization")
	}
	if s.client == nil {
		return errs.New(errs.RemoteUnavailable, "Synchronizer", "no remote client configured")
	}

	status := SyncStatus{StartTime: time.Now()}

	if err := s.client.Open(ctx, folder.Path, false); err != nil {
		status.EndTime = time.Now()
		status.LastError = err.Error()
		s.setSyncStatus(folder.Path, status)
		return errs.Wrap(errs.RemoteUnavailable, "Synchronizer", "open remote folder", err)
	}

	metas, err := s.client.ListMessages(ctx, true)
	if err != nil {
		s.client.Close(ctx, false)
		status.EndTime = time.Now()
		status.LastError = err.Error()
		s.setSyncStatus(folder.Path, status)
		return errs.Wrap(errs.RemoteUnavailable, "Synchronizer", "list remote messages", err)
	}

	synced := 0
	for i, meta := range metas {
		select {
		case <-ctx.Done():
			s.client.Close(ctx, false)
			status.EndTime = time.Now()
			status.SyncedMessageCount = synced
			status.Success = false
			status.LastError = errs.Cancelled.Error()
			s.setSyncStatus(folder.Path, status)
			return errs.New(errs.Cancelled, "Synchronizer", "synchronization cancelled")
		default:
		}

		key := meta.MessageID
		if key == "" {
			key = layout.GeneratedMessageID(time.Now().UnixMilli(), i)
		}
		if _, found := s.resolveLocal(folder, key); found {
			continue
		}
		if _, err := s.materialize(folder, meta, i); err != nil {
			s.client.Close(ctx, false)
			status.EndTime = time.Now()
			status.SyncedMessageCount = synced
			status.Success = false
			status.LastError = err.Error()
			s.setSyncStatus(folder.Path, status)
			return err
		}
		synced++
	}

	if err := s.client.Close(ctx, false); err != nil {
		s.log.Warn().Err(err).Str("folder", folder.Path).Msg("error closing remote folder after sync")
	}

	status.EndTime = time.Now()
	status.SyncedMessageCount = synced
	status.Success = true
	s.setSyncStatus(folder.Path, status)
	return nil
}

// PurgeOlderThan implements §4.4's purge: archives every cached message in
// folder whose sent date predates now-days, unless it is flagged and
// preserveFlagged is set. Returns the count archived. days<=0 is a no-op.
func (s *Store) PurgeOlderThan(ctx context.Context, folder *Folder, days int, preserveFlagged bool) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	_, done := s.gate.Begin()
	defer done()
	cutoff := time.Now().AddDate(0, 0, -days)

	messagesDir := layout.MessagesDir(folder.dir)
	entries, err := os.ReadDir(messagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errs.Wrap(errs.IoFailure, "Synchronizer.Purge", "read message directory", err)
	}

	purged := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		msg, err := s.readMessage(folder, e.Name())
		if err != nil {
			continue
		}
		if !msg.SentDate.Before(cutoff) {
			continue
		}
		if preserveFlagged && msg.HasFlag(remote.FlagFlagged) {
			continue
		}
		if err := s.archiveMessage(folder, msg); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
