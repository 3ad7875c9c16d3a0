package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/index"
	"github.com/hkdb/mailcache/internal/layout"
	"github.com/hkdb/mailcache/internal/logging"
	"github.com/hkdb/mailcache/internal/mode"
	"github.com/hkdb/mailcache/internal/remote"
	"github.com/rs/zerolog"
)

// Store represents one account: its cache root, its mode gate, the remote
// client it drives (nil when operating purely offline with no client
// configured), and the folders it has materialized (spec §3).
type Store struct {
	AccountID string
	CacheRoot string

	gate   *mode.Gate
	client remote.Client
	bus    *events.Bus
	idx    *index.Index
	log    zerolog.Logger

	mu      sync.Mutex
	folders map[string]*Folder // path -> open handle, present only while open

	statusMu sync.Mutex
	statuses map[string]*SyncStatus
}

// open constructs a Store. Client may be nil if the account has no
// configured remote (OFFLINE-only operation).
func open(cfg Config, client remote.Client, bus *events.Bus, idx *index.Index) (*Store, error) {
	if !mode.Valid(cfg.InitialMode) {
		return nil, errs.New(errs.InvalidState, "Store.Open", fmt.Sprintf("unknown mode %q", cfg.InitialMode))
	}
	if err := layout.EnsureDir(cfg.CacheRoot); err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Store.Open", "create cache root", err)
	}

	s := &Store{
		AccountID: cfg.AccountID,
		CacheRoot: cfg.CacheRoot,
		gate:      mode.NewGate(cfg.InitialMode),
		client:    client,
		bus:       bus,
		idx:       idx,
		log:       logging.WithComponent("store").With().Str("account", cfg.AccountID).Logger(),
		folders:   make(map[string]*Folder),
		statuses:  make(map[string]*SyncStatus),
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.StoreOpened})
	return s, nil
}

// Mode returns the store's current operating mode.
func (s *Store) Mode() mode.Mode { return s.gate.Current() }

// SetMode atomically switches the store's mode (spec §4.1). Switching to
// OFFLINE closes the remote handle if one is connected.
func (s *Store) SetMode(ctx context.Context, m mode.Mode) error {
	if !mode.Valid(m) {
		return errs.New(errs.InvalidState, "Store.SetMode", fmt.Sprintf("unknown mode %q", m))
	}
	s.gate.SetMode(m)
	if m == mode.Offline && s.client != nil {
		if err := s.client.Disconnect(); err != nil {
			s.log.Warn().Err(err).Msg("error disconnecting remote on switch to offline")
		}
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.CacheModeChanged, Item: m})
	return nil
}

// close closes every open folder handle and releases the store's resources.
// Called only by the Registry, which owns the exclusive-access discipline
// around the account map (spec §4.9, §5).
func (s *Store) close() error {
	s.mu.Lock()
	folders := make([]*Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	s.folders = make(map[string]*Folder)
	s.mu.Unlock()

	for _, f := range folders {
		if err := f.Close(context.Background(), false); err != nil {
			s.log.Warn().Err(err).Str("folder", f.Path).Msg("error closing folder during store close")
		}
	}

	var err error
	if s.client != nil {
		err = s.client.Disconnect()
	}
	if s.idx != nil {
		if cerr := s.idx.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.StoreClosed})
	return err
}

func (s *Store) registerFolder(f *Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[f.Path] = f
}

func (s *Store) unregisterFolder(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, path)
}
