package store

import (
	"fmt"
	"sync"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/index"
	"github.com/hkdb/mailcache/internal/logging"
	"github.com/hkdb/mailcache/internal/remote"
	"github.com/rs/zerolog"
)

// Registry is the process-wide directory of open stores, keyed by account
// id (spec §4.9, §9: a single value passed by reference rather than a
// package-level singleton, so tests construct a fresh Registry each time).
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	log    zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store), log: logging.WithComponent("registry")}
}

// Open returns the already-open store for cfg.AccountID if one exists
// (attempting to open an already-open account never creates a second
// connection — spec §4.9), or opens a new one otherwise. client may be nil
// for an account with no configured remote.
func (r *Registry) Open(cfg Config, client remote.Client) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.stores[cfg.AccountID]; ok {
		return existing, nil
	}
	if cfg.AccountID == "" {
		return nil, errs.New(errs.InvalidState, "Registry.Open", "account id must not be empty")
	}

	idx, err := index.Open(cfg.CacheRoot + "/.mailcache-index.db")
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Registry.Open", "open message index", err)
	}

	s, err := open(cfg, client, events.New(), idx)
	if err != nil {
		idx.Close()
		return nil, err
	}
	r.stores[cfg.AccountID] = s
	r.log.Debug().Str("account", cfg.AccountID).Msg("opened store")
	return s, nil
}

// Get returns the open store for accountID, if any.
func (r *Registry) Get(accountID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[accountID]
	return s, ok
}

// Close closes and removes the store for accountID, if open.
func (r *Registry) Close(accountID string) error {
	r.mu.Lock()
	s, ok := r.stores[accountID]
	delete(r.stores, accountID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.close(); err != nil {
		return fmt.Errorf("close store %q: %w", accountID, err)
	}
	return nil
}

// CloseAll closes every open store and clears the registry (spec §4.9).
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	var firstErr error
	for _, s := range stores {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers s to receive every event published on accountID's
// store. Returns false if no such store is open.
func (r *Registry) Subscribe(accountID string, sub events.Subscriber) (unsubscribe func(), ok bool) {
	st, found := r.Get(accountID)
	if !found {
		return nil, false
	}
	return st.bus.Subscribe(sub), true
}
