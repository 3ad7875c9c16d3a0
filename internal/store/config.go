// Package store implements the Folder/Message Cache Store and the
// Synchronizer: the on-disk representation of folders, messages, bodies,
// attachments, and flags, mode-gated per internal/mode, and the process-wide
// Registry that governs the one-open-store-per-account lifecycle.
package store

import "github.com/hkdb/mailcache/internal/mode"

// Config configures one Store open (spec §6, §9's Runtime-by-reference
// redesign note). CompressMessages and MaxCacheSize are carried but inert,
// per spec.md's Open Questions — nothing in this package reads them.
type Config struct {
	AccountID        string
	CacheRoot        string
	InitialMode      mode.Mode
	CompressMessages bool
	MaxCacheSize     int64
}
