package store

import (
	"os"
	"path/filepath"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/layout"
)

// Statistics is the result of getStatistics() (spec §4.6): computed by
// walking the tree, O(files).
type Statistics struct {
	TotalBytes   int64
	FolderCount  int
	MessageCount int
}

// ClearFolder implements §4.6 clearCache(folder): delete-gated removal of
// a folder's messages/ subtree (the folder directory itself, and its
// archive/ sibling, are left in place).
func (s *Store) ClearFolder(folder *Folder) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.DeleteAllowed() {
		return errs.New(errs.ModeViolation, "Cache.ClearFolder", "mode forbids cache clear")
	}
	if err := os.RemoveAll(layout.MessagesDir(folder.dir)); err != nil {
		return errs.Wrap(errs.IoFailure, "Cache.ClearFolder", "remove messages directory", err)
	}
	if err := layout.EnsureDir(layout.MessagesDir(folder.dir)); err != nil {
		return errs.Wrap(errs.IoFailure, "Cache.ClearFolder", "recreate messages directory", err)
	}
	if s.idx != nil {
		_ = s.idx.ClearFolder(folder.Path)
	}
	return nil
}

// ClearAll implements §4.6 clearCache(): delete-gated removal of everything
// under the cache root except archive/.
func (s *Store) ClearAll() error {
	m, done := s.gate.Begin()
	defer done()
	if !m.DeleteAllowed() {
		return errs.New(errs.ModeViolation, "Cache.ClearAll", "mode forbids cache clear")
	}

	entries, err := os.ReadDir(s.CacheRoot)
	if err != nil {
		return errs.Wrap(errs.IoFailure, "Cache.ClearAll", "read cache root", err)
	}
	for _, e := range entries {
		if e.Name() == layout.ArchiveDirname {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.CacheRoot, e.Name())); err != nil {
			return errs.Wrap(errs.IoFailure, "Cache.ClearAll", "remove cache entry", err)
		}
	}
	return nil
}

// GetStatistics implements §4.6 getStatistics(): walks the full cache tree.
func (s *Store) GetStatistics() (Statistics, error) {
	var stats Statistics
	folderDirs := make(map[string]bool)

	err := filepath.Walk(s.CacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == layout.MessagesDirname {
				folderDirs[filepath.Dir(path)] = true
			}
			return nil
		}
		stats.TotalBytes += info.Size()
		if filepath.Base(path) == layout.HeadersFilename {
			stats.MessageCount++
		}
		return nil
	})
	if err != nil {
		return Statistics{}, errs.Wrap(errs.IoFailure, "Cache.Statistics", "walk cache tree", err)
	}
	stats.FolderCount = len(folderDirs)
	return stats, nil
}
