package index

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestPutLookup(t *testing.T) {
	idx := openTest(t)

	if _, found, err := idx.LookupByMessageID("INBOX", "abc"); err != nil || found {
		t.Fatalf("LookupByMessageID() on empty index = (_, %v, %v), want (_, false, nil)", found, err)
	}

	if err := idx.Put("INBOX", "abc", "2026-01-01_00-00_Hello", 42); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	dir, found, err := idx.LookupByMessageID("INBOX", "abc")
	if err != nil || !found {
		t.Fatalf("LookupByMessageID() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if dir != "2026-01-01_00-00_Hello" {
		t.Errorf("LookupByMessageID() dir = %q, want %q", dir, "2026-01-01_00-00_Hello")
	}

	// same (folder, message-id) updates the existing row rather than
	// erroring or creating a duplicate.
	if err := idx.Put("INBOX", "abc", "2026-01-01_00-00_Hello_1", 43); err != nil {
		t.Fatalf("Put() (update) error = %v", err)
	}
	dir, _, _ = idx.LookupByMessageID("INBOX", "abc")
	if dir != "2026-01-01_00-00_Hello_1" {
		t.Errorf("LookupByMessageID() after update = %q, want %q", dir, "2026-01-01_00-00_Hello_1")
	}
}

func TestLookupScopedByFolder(t *testing.T) {
	idx := openTest(t)
	if err := idx.Put("INBOX", "abc", "dir-a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, found, err := idx.LookupByMessageID("Archive", "abc"); err != nil || found {
		t.Fatalf("LookupByMessageID() in a different folder = (_, %v, %v), want (_, false, nil)", found, err)
	}
}

func TestDelete(t *testing.T) {
	idx := openTest(t)
	if err := idx.Put("INBOX", "abc", "dir-a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := idx.Delete("INBOX", "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := idx.LookupByMessageID("INBOX", "abc"); found {
		t.Error("LookupByMessageID() found entry after Delete()")
	}
}

func TestClearFolder(t *testing.T) {
	idx := openTest(t)
	if err := idx.Put("INBOX", "abc", "dir-a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := idx.Put("Archive", "xyz", "dir-b", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := idx.ClearFolder("INBOX"); err != nil {
		t.Fatalf("ClearFolder() error = %v", err)
	}
	if _, found, _ := idx.LookupByMessageID("INBOX", "abc"); found {
		t.Error("LookupByMessageID() found entry for cleared folder")
	}
	if _, found, _ := idx.LookupByMessageID("Archive", "xyz"); !found {
		t.Error("LookupByMessageID() lost entry in untouched folder")
	}
}

func TestCount(t *testing.T) {
	idx := openTest(t)
	if n, err := idx.Count("INBOX"); err != nil || n != 0 {
		t.Fatalf("Count() on empty index = (%d, %v), want (0, nil)", n, err)
	}
	if err := idx.Put("INBOX", "abc", "dir-a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := idx.Put("INBOX", "def", "dir-b", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := idx.Put("Archive", "xyz", "dir-c", 3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n, err := idx.Count("INBOX"); err != nil || n != 2 {
		t.Errorf("Count(INBOX) = (%d, %v), want (2, nil)", n, err)
	}
	if n, err := idx.Count("Archive"); err != nil || n != 1 {
		t.Errorf("Count(Archive) = (%d, %v), want (1, nil)", n, err)
	}
}

func TestRebuildReplacesFolderEntries(t *testing.T) {
	idx := openTest(t)
	if err := idx.Put("INBOX", "stale", "dir-stale", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	err := idx.Rebuild("INBOX", []Entry{
		{MessageID: "fresh-1", DirName: "dir-1", UID: 10},
		{MessageID: "fresh-2", DirName: "dir-2", UID: 11},
	})
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if _, found, _ := idx.LookupByMessageID("INBOX", "stale"); found {
		t.Error("Rebuild() left a stale entry behind")
	}
	if dir, found, _ := idx.LookupByMessageID("INBOX", "fresh-1"); !found || dir != "dir-1" {
		t.Errorf("LookupByMessageID(fresh-1) = (%q, %v), want (dir-1, true)", dir, found)
	}
	if dir, found, _ := idx.LookupByMessageID("INBOX", "fresh-2"); !found || dir != "dir-2" {
		t.Errorf("LookupByMessageID(fresh-2) = (%q, %v), want (dir-2, true)", dir, found)
	}
}
