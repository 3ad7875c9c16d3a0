package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFolderDir(t *testing.T) {
	if got, want := FolderDir("/root", ""), "/root"; got != want {
		t.Errorf("FolderDir(root, \"\") = %q, want %q", got, want)
	}
	if got, want := FolderDir("/root", "INBOX/Sub"), filepath.Join("/root", "INBOX", "Sub"); got != want {
		t.Errorf("FolderDir(root, INBOX/Sub) = %q, want %q", got, want)
	}
}

func TestUniqueMessageDirName(t *testing.T) {
	dir := t.TempDir()
	messagesDir := filepath.Join(dir, MessagesDirname)
	if err := EnsureDir(messagesDir); err != nil {
		t.Fatal(err)
	}

	first, err := UniqueMessageDirName(messagesDir, "2026-01-01_00-00_Hello")
	if err != nil {
		t.Fatal(err)
	}
	if first != "2026-01-01_00-00_Hello" {
		t.Errorf("first allocation = %q, want base name unchanged", first)
	}

	if err := EnsureDir(filepath.Join(messagesDir, first)); err != nil {
		t.Fatal(err)
	}

	second, err := UniqueMessageDirName(messagesDir, "2026-01-01_00-00_Hello")
	if err != nil {
		t.Fatal(err)
	}
	if second != "2026-01-01_00-00_Hello_1" {
		t.Errorf("second allocation = %q, want collision-suffixed name", second)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.txt")

	if err := WriteFileAtomic(path, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" || e.Name()[0] == '.' {
			t.Errorf("leftover temp file found: %s", e.Name())
		}
	}
}

func TestArchiveDirIsSiblingOfMessages(t *testing.T) {
	folderDir := "/root/INBOX"
	if got, want := ArchiveDir(folderDir), filepath.Join(folderDir, "archive"); got != want {
		t.Errorf("ArchiveDir() = %q, want %q", got, want)
	}
	if got, want := MessagesDir(folderDir), filepath.Join(folderDir, "messages"); got != want {
		t.Errorf("MessagesDir() = %q, want %q", got, want)
	}
}
