package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed filenames inside a message directory, per spec §4.5.
const (
	HeadersFilename    = "headers.properties"
	TextBodyFilename   = "content.txt"
	HTMLBodyFilename   = "content.html"
	FlagsFilename      = "flags.properties"
	AttachmentsDirname = "attachments"
	RawFilename        = "raw.eml"

	MessagesDirname = "messages"
	ArchiveDirname  = "archive"
)

// FolderDir returns the on-disk directory for a folder identified by its
// forward-slash-delimited path, rooted at cacheRoot. An empty folderPath
// returns cacheRoot itself, representing the top of the hierarchy (the
// level at which top-level folders, and their archival siblings, live).
func FolderDir(cacheRoot, folderPath string) string {
	if folderPath == "" {
		return cacheRoot
	}
	parts := strings.Split(folderPath, "/")
	return filepath.Join(append([]string{cacheRoot}, parts...)...)
}

// MessagesDir returns the messages/ subtree of a folder directory.
func MessagesDir(folderDir string) string {
	return filepath.Join(folderDir, MessagesDirname)
}

// ArchiveDir returns the archive/ subtree sibling to messages/ within a
// folder directory (or cacheRoot, for top-level folder archival).
func ArchiveDir(folderDir string) string {
	return filepath.Join(folderDir, ArchiveDirname)
}

// MessageDir returns the directory for one message within a folder's
// messages/ subtree.
func MessageDir(folderDir, dirName string) string {
	return filepath.Join(MessagesDir(folderDir), dirName)
}

// AttachmentsDir returns the attachments/ subdirectory of a message
// directory.
func AttachmentsDir(messageDir string) string {
	return filepath.Join(messageDir, AttachmentsDirname)
}

// UniqueMessageDirName appends "_<counter>" to dirName until the result does
// not already exist under messagesDir, per spec §4.5's collision rule.
func UniqueMessageDirName(messagesDir, dirName string) (string, error) {
	candidate := dirName
	for counter := 1; ; counter++ {
		path := filepath.Join(messagesDir, candidate)
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d", dirName, counter)
	}
}

// EnsureDir creates dir (and parents) if it does not already exist, with
// owner-only permissions since cached mail is sensitive.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}

// WriteFileAtomic writes data to path by writing to a temporary sibling
// file and renaming it into place, so concurrent readers never observe a
// torn write (spec §5).
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
