package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hkdb/mailcache/internal/errs"
	"github.com/hkdb/mailcache/internal/events"
	"github.com/hkdb/mailcache/internal/index"
	"github.com/hkdb/mailcache/internal/layout"
	"github.com/hkdb/mailcache/internal/mailmime"
	"github.com/hkdb/mailcache/internal/mode"
	"github.com/hkdb/mailcache/internal/remote"
	"github.com/google/uuid"
)

// Message is one cached email, reconstructed from (or about to be written
// to) its on-disk directory (spec §3).
type Message struct {
	DirName     string
	MessageID   string
	Subject     string
	SentDate    time.Time
	Flags       []remote.Flag
	Headers     []mailmime.HeaderLine
	BodyText    string
	BodyHTML    string
	Attachments []mailmime.Attachment
	Raw         []byte
}

// HasFlag reports whether f is present on the message.
func (m *Message) HasFlag(f remote.Flag) bool {
	for _, existing := range m.Flags {
		if existing == f {
			return true
		}
	}
	return false
}

func headerValue(headers []mailmime.HeaderLine, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// GetMessage implements §4.3 get(folder, key): key is a sanitized
// message-id or a message-directory name. ACCELERATED/ONLINE serve the
// cache and fall back to a remote fetch only on a local miss; REFRESH/
// DESTRUCTIVE always look the message up on the remote first (the
// "read-from-server: yes (always)" row of spec §4.1's table) and cache it
// if it is not cached yet. A copy already in the cache is returned as
// cached; it is not overwritten.
func (s *Store) GetMessage(ctx context.Context, folder *Folder, key string) (*Message, error) {
	m, done := s.gate.Begin()
	defer done()

	if m.ReadsFromServer() {
		remoteKey := key
		if dirName, ok := s.resolveLocal(folder, key); ok {
			if cached, err := s.readMessage(folder, dirName); err == nil && cached.MessageID != "" {
				remoteKey = cached.MessageID
			}
		}
		msg, err := s.fetchAndCache(ctx, folder, remoteKey)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		return nil, errs.New(errs.NotFound, "Message.Get", fmt.Sprintf("message %q not found remotely", key))
	}

	if dirName, ok := s.resolveLocal(folder, key); ok {
		return s.readMessage(folder, dirName)
	}

	if m == mode.Offline || s.client == nil {
		return nil, errs.New(errs.NotCached, "Message.Get", fmt.Sprintf("message %q is not cached", key))
	}

	msg, err := s.fetchAndCache(ctx, folder, key)
	if err != nil {
		return nil, errs.New(errs.NotCached, "Message.Get", fmt.Sprintf("message %q is not cached and remote fetch failed", key))
	}
	if msg == nil {
		return nil, errs.New(errs.NotCached, "Message.Get", fmt.Sprintf("message %q is not cached", key))
	}
	return msg, nil
}

// resolveLocal resolves key (a message-id or a directory name) to an
// existing on-disk directory name, consulting the index first and falling
// back to a direct directory-name match.
func (s *Store) resolveLocal(folder *Folder, key string) (string, bool) {
	sanitizedKey := layout.Sanitize(strings.Trim(key, "<>"))
	if s.idx != nil {
		if dir, found, err := s.idx.LookupByMessageID(folder.Path, sanitizedKey); err == nil && found {
			return dir, true
		}
	}
	if info, err := os.Stat(layout.MessageDir(folder.dir, key)); err == nil && info.IsDir() {
		return key, true
	}
	return "", false
}

// fetchAndCache fetches key from the remote, writing the result to the
// cache, and returns nil (not an error) if the remote does not have a
// matching message.
func (s *Store) fetchAndCache(ctx context.Context, folder *Folder, key string) (*Message, error) {
	if s.client == nil {
		return nil, errs.New(errs.RemoteUnavailable, "Message.Get", "no remote client configured")
	}
	if err := s.client.Open(ctx, folder.Path, false); err != nil {
		return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Get", "select remote mailbox", err)
	}
	metas, err := s.client.Search(ctx, remote.SearchCriteria{HeaderEquals: map[string]string{"Message-Id": key}})
	if err != nil {
		return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Get", "remote search failed", err)
	}
	if len(metas) == 0 {
		return nil, nil
	}
	meta := metas[0]
	if len(meta.Raw) == 0 {
		all, err := s.client.ListMessages(ctx, true)
		if err != nil {
			return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Get", "fetch remote message body", err)
		}
		for _, candidate := range all {
			if candidate.UID == meta.UID {
				meta = candidate
				break
			}
		}
	}
	msg, err := s.materialize(folder, meta, 0)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// SearchMessages implements §4.3 search(folder, criteria): server-search
// modes (ONLINE/REFRESH/DESTRUCTIVE) execute the query remotely and cache
// any returned messages; otherwise the local cache is scanned.
func (s *Store) SearchMessages(ctx context.Context, folder *Folder, criteria remote.SearchCriteria) ([]*Message, error) {
	m, done := s.gate.Begin()
	defer done()
	searchOnServer := m.SearchesOnServer() && s.client != nil

	if searchOnServer {
		if err := s.client.Open(ctx, folder.Path, false); err != nil {
			return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Search", "select remote mailbox", err)
		}
		metas, err := s.client.Search(ctx, criteria)
		if err != nil {
			return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Search", "remote search failed", err)
		}
		out := make([]*Message, 0, len(metas))
		for i, meta := range metas {
			msg, err := s.materialize(folder, meta, i)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		}
		return out, nil
	}
	return s.scanLocal(folder, criteria)
}

func (s *Store) scanLocal(folder *Folder, criteria remote.SearchCriteria) ([]*Message, error) {
	messagesDir := layout.MessagesDir(folder.dir)
	entries, err := os.ReadDir(messagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IoFailure, "Message.Search", "read message directory", err)
	}

	var matches []*Message
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		msg, err := s.readMessage(folder, e.Name())
		if err != nil {
			continue
		}
		if matchesCriteria(msg, criteria) {
			matches = append(matches, msg)
		}
	}
	return matches, nil
}

func matchesCriteria(msg *Message, c remote.SearchCriteria) bool {
	if c.FromContains != "" && !strings.Contains(strings.ToLower(headerValue(msg.Headers, "From")), strings.ToLower(c.FromContains)) {
		return false
	}
	if c.SubjectContains != "" && !strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(c.SubjectContains)) {
		return false
	}
	for name, want := range c.HeaderEquals {
		if !strings.EqualFold(strings.Trim(headerValue(msg.Headers, name), "<>"), strings.Trim(want, "<>")) {
			return false
		}
	}
	if c.SentYear != 0 && msg.SentDate.Year() != c.SentYear {
		return false
	}
	return true
}

// AppendMessages implements §4.3 append(folder, messages): write-gated. Any
// message without a Message-ID is assigned a generated one before any
// server I/O. Appends to remote first if a remote is configured; ACCELERATED
// materializes locally regardless of remote outcome, ONLINE/REFRESH/
// DESTRUCTIVE only on remote success. Messages already present in the
// target folder (by message-id) are skipped.
func (s *Store) AppendMessages(ctx context.Context, folder *Folder, raws [][]byte) ([]*Message, error) {
	m, done := s.gate.Begin()
	defer done()
	if !m.WriteAllowed() {
		return nil, errs.New(errs.ModeViolation, "Message.Append", "mode forbids append")
	}

	var appended []*Message
	now := time.Now()
	for i, raw := range raws {
		parsed := mailmime.Parse(raw)
		if parsed.MessageID == "" {
			parsed.MessageID = strings.Trim(layout.GeneratedMessageID(now.UnixMilli(), i), "<>")
			raw = injectMessageID(raw, parsed.MessageID)
			parsed.Headers = append([]mailmime.HeaderLine{{Name: "Message-Id", Value: "<" + parsed.MessageID + ">"}}, parsed.Headers...)
		}

		if _, already := s.resolveLocal(folder, parsed.MessageID); already {
			continue
		}

		var uid uint32
		remoteErr := error(nil)
		if s.client != nil {
			uid, remoteErr = s.client.AppendMessage(ctx, folder.Path, raw, nil, now)
		}

		if remoteErr != nil {
			if m != mode.Accelerated {
				return nil, errs.Wrap(errs.RemoteUnavailable, "Message.Append", "remote append failed", remoteErr)
			}
			s.log.Warn().Err(remoteErr).Str("folder", folder.Path).Msg("remote append failed under accelerated mode, caching locally anyway")
		}

		sentDate := parseDate(headerValue(parsed.Headers, "Date"))
		subject := parsed.Subject
		written, err := s.writeMessage(folder, parsed, raw, sentDate, subject, uid)
		if err != nil {
			return nil, err
		}
		appended = append(appended, written)
	}

	if len(appended) > 0 {
		s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.FolderUpdated, Item: folder.Path})
	}
	return appended, nil
}

func injectMessageID(raw []byte, id string) []byte {
	line := []byte("Message-Id: <" + id + ">\r\n")
	return append(line, raw...)
}

// SetFlags implements §4.3 setFlags(message, flags, value): write-gated,
// server first, then the local flags file.
func (s *Store) SetFlags(ctx context.Context, folder *Folder, msg *Message, flags []remote.Flag, value bool) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.WriteAllowed() {
		return errs.New(errs.ModeViolation, "Message.SetFlags", "mode forbids flag changes")
	}

	if err := s.remoteSideEffect(ctx, m, "Message.SetFlags", func() error {
		if s.client == nil {
			return nil
		}
		uid, err := s.remoteUID(folder, msg)
		if err != nil || uid == 0 {
			return err
		}
		return s.client.SetFlags(ctx, uid, flags, value)
	}); err != nil {
		return err
	}

	if value {
		for _, f := range flags {
			if !msg.HasFlag(f) {
				msg.Flags = append(msg.Flags, f)
			}
		}
	} else {
		msg.Flags = removeFlags(msg.Flags, flags)
	}
	if err := writeFlags(layout.MessageDir(folder.dir, msg.DirName), msg.Flags); err != nil {
		return errs.Wrap(errs.IoFailure, "Message.SetFlags", "write flags file", err)
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.MessageUpdated, Item: msg.DirName})
	return nil
}

func removeFlags(have, remove []remote.Flag) []remote.Flag {
	out := have[:0:0]
	for _, f := range have {
		drop := false
		for _, r := range remove {
			if f == r {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	return out
}

// DeleteMessage implements §4.3 delete(message): delete-gated archival
// move under archive/, emitting MESSAGE_REMOVED.
func (s *Store) DeleteMessage(ctx context.Context, folder *Folder, msg *Message) error {
	m, done := s.gate.Begin()
	defer done()
	if !m.DeleteAllowed() {
		return errs.New(errs.ModeViolation, "Message.Delete", "mode forbids delete")
	}
	if err := s.archiveMessage(folder, msg); err != nil {
		return err
	}
	if s.client != nil {
		if uid, err := s.remoteUID(folder, msg); err == nil && uid != 0 {
			if err := s.client.DeleteMessage(ctx, uid); err != nil {
				s.log.Warn().Err(err).Msg("remote delete failed after local archival")
			}
		}
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.MessageRemoved, Item: msg.DirName})
	return nil
}

func (s *Store) archiveMessage(folder *Folder, msg *Message) error {
	src := layout.MessageDir(folder.dir, msg.DirName)
	dest := filepath.Join(layout.ArchiveDir(folder.dir), timestampDir(), msg.DirName)
	if err := layout.EnsureDir(filepath.Dir(dest)); err != nil {
		return errs.Wrap(errs.IoFailure, "Message.Delete", "prepare archive directory", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return errs.Wrap(errs.IoFailure, "Message.Delete", "archive message directory", err)
	}
	if s.idx != nil {
		_ = s.idx.Delete(folder.Path, layout.Sanitize(msg.MessageID))
	}
	return nil
}

// MoveMessage implements §4.3 move(message, destinationFolder): write-gated.
// DESTRUCTIVE mode appends to the destination then deletes from the source;
// other modes copy and flag the source copy as deleted rather than
// unlinking it. The mode is read once at entry and released; the append,
// delete and flag steps each take their own snapshot, so a mode switch can
// take effect between them.
func (s *Store) MoveMessage(ctx context.Context, src *Folder, msg *Message, dest *Folder) error {
	m, done := s.gate.Begin()
	allowed := m.WriteAllowed()
	done()
	if !allowed {
		return errs.New(errs.ModeViolation, "Message.Move", "mode forbids move")
	}

	if m == mode.Destructive {
		raw, err := os.ReadFile(filepath.Join(layout.MessageDir(src.dir, msg.DirName), layout.RawFilename))
		if err != nil {
			raw = buildRaw(msg)
		}
		if _, err := s.AppendMessages(ctx, dest, [][]byte{raw}); err != nil {
			return err
		}
		return s.DeleteMessage(ctx, src, msg)
	}

	if s.client != nil {
		if uid, err := s.remoteUID(src, msg); err == nil && uid != 0 {
			if err := s.client.CopyMessage(ctx, uid, dest.Path); err != nil && m != mode.Accelerated {
				return errs.Wrap(errs.RemoteUnavailable, "Message.Move", "remote copy failed", err)
			} else if err != nil {
				s.log.Warn().Err(err).Msg("remote copy failed under accelerated mode, copying locally anyway")
			}
		}
	}

	dir := layout.MessageDir(src.dir, msg.DirName)
	raw, err := os.ReadFile(filepath.Join(dir, layout.RawFilename))
	if err != nil {
		raw = buildRaw(msg)
	}
	copied := *msg
	if _, err := s.writeMessage(dest, &mailmime.Parsed{
		Headers:     copied.Headers,
		MessageID:   copied.MessageID,
		Subject:     copied.Subject,
		BodyText:    copied.BodyText,
		BodyHTML:    copied.BodyHTML,
		Attachments: copied.Attachments,
	}, raw, copied.SentDate, copied.Subject, 0); err != nil {
		return err
	}

	return s.SetFlags(ctx, src, msg, []remote.Flag{remote.FlagDeleted}, true)
}

func (s *Store) remoteUID(folder *Folder, msg *Message) (uint32, error) {
	if s.client == nil {
		return 0, nil
	}
	ctx := context.Background()
	if err := s.client.Open(ctx, folder.Path, false); err != nil {
		return 0, errs.Wrap(errs.RemoteUnavailable, "Message", "select remote mailbox", err)
	}
	metas, err := s.client.Search(ctx, remote.SearchCriteria{HeaderEquals: map[string]string{"Message-Id": msg.MessageID}})
	if err != nil {
		return 0, errs.Wrap(errs.RemoteUnavailable, "Message", "resolve remote uid", err)
	}
	if len(metas) == 0 {
		return 0, nil
	}
	return metas[0].UID, nil
}

// materialize writes one remote.MessageMeta to the cache and returns the
// resulting Message, recording it in the index.
func (s *Store) materialize(folder *Folder, meta remote.MessageMeta, idx int) (*Message, error) {
	messageID := meta.MessageID
	raw := meta.Raw
	var parsed *mailmime.Parsed
	if len(raw) > 0 {
		parsed = mailmime.Parse(raw)
	} else {
		parsed = &mailmime.Parsed{Subject: meta.Subject}
	}
	if messageID == "" {
		messageID = strings.Trim(layout.GeneratedMessageID(time.Now().UnixMilli(), idx), "<>")
	}
	parsed.MessageID = messageID
	if headerValue(parsed.Headers, "Message-Id") == "" {
		parsed.Headers = append([]mailmime.HeaderLine{{Name: "Message-Id", Value: "<" + messageID + ">"}}, parsed.Headers...)
	}
	if existingDir, found := s.resolveLocal(folder, messageID); found {
		return s.readMessage(folder, existingDir)
	}

	written, err := s.writeMessage(folder, parsed, raw, meta.Date, meta.Subject, meta.UID)
	if err != nil {
		return nil, err
	}
	return s.readMessage(folder, written.DirName)
}

// writeMessage materializes a parsed message under folder's messages/
// directory, writes its files atomically, records it in the index, and
// emits MESSAGE_ADDED.
func (s *Store) writeMessage(folder *Folder, parsed *mailmime.Parsed, raw []byte, sentDate time.Time, subject string, uid uint32) (*Message, error) {
	messagesDir := layout.MessagesDir(folder.dir)
	baseName := layout.MessageDirName(sentDate, subject, time.Now)
	dirName, err := layout.UniqueMessageDirName(messagesDir, baseName)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Message.Write", "allocate message directory name", err)
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = uuid.NewString() + "@mailcache.generated"
	}

	msg := &Message{
		DirName:     dirName,
		MessageID:   messageID,
		Subject:     subject,
		SentDate:    sentDate,
		Headers:     parsed.Headers,
		BodyText:    parsed.BodyText,
		BodyHTML:    parsed.BodyHTML,
		Attachments: parsed.Attachments,
		Raw:         raw,
	}

	dir := layout.MessageDir(folder.dir, dirName)
	if err := s.persistMessage(dir, msg); err != nil {
		return nil, err
	}
	if s.idx != nil {
		_ = s.idx.Put(folder.Path, layout.Sanitize(messageID), dirName, uid)
	}
	s.bus.Publish(events.Event{Source: s.AccountID, Kind: events.MessageAdded, Item: dirName})
	return msg, nil
}

func (s *Store) persistMessage(dir string, msg *Message) error {
	if err := layout.WriteFileAtomic(filepath.Join(dir, layout.HeadersFilename), renderHeaders(msg.Headers)); err != nil {
		return errs.Wrap(errs.IoFailure, "Message.Write", "write headers", err)
	}
	if msg.BodyText != "" {
		if err := layout.WriteFileAtomic(filepath.Join(dir, layout.TextBodyFilename), []byte(msg.BodyText)); err != nil {
			return errs.Wrap(errs.IoFailure, "Message.Write", "write text body", err)
		}
	}
	if msg.BodyHTML != "" {
		if err := layout.WriteFileAtomic(filepath.Join(dir, layout.HTMLBodyFilename), []byte(msg.BodyHTML)); err != nil {
			return errs.Wrap(errs.IoFailure, "Message.Write", "write html body", err)
		}
	}
	if err := writeFlags(dir, msg.Flags); err != nil {
		return errs.Wrap(errs.IoFailure, "Message.Write", "write flags", err)
	}
	for _, a := range msg.Attachments {
		name := layout.Sanitize(a.Filename)
		if name == "" {
			name = "attachment"
		}
		path := filepath.Join(layout.AttachmentsDir(dir), name)
		if err := layout.WriteFileAtomic(path, a.Content); err != nil {
			return errs.Wrap(errs.IoFailure, "Message.Write", "write attachment", err)
		}
	}
	if len(msg.Raw) > 0 {
		if err := layout.WriteFileAtomic(filepath.Join(dir, layout.RawFilename), msg.Raw); err != nil {
			return errs.Wrap(errs.IoFailure, "Message.Write", "write raw source", err)
		}
	}
	return nil
}

// readMessage reconstructs a Message from dirName's on-disk files.
func (s *Store) readMessage(folder *Folder, dirName string) (*Message, error) {
	dir := layout.MessageDir(folder.dir, dirName)
	if _, err := os.Stat(dir); err != nil {
		return nil, errs.Wrap(errs.NotFound, "Message.Read", "message directory missing", err)
	}

	headers, err := readHeaders(filepath.Join(dir, layout.HeadersFilename))
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Message.Read", "read headers", err)
	}
	flags, err := readFlags(dir)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Message.Read", "read flags", err)
	}
	bodyText, _ := os.ReadFile(filepath.Join(dir, layout.TextBodyFilename))
	bodyHTML, _ := os.ReadFile(filepath.Join(dir, layout.HTMLBodyFilename))
	raw, _ := os.ReadFile(filepath.Join(dir, layout.RawFilename))
	attachments, err := readAttachments(layout.AttachmentsDir(dir))
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "Message.Read", "read attachments", err)
	}

	return &Message{
		DirName:     dirName,
		MessageID:   strings.Trim(headerValue(headers, "Message-Id"), "<>"),
		Subject:     headerValue(headers, "Subject"),
		SentDate:    parseDate(headerValue(headers, "Date")),
		Flags:       flags,
		Headers:     headers,
		BodyText:    string(bodyText),
		BodyHTML:    string(bodyHTML),
		Attachments: attachments,
		Raw:         raw,
	}, nil
}

// reconcileIndex rebuilds folder's index entries from a tree walk the first
// time its on-disk directory is opened with an empty index, so the index
// self-heals after deletion, corruption, or an out-of-band restore without
// ever being trusted over the filesystem it is derived from (spec §4.5/§8).
func (s *Store) reconcileIndex(folder *Folder) error {
	count, err := s.idx.Count(folder.Path)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	messagesDir := layout.MessagesDir(folder.dir)
	dirEntries, err := os.ReadDir(messagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(dirEntries) == 0 {
		return nil
	}

	entries := make([]index.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		headers, err := readHeaders(filepath.Join(messagesDir, de.Name(), layout.HeadersFilename))
		if err != nil {
			s.log.Warn().Err(err).Str("dir", de.Name()).Msg("skipping unreadable message directory while rebuilding index")
			continue
		}
		messageID := strings.Trim(headerValue(headers, "Message-Id"), "<>")
		if messageID == "" {
			continue
		}
		entries = append(entries, index.Entry{MessageID: layout.Sanitize(messageID), DirName: de.Name()})
	}
	if len(entries) == 0 {
		return nil
	}
	return s.idx.Rebuild(folder.Path, entries)
}

func readAttachments(dir string) ([]mailmime.Attachment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var attachments []mailmime.Attachment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, mailmime.Attachment{Filename: e.Name(), Content: content})
	}
	return attachments, nil
}

func renderHeaders(headers []mailmime.HeaderLine) []byte {
	var buf bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\n", h.Name, h.Value)
	}
	return buf.Bytes()
}

func readHeaders(path string) ([]mailmime.HeaderLine, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var headers []mailmime.HeaderLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		headers = append(headers, mailmime.HeaderLine{Name: line[:idx], Value: line[idx+2:]})
	}
	return headers, scanner.Err()
}

func writeFlags(dir string, flags []remote.Flag) error {
	var buf bytes.Buffer
	for _, f := range flags {
		buf.WriteString(string(f))
		buf.WriteByte('\n')
	}
	return layout.WriteFileAtomic(filepath.Join(dir, layout.FlagsFilename), buf.Bytes())
}

func readFlags(dir string) ([]remote.Flag, error) {
	data, err := os.ReadFile(filepath.Join(dir, layout.FlagsFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var flags []remote.Flag
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			flags = append(flags, remote.Flag(line))
		}
	}
	return flags, nil
}

func buildRaw(msg *Message) []byte {
	var buf bytes.Buffer
	buf.Write(renderHeaders(msg.Headers))
	buf.WriteByte('\n')
	buf.WriteString(msg.BodyText)
	return buf.Bytes()
}

// parseDate parses an RFC 822/1123-ish Date header value, returning the
// zero time on failure so callers fall back to "now" per the Name
// Formatter's rule.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layoutStr := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layoutStr, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
