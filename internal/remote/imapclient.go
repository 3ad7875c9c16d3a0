package remote

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/hkdb/mailcache/internal/logging"
	"github.com/rs/zerolog"
)

// Security is the connection security method, mirroring the teacher's
// ClientConfig.Security.
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// Config holds everything needed to dial and authenticate against an IMAP
// server. It is the shape the Credential source (spec §6) is read into.
type Config struct {
	Host     string
	Port     int
	Security Security
	Username string
	Password string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// PinStatePath, if non-empty, enables trust-on-first-use certificate
	// pinning: the leaf certificate's SHA-256 fingerprint is recorded on
	// first connect and verified on every subsequent one. Pinning applies to
	// SecurityTLS connections only; STARTTLS connections are not pinned.
	PinStatePath string
}

// DefaultConfig returns sensible timeout defaults, matching the teacher's
// DefaultConfig.
func DefaultConfig() Config {
	return Config{
		Port:           993,
		Security:       SecurityTLS,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    3 * time.Minute,
		WriteTimeout:   30 * time.Second,
	}
}

// deadlineConn wraps a net.Conn to set read/write deadlines before each
// operation, since go-imap/v2 does not do this itself.
type deadlineConn struct {
	net.Conn
	readTimeout, writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// IMAPClient is the concrete Client adapter wrapping emersion/go-imap/v2.
type IMAPClient struct {
	config  Config
	client  *imapclient.Client
	current string // currently selected mailbox, "" if none
	log     zerolog.Logger
}

// NewIMAPClient creates an adapter but does not connect.
func NewIMAPClient(config Config) *IMAPClient {
	return &IMAPClient{config: config, log: logging.WithComponent("remote")}
}

func (c *IMAPClient) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	c.log.Debug().Str("addr", addr).Str("security", string(c.config.Security)).Msg("connecting")

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{ServerName: c.config.Host}
	if c.config.Security == SecurityTLS {
		conn = tls.Client(conn, tlsConfig)
	}
	conn = &deadlineConn{Conn: conn, readTimeout: c.config.ReadTimeout, writeTimeout: c.config.WriteTimeout}

	options := &imapclient.Options{}
	cl := imapclient.New(conn, options)

	if c.config.Security == SecurityStartTLS {
		if err := cl.StartTLS(tlsConfig).Wait(); err != nil {
			cl.Close()
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if c.config.Security == SecurityTLS {
		if err := c.verifyPin(conn); err != nil {
			cl.Close()
			return err
		}
	}

	if err := cl.Login(c.config.Username, c.config.Password).Wait(); err != nil {
		cl.Close()
		return fmt.Errorf("login: %w", err)
	}

	c.client = cl
	return nil
}

// verifyPin implements trust-on-first-use certificate pinning: the first
// connection records the leaf certificate's fingerprint at PinStatePath;
// every later connection must match it.
func (c *IMAPClient) verifyPin(conn net.Conn) error {
	if c.config.PinStatePath == "" {
		return nil
	}
	tlsConn, ok := underlyingTLSConn(conn)
	if !ok {
		return nil
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("tls: no peer certificates presented")
	}
	sum := sha256.Sum256(state.PeerCertificates[0].Raw)
	fingerprint := fmt.Sprintf("%x", sum)

	existing, err := os.ReadFile(c.config.PinStatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read pin state: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(c.config.PinStatePath), 0700); err != nil {
			return fmt.Errorf("create pin state dir: %w", err)
		}
		if err := os.WriteFile(c.config.PinStatePath, []byte(fingerprint), 0600); err != nil {
			return fmt.Errorf("write pin state: %w", err)
		}
		c.log.Info().Str("fingerprint", fingerprint).Msg("pinned server certificate on first use")
		return nil
	}
	if strings.TrimSpace(string(existing)) != fingerprint {
		return fmt.Errorf("certificate fingerprint mismatch: expected %s, got %s", strings.TrimSpace(string(existing)), fingerprint)
	}
	return nil
}

// underlyingTLSConn unwraps the deadlineConn to find the *tls.Conn
// beneath it, if any.
func underlyingTLSConn(conn net.Conn) (*tls.Conn, bool) {
	if dc, ok := conn.(*deadlineConn); ok {
		conn = dc.Conn
	}
	tlsConn, ok := conn.(*tls.Conn)
	return tlsConn, ok
}

func (c *IMAPClient) Disconnect() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout().Wait()
	closeErr := c.client.Close()
	c.client = nil
	if err != nil {
		return err
	}
	return closeErr
}

func (c *IMAPClient) ListChildren(ctx context.Context, parent string) ([]MailboxInfo, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	pattern := "%"
	ref := parent
	if parent != "" {
		pattern = parent + "/%"
		ref = ""
	}
	listCmd := c.client.List(ref, pattern, nil)
	var out []MailboxInfo
	for {
		mbox := listCmd.Next()
		if mbox == nil {
			break
		}
		attrs := make([]string, len(mbox.Attrs))
		for i, a := range mbox.Attrs {
			attrs[i] = string(a)
		}
		out = append(out, MailboxInfo{Name: mbox.Mailbox, Delimiter: string(mbox.Delim), Attributes: attrs})
	}
	if err := listCmd.Close(); err != nil {
		return nil, fmt.Errorf("list %q: %w", pattern, err)
	}
	return out, nil
}

func (c *IMAPClient) MailboxExists(ctx context.Context, name string) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("not connected")
	}
	listCmd := c.client.List("", name, nil)
	found := listCmd.Next() != nil
	if err := listCmd.Close(); err != nil {
		return false, fmt.Errorf("list %q: %w", name, err)
	}
	return found, nil
}

func (c *IMAPClient) Open(ctx context.Context, name string, readWrite bool) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	var err error
	if readWrite {
		_, err = c.client.Select(name, nil).Wait()
	} else {
		_, err = c.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait()
	}
	if err != nil {
		return fmt.Errorf("select %q: %w", name, err)
	}
	c.current = name
	return nil
}

func (c *IMAPClient) Close(ctx context.Context, expunge bool) error {
	if c.client == nil {
		return nil
	}
	if expunge {
		if err := c.client.Expunge().Close(); err != nil {
			return fmt.Errorf("expunge: %w", err)
		}
	}
	if err := c.client.Unselect().Wait(); err != nil {
		return fmt.Errorf("unselect: %w", err)
	}
	c.current = ""
	return nil
}

func (c *IMAPClient) CreateMailbox(ctx context.Context, name string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.client.Create(name, nil).Wait(); err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}
	return nil
}

func (c *IMAPClient) RenameMailbox(ctx context.Context, oldName, newName string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.client.Rename(oldName, newName).Wait(); err != nil {
		return fmt.Errorf("rename %q -> %q: %w", oldName, newName, err)
	}
	return nil
}

func (c *IMAPClient) DeleteMailbox(ctx context.Context, name string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.client.Delete(name).Wait(); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return nil
}

func (c *IMAPClient) ListMessages(ctx context.Context, withRaw bool) ([]MessageMeta, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	seqSet := imap.SeqSetNum()
	seqSet.AddRange(1, 0) // 1:* — every message in the selected mailbox

	options := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		Flags:       true,
		RFC822Size:  true,
		BodySection: nil,
	}
	if withRaw {
		options.BodySection = []*imap.FetchItemBodySection{{}}
	}

	fetchCmd := c.client.Fetch(seqSet, options)
	var out []MessageMeta
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		data, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("collect fetch: %w", err)
		}
		out = append(out, metaFromFetch(data, withRaw))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

func metaFromFetch(data *imapclient.FetchMessageData, withRaw bool) MessageMeta {
	meta := MessageMeta{UID: uint32(data.UID), Size: int64(data.RFC822Size)}
	for _, f := range data.Flags {
		meta.Flags = append(meta.Flags, Flag(f))
	}
	if data.Envelope != nil {
		meta.Subject = data.Envelope.Subject
		meta.Date = data.Envelope.Date
		meta.MessageID = strings.Trim(data.Envelope.MessageID, "<>")
	}
	if withRaw {
		for _, body := range data.BodySection {
			meta.Raw = body
			break
		}
	}
	return meta
}

func (c *IMAPClient) Search(ctx context.Context, criteria SearchCriteria) ([]MessageMeta, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	sc := &imap.SearchCriteria{}
	if criteria.FromContains != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: criteria.FromContains})
	}
	if criteria.SubjectContains != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: criteria.SubjectContains})
	}
	for k, v := range criteria.HeaderEquals {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{Key: k, Value: v})
	}
	if criteria.SentYear != 0 {
		since := time.Date(criteria.SentYear, 1, 1, 0, 0, 0, 0, time.UTC)
		before := time.Date(criteria.SentYear+1, 1, 1, 0, 0, 0, 0, time.UTC)
		sc.Since = since
		sc.Before = before
	}

	searchCmd := c.client.UIDSearch(sc, nil)
	data, err := searchCmd.Wait()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}
	fetchCmd := c.client.Fetch(uidSet, &imap.FetchOptions{UID: true, Envelope: true, Flags: true, RFC822Size: true})
	var out []MessageMeta
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		data, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("collect search fetch: %w", err)
		}
		out = append(out, metaFromFetch(data, false))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch search results: %w", err)
	}
	return out, nil
}

func (c *IMAPClient) AppendMessage(ctx context.Context, mailbox string, raw []byte, flags []Flag, date time.Time) (uint32, error) {
	if c.client == nil {
		return 0, fmt.Errorf("not connected")
	}
	imapFlags := make([]imap.Flag, len(flags))
	for i, f := range flags {
		imapFlags[i] = imap.Flag(f)
	}
	options := &imap.AppendOptions{Flags: imapFlags}
	if !date.IsZero() {
		options.Time = date
	}
	appendCmd := c.client.Append(mailbox, int64(len(raw)), options)
	if _, err := appendCmd.Write(raw); err != nil {
		return 0, fmt.Errorf("write append data: %w", err)
	}
	if err := appendCmd.Close(); err != nil {
		return 0, fmt.Errorf("close append: %w", err)
	}
	data, err := appendCmd.Wait()
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	return uint32(data.UID), nil
}

func (c *IMAPClient) SetFlags(ctx context.Context, uid uint32, flags []Flag, add bool) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	imapFlags := make([]imap.Flag, len(flags))
	for i, f := range flags {
		imapFlags[i] = imap.Flag(f)
	}
	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}
	storeCmd := c.client.Store(uidSet, &imap.StoreFlags{Op: op, Flags: imapFlags, Silent: true}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}
	return nil
}

func (c *IMAPClient) CopyMessage(ctx context.Context, uid uint32, destMailbox string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))
	if _, err := c.client.Copy(uidSet, destMailbox).Wait(); err != nil {
		return fmt.Errorf("copy to %q: %w", destMailbox, err)
	}
	return nil
}

func (c *IMAPClient) DeleteMessage(ctx context.Context, uid uint32) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))
	storeCmd := c.client.Store(uidSet, &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: []imap.Flag{imap.FlagDeleted}, Silent: true}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if err := c.client.UIDExpunge(uidSet).Close(); err != nil {
		return fmt.Errorf("uid expunge: %w", err)
	}
	return nil
}

// authMechanism picks a SASL mechanism; kept for adapters that need
// explicit SASL auth rather than plain LOGIN (some providers require it).
func authMechanism(username, password string) sasl.Client {
	return sasl.NewPlainClient("", username, password)
}
