package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hkdb/mailcache/internal/mailmime"
	"github.com/hkdb/mailcache/internal/remote"
)

// fakeClient is an in-memory stand-in for remote.Client, letting store tests
// exercise server-first/fallback semantics without a real IMAP server.
type fakeClient struct {
	mu         sync.Mutex
	mailboxes  map[string][]remote.MessageMeta
	selected   string
	nextUID    uint32
	connected  bool
	disconnect bool

	openErr      error
	appendErr    error
	searchErr    error
	copyErr      error
	deleteErr    error
	createErr    error
	renameErr    error
	deleteMbxErr error

	// searchOmitsRaw mirrors the real IMAPClient.Search, whose FetchOptions
	// never include a BodySection: search results carry envelope metadata
	// only, never the raw RFC822 source.
	searchOmitsRaw bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{mailboxes: map[string][]remote.MessageMeta{"INBOX": {}}}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.connected = true
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.disconnect = true
	return nil
}

func (c *fakeClient) ListChildren(ctx context.Context, parent string) ([]remote.MailboxInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []remote.MailboxInfo
	for name := range c.mailboxes {
		out = append(out, remote.MailboxInfo{Name: name})
	}
	return out, nil
}

func (c *fakeClient) MailboxExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.mailboxes[name]
	return ok, nil
}

func (c *fakeClient) Open(ctx context.Context, name string, readWrite bool) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mailboxes[name]; !ok {
		c.mailboxes[name] = []remote.MessageMeta{}
	}
	c.selected = name
	return nil
}

func (c *fakeClient) Close(ctx context.Context, expunge bool) error {
	return nil
}

func (c *fakeClient) CreateMailbox(ctx context.Context, name string) error {
	if c.createErr != nil {
		return c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailboxes[name] = []remote.MessageMeta{}
	return nil
}

func (c *fakeClient) RenameMailbox(ctx context.Context, oldName, newName string) error {
	if c.renameErr != nil {
		return c.renameErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailboxes[newName] = c.mailboxes[oldName]
	delete(c.mailboxes, oldName)
	return nil
}

func (c *fakeClient) DeleteMailbox(ctx context.Context, name string) error {
	if c.deleteMbxErr != nil {
		return c.deleteMbxErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mailboxes, name)
	return nil
}

func (c *fakeClient) ListMessages(ctx context.Context, withRaw bool) ([]remote.MessageMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metas := append([]remote.MessageMeta(nil), c.mailboxes[c.selected]...)
	if !withRaw {
		for i := range metas {
			metas[i].Raw = nil
		}
	}
	return metas, nil
}

func (c *fakeClient) Search(ctx context.Context, criteria remote.SearchCriteria) ([]remote.MessageMeta, error) {
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []remote.MessageMeta
	for _, meta := range c.mailboxes[c.selected] {
		if want, ok := criteria.HeaderEquals["Message-Id"]; ok {
			if strings.Trim(meta.MessageID, "<>") != strings.Trim(want, "<>") {
				continue
			}
		}
		if criteria.FromContains != "" && !strings.Contains(strings.ToLower(fromHeaderOf(meta)), strings.ToLower(criteria.FromContains)) {
			continue
		}
		if criteria.SubjectContains != "" && !strings.Contains(strings.ToLower(meta.Subject), strings.ToLower(criteria.SubjectContains)) {
			continue
		}
		if criteria.SentYear != 0 && meta.Date.Year() != criteria.SentYear {
			continue
		}
		if c.searchOmitsRaw {
			meta.Raw = nil
		}
		out = append(out, meta)
	}
	return out, nil
}

func fromHeaderOf(meta remote.MessageMeta) string {
	if len(meta.Raw) == 0 {
		return ""
	}
	p := mailmime.Parse(meta.Raw)
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, "From") {
			return h.Value
		}
	}
	return ""
}

func (c *fakeClient) AppendMessage(ctx context.Context, mailbox string, raw []byte, flags []remote.Flag, date time.Time) (uint32, error) {
	if c.appendErr != nil {
		return 0, c.appendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextUID++
	uid := c.nextUID
	parsed := mailmime.Parse(raw)
	meta := remote.MessageMeta{
		UID:       uid,
		MessageID: parsed.MessageID,
		Subject:   parsed.Subject,
		Date:      date,
		Size:      int64(len(raw)),
		Flags:     flags,
		Raw:       raw,
	}
	c.mailboxes[mailbox] = append(c.mailboxes[mailbox], meta)
	return uid, nil
}

func (c *fakeClient) SetFlags(ctx context.Context, uid uint32, flags []remote.Flag, add bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.mailboxes[c.selected]
	for i, m := range msgs {
		if m.UID != uid {
			continue
		}
		if add {
			msgs[i].Flags = append(msgs[i].Flags, flags...)
		}
		c.mailboxes[c.selected] = msgs
		return nil
	}
	return nil
}

func (c *fakeClient) CopyMessage(ctx context.Context, uid uint32, destMailbox string) error {
	if c.copyErr != nil {
		return c.copyErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.mailboxes[c.selected] {
		if m.UID == uid {
			c.mailboxes[destMailbox] = append(c.mailboxes[destMailbox], m)
			return nil
		}
	}
	return nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, uid uint32) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.mailboxes[c.selected]
	for i, m := range msgs {
		if m.UID == uid {
			c.mailboxes[c.selected] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

var _ remote.Client = (*fakeClient)(nil)
