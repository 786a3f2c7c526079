package imapmail

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// imapSession wraps an emersion go-imap client behind the session
// interface the backend uses.
type imapSession struct {
	c *client.Client
}

// dialIMAP opens an authenticated session for the source.
func dialIMAP(_ context.Context, source domain.Source) (session, error) {
	addr := net.JoinHostPort(
		source.ConfigValue("host", ""),
		source.ConfigValue("port", "993"),
	)

	var c *client.Client
	var err error
	if source.ConfigValue("tls", "true") != "false" {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, err
	}

	if err := c.Login(
		source.ConfigValue("username", ""),
		source.ConfigValue("password", ""),
	); err != nil {
		_ = c.Logout()
		return nil, err
	}
	return &imapSession{c: c}, nil
}

func (s *imapSession) Select(mailbox string) error {
	_, err := s.c.Select(mailbox, false)
	return err
}

func (s *imapSession) SearchUIDs(criteria string) ([]uint32, error) {
	parsed, err := ParseCriteria(criteria)
	if err != nil {
		return nil, err
	}
	return s.c.UidSearch(parsed)
}

func (s *imapSession) FetchMessage(uid uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	// Peek keeps the fetch from setting \Seen; flag changes belong to
	// Consume.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			<-done
			return nil, err
		}
		raw = data
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body", uid)
	}
	return raw, nil
}

func (s *imapSession) StoreFlags(uid uint32, flags []string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	values := make([]interface{}, 0, len(flags))
	for _, f := range flags {
		values = append(values, f)
	}
	return s.c.UidStore(seqset, item, values, nil)
}

func (s *imapSession) Copy(uid uint32, mailbox string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	return s.c.UidCopy(seqset, mailbox)
}

func (s *imapSession) Expunge() error {
	return s.c.Expunge(nil)
}

func (s *imapSession) Logout() error {
	return s.c.Logout()
}
