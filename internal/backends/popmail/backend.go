// Package popmail ingests documents from a POP3 mailbox. Messages are
// retrieved with RETR during checks and removed with DELE only once
// their ingestion succeeded, so a crashed run leaves the mailbox
// untouched. Messages are identified by their UIDL, which survives
// across sessions; the session-relative message number does not.
package popmail

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/knadh/go-pop3"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/mimewalk"
)

// BackendTypeID identifies the POP3 mailbox backend.
const BackendTypeID = "pop3"

// conn is the slice of the POP3 protocol the backend needs. The
// production implementation wraps *pop3.Conn.
type conn interface {
	Auth(user, password string) error
	Uidl(msgID int) ([]pop3.MessageID, error)
	RetrRaw(msgID int) (*bytes.Buffer, error)
	Dele(msgIDs ...int) error
	Quit() error
}

// dialFunc opens an authenticated POP3 connection for a source.
type dialFunc func(ctx context.Context, source domain.Source) (conn, error)

// Backend polls a POP3 mailbox for new messages.
type Backend struct {
	source  domain.Source
	shared  driven.SharedUploadedFileStore
	dial    dialFunc
	limiter *rate.Limiter
}

// New builds a POP3 backend for the given source.
func New(source domain.Source, deps driven.BackendDeps) (driven.Backend, error) {
	return &Backend{
		source:  source,
		shared:  deps.SharedFiles,
		dial:    dialPOP3,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Type implements driven.Backend.
func (b *Backend) Type() string { return BackendTypeID }

// Setup implements driven.Backend.
func (b *Backend) Setup() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: "host", Label: "Host", Description: "POP3 server hostname", Required: true},
		{Key: "port", Label: "Port", Description: "POP3 server port", Default: "995"},
		{Key: "tls", Label: "TLS", Description: "Connect over TLS (true/false)", Default: "true"},
		{Key: "username", Label: "Username", Description: "Mailbox account", Required: true},
		{Key: "password", Label: "Password", Description: "Mailbox password", Required: true, Secret: true},
		{Key: "metadata_attachment", Label: "Metadata attachment", Description: "Attachment name parsed as YAML metadata", Default: "metadata.yaml"},
		{Key: "store_body", Label: "Store message body", Description: "Also ingest the message body (true/false)", Default: "true"},
		{Key: "from_metadata_type", Label: "From metadata type", Description: "Metadata type receiving the From header"},
		{Key: "subject_metadata_type", Label: "Subject metadata type", Description: "Metadata type receiving the Subject header"},
		{Key: "interval", Label: "Check interval", Description: "Polling interval, e.g. 10m"},
		{Key: "uncompress", Label: "Uncompress", Description: "Archive handling: always or never", Default: domain.UncompressNever},
	}
}

// Clean implements driven.Backend.
func (b *Backend) Clean(_ context.Context) error {
	if port := b.source.ConfigValue("port", ""); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return domain.NewValidationError("port", "must be numeric")
		}
	}
	if interval := b.source.ConfigValue("interval", ""); interval != "" {
		if d, err := time.ParseDuration(interval); err != nil || d <= 0 {
			return domain.NewValidationError("interval", "must be a positive duration")
		}
	}
	return nil
}

// Actions implements driven.Backend.
func (b *Backend) Actions() []domain.Action { return nil }

// ExecuteAction implements driven.Backend.
func (b *Backend) ExecuteAction(_ context.Context, _ string, _ domain.ActionArgs) (any, error) {
	return nil, domain.ErrUnknownAction
}

// CheckFiles implements driven.PeriodicBackend. Retrieval is read-only
// on the mailbox so the same messages are returned until Consume
// deletes them. Staged files are keyed by UIDL. A message yielding
// nothing to ingest is deleted in the same session, outside dry runs,
// so it stops reappearing on later checks.
func (b *Backend) CheckFiles(ctx context.Context, dryRun bool) ([]domain.StagedFile, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c, err := b.dial(ctx, b.source)
	if err != nil {
		return nil, &domain.SourceError{SourceID: b.source.ID, Message: "pop3 connect", Err: err}
	}
	defer c.Quit() //nolint:errcheck // best-effort quit

	msgs, err := c.Uidl(0)
	if err != nil {
		return nil, &domain.SourceError{SourceID: b.source.ID, Message: "pop3 uidl", Err: err}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })

	opts := mimewalk.Options{
		MetadataAttachmentName: b.source.ConfigValue("metadata_attachment", "metadata.yaml"),
		StoreBody:              b.source.ConfigValue("store_body", "true") != "false",
	}

	var staged []domain.StagedFile
	for _, msg := range msgs {
		buf, err := c.RetrRaw(msg.ID)
		if err != nil {
			return nil, &domain.SourceError{SourceID: b.source.ID, Message: fmt.Sprintf("pop3 retr %d", msg.ID), Err: err}
		}
		files, err := b.stageMessage(ctx, msg.UID, buf.Bytes(), opts)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			if !dryRun {
				if err := c.Dele(msg.ID); err != nil {
					return staged, &domain.SourceError{SourceID: b.source.ID, Message: fmt.Sprintf("pop3 dele %d", msg.ID), Err: err}
				}
			}
			continue
		}
		staged = append(staged, files...)
	}
	return staged, nil
}

func (b *Backend) stageMessage(ctx context.Context, key string, raw []byte, opts mimewalk.Options) ([]domain.StagedFile, error) {
	result, err := mimewalk.Walk(raw, opts)
	if err != nil {
		// Undecodable messages are skipped, not fatal: the rest of
		// the mailbox still gets processed.
		return nil, nil
	}

	metadata := result.Metadata
	if name := b.source.ConfigValue("from_metadata_type", ""); name != "" && result.From != "" {
		metadata = setMetadata(metadata, name, result.From)
	}
	if name := b.source.ConfigValue("subject_metadata_type", ""); name != "" && result.Subject != "" {
		metadata = setMetadata(metadata, name, result.Subject)
	}

	staged := make([]domain.StagedFile, 0, len(result.Files))
	for _, file := range result.Files {
		handle, err := b.shared.Create(ctx, file.Filename, bytes.NewReader(file.Content))
		if err != nil {
			return nil, &domain.SourceError{SourceID: b.source.ID, Message: "persist message part", Err: err}
		}
		staged = append(staged, domain.StagedFile{
			Key:          key,
			Filename:     file.Filename,
			Size:         int64(len(file.Content)),
			SharedFileID: handle.ID,
			Metadata:     metadata,
		})
	}
	return staged, nil
}

// Consume implements driven.PeriodicBackend by deleting the message.
// The deletion session is not the check session, so the UIDL key is
// resolved to that session's message number first.
func (b *Backend) Consume(ctx context.Context, staged domain.StagedFile) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	c, err := b.dial(ctx, b.source)
	if err != nil {
		return &domain.SourceError{SourceID: b.source.ID, Message: "pop3 connect", Err: err}
	}
	defer c.Quit() //nolint:errcheck

	msgs, err := c.Uidl(0)
	if err != nil {
		return &domain.SourceError{SourceID: b.source.ID, Message: "pop3 uidl", Err: err}
	}
	for _, msg := range msgs {
		if msg.UID != staged.Key {
			continue
		}
		if err := c.Dele(msg.ID); err != nil {
			return &domain.SourceError{SourceID: b.source.ID, Message: fmt.Sprintf("pop3 dele %d", msg.ID), Err: err}
		}
		return nil
	}
	// The message already left the mailbox, nothing to do.
	return nil
}

func dialPOP3(_ context.Context, source domain.Source) (conn, error) {
	port, err := strconv.Atoi(source.ConfigValue("port", "995"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad port", domain.ErrInvalidInput)
	}
	p := pop3.New(pop3.Opt{
		Host:       source.ConfigValue("host", ""),
		Port:       port,
		TLSEnabled: source.ConfigValue("tls", "true") != "false",
	})
	c, err := p.NewConn()
	if err != nil {
		return nil, err
	}
	if err := c.Auth(source.ConfigValue("username", ""), source.ConfigValue("password", "")); err != nil {
		c.Quit() //nolint:errcheck
		return nil, err
	}
	return c, nil
}

func setMetadata(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}
