// Package imapmail implements the periodic IMAP mailbox source.
//
// Each check logs in, selects the configured mailbox, runs a UID SEARCH
// with the configured criteria, and fetches matching messages with
// BODY.PEEK so the check itself leaves no trace. Consumption - STORE
// flag commands, COPY to a destination mailbox, EXPUNGE - happens only
// after a candidate's ingestion succeeded, and never under dry run.
package imapmail

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/mimewalk"
)

// BackendTypeID identifies this backend.
const BackendTypeID = "imap"

// Ensure Backend implements the interfaces.
var (
	_ driven.Backend         = (*Backend)(nil)
	_ driven.PeriodicBackend = (*Backend)(nil)
)

// session is the slice of IMAP behaviour the backend needs. The real
// implementation wraps an emersion go-imap client; tests substitute a
// fake.
type session interface {
	Select(mailbox string) error
	SearchUIDs(criteria string) ([]uint32, error)
	FetchMessage(uid uint32) ([]byte, error)
	StoreFlags(uid uint32, flags []string) error
	Copy(uid uint32, mailbox string) error
	Expunge() error
	Logout() error
}

// dialFunc opens an authenticated session for a source.
type dialFunc func(ctx context.Context, source domain.Source) (session, error)

// Backend polls an IMAP mailbox for new messages.
type Backend struct {
	source  domain.Source
	shared  driven.SharedUploadedFileStore
	dial    dialFunc
	limiter *rate.Limiter
}

// New creates an IMAP backend for a source.
func New(source domain.Source, deps driven.BackendDeps) (driven.Backend, error) {
	return &Backend{
		source: source,
		shared: deps.SharedFiles,
		dial:   dialIMAP,
		// One connection per second; mail servers throttle aggressively.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Type returns the backend type identifier.
func (b *Backend) Type() string { return BackendTypeID }

// Setup returns the configuration field schema.
func (b *Backend) Setup() []domain.ConfigKey {
	return ConfigKeys()
}

// ConfigKeys declares the IMAP configuration fields.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: "host", Label: "Host", Description: "Mail server hostname", Required: true},
		{Key: "port", Label: "Port", Description: "Mail server port", Default: "993"},
		{Key: "tls", Label: "Use TLS", Description: "Connect with TLS (true/false)", Default: "true"},
		{Key: "username", Label: "Username", Description: "Mailbox login", Required: true},
		{Key: "password", Label: "Password", Description: "Mailbox password", Required: true, Secret: true},
		{Key: "mailbox", Label: "Mailbox", Description: "Mailbox to select", Default: "INBOX"},
		{Key: "search_criteria", Label: "Search criteria", Description: "IMAP SEARCH criteria tokens", Default: "UNSEEN"},
		{Key: "metadata_attachment", Label: "Metadata attachment", Description: "Attachment name parsed as YAML metadata", Default: "metadata.yaml"},
		{Key: "store_body", Label: "Store message body", Description: "Also ingest the message body (true/false)", Default: "true"},
		{Key: "from_metadata_type", Label: "From metadata type", Description: "Metadata type receiving the From header"},
		{Key: "subject_metadata_type", Label: "Subject metadata type", Description: "Metadata type receiving the Subject header"},
		{Key: "store_commands", Label: "Store flags", Description: "Flags applied after ingestion (e.g. \\Seen \\Deleted)", Default: "\\Seen"},
		{Key: "destination_mailbox", Label: "Destination mailbox", Description: "Copy ingested messages here (optional)"},
		{Key: "expunge", Label: "Expunge", Description: "Expunge after applying flags (true/false)", Default: "false"},
		{Key: "interval", Label: "Check interval", Description: "How often to check, as a Go duration", Default: "10m"},
		{Key: "uncompress", Label: "Expand compressed attachments", Description: "Archive handling: always or never", Default: domain.UncompressNever},
	}
}

// Clean validates backend-specific configuration invariants.
func (b *Backend) Clean(_ context.Context) error {
	if _, err := ParseCriteria(b.source.ConfigValue("search_criteria", "UNSEEN")); err != nil {
		return domain.NewValidationError("search_criteria", err.Error())
	}
	if port := b.source.ConfigValue("port", "993"); port != "" {
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

// Actions returns the declared backend actions.
func (b *Backend) Actions() []domain.Action { return nil }

// ExecuteAction dispatches a declared action by name.
func (b *Backend) ExecuteAction(_ context.Context, _ string, _ domain.ActionArgs) (any, error) {
	return nil, domain.ErrUnknownAction
}

// CheckFiles searches the mailbox and materialises each matching
// message's ingestible parts as shared uploaded files. Messages are
// processed in UID ascending order. A matching message with nothing to
// ingest is consumed here, outside dry runs, so it stops matching the
// search on later checks.
func (b *Backend) CheckFiles(ctx context.Context, dryRun bool) ([]domain.StagedFile, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	s, err := b.dial(ctx, b.source)
	if err != nil {
		return nil, domain.NewSourceError(b.source.ID, "connecting to mail server", err)
	}
	defer s.Logout() //nolint:errcheck // best-effort logout

	if err := s.Select(b.source.ConfigValue("mailbox", "INBOX")); err != nil {
		return nil, domain.NewSourceError(b.source.ID, "selecting mailbox", err)
	}

	uids, err := s.SearchUIDs(b.source.ConfigValue("search_criteria", "UNSEEN"))
	if err != nil {
		return nil, domain.NewSourceError(b.source.ID, "searching mailbox", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	opts := mimewalk.Options{
		MetadataAttachmentName: b.source.ConfigValue("metadata_attachment", "metadata.yaml"),
		StoreBody:              b.source.ConfigValue("store_body", "true") != "false",
	}

	var staged []domain.StagedFile
	for _, uid := range uids {
		raw, err := s.FetchMessage(uid)
		if err != nil {
			return staged, domain.NewSourceError(b.source.ID, fmt.Sprintf("fetching message %d", uid), err)
		}
		msgStaged, err := b.stageMessage(ctx, strconv.FormatUint(uint64(uid), 10), raw, opts)
		if err != nil {
			return staged, err
		}
		if len(msgStaged) == 0 {
			if !dryRun {
				if err := b.consumeWith(s, uid); err != nil {
					return staged, err
				}
			}
			continue
		}
		staged = append(staged, msgStaged...)
	}
	return staged, nil
}

// stageMessage walks one message and persists its parts.
func (b *Backend) stageMessage(ctx context.Context, key string, raw []byte, opts mimewalk.Options) ([]domain.StagedFile, error) {
	result, err := mimewalk.Walk(raw, opts)
	if err != nil {
		// One malformed message does not abort the batch.
		return nil, nil
	}

	metadata := result.Metadata
	if name := b.source.ConfigValue("from_metadata_type", ""); name != "" && result.From != "" {
		metadata = setMetadata(metadata, name, result.From)
	}
	if name := b.source.ConfigValue("subject_metadata_type", ""); name != "" && result.Subject != "" {
		metadata = setMetadata(metadata, name, result.Subject)
	}

	var staged []domain.StagedFile
	for _, file := range result.Files {
		handle, err := b.shared.Create(ctx, file.Filename, bytes.NewReader(file.Content))
		if err != nil {
			return staged, err
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

// Consume applies the configured post-processing commands to the
// candidate's message: STORE flags, COPY, EXPUNGE.
func (b *Backend) Consume(ctx context.Context, staged domain.StagedFile) error {
	uid64, err := strconv.ParseUint(staged.Key, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: bad message key %q", domain.ErrInvalidInput, staged.Key)
	}
	uid := uint32(uid64)

	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	s, err := b.dial(ctx, b.source)
	if err != nil {
		return domain.NewSourceError(b.source.ID, "connecting to mail server", err)
	}
	defer s.Logout() //nolint:errcheck

	if err := s.Select(b.source.ConfigValue("mailbox", "INBOX")); err != nil {
		return domain.NewSourceError(b.source.ID, "selecting mailbox", err)
	}
	return b.consumeWith(s, uid)
}

// consumeWith applies the post-processing commands over an already
// selected session.
func (b *Backend) consumeWith(s session, uid uint32) error {
	if flags := parseFlags(b.source.ConfigValue("store_commands", "\\Seen")); len(flags) > 0 {
		if err := s.StoreFlags(uid, flags); err != nil {
			return domain.NewSourceError(b.source.ID, "storing message flags", err)
		}
	}
	if dest := b.source.ConfigValue("destination_mailbox", ""); dest != "" {
		if err := s.Copy(uid, dest); err != nil {
			return domain.NewSourceError(b.source.ID, "copying message", err)
		}
	}
	if b.source.ConfigBool("expunge") {
		if err := s.Expunge(); err != nil {
			return domain.NewSourceError(b.source.ID, "expunging mailbox", err)
		}
	}
	return nil
}

func parseFlags(value string) []string {
	fields := strings.Fields(value)
	flags := make([]string, 0, len(fields))
	for _, f := range fields {
		flags = append(flags, f)
	}
	return flags
}

func setMetadata(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}
