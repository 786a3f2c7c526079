// Package mimewalk decomposes a raw email message into a flat list of
// ingestible named files plus a metadata dictionary, independent of
// nesting depth.
//
// The walk is a pure recursive descent: every node returns its own
// (files, metadata) pair and parents fold child results upward. Metadata
// keys merge last-write-wins. A part whose filename matches the
// designated metadata attachment name is parsed as a YAML mapping and
// merged into the metadata dictionary instead of being surfaced as a
// file.
package mimewalk

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// Options controls which parts of a message become files.
type Options struct {
	// MetadataAttachmentName designates the attachment parsed as a
	// YAML metadata mapping rather than ingested.
	MetadataAttachmentName string

	// StoreBody includes non-attachment body parts as
	// email_body.txt / email_body.html files.
	StoreBody bool
}

// NamedFile is one materialised message part.
type NamedFile struct {
	Filename string
	Content  []byte
}

// Result is the outcome of walking one message.
type Result struct {
	// Files are the ingestible parts in message order.
	Files []NamedFile

	// Metadata merges the metadata attachment's key/value pairs,
	// last-write-wins across parts.
	Metadata map[string]string

	// From and Subject are the message-level headers, RFC 2047
	// decoded. Callers apply them as metadata to every document the
	// message produces.
	From    string
	Subject string
}

// Walk parses a raw RFC 5322 message and decomposes its MIME tree.
func Walk(raw []byte, opts Options) (*Result, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing message", domain.ErrInvalidInput)
	}

	files, metadata, err := walkPart(mailHeader{msg.Header}, msg.Body, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Files:    files,
		Metadata: metadata,
		From:     decodeHeader(msg.Header.Get("From")),
		Subject:  decodeHeader(msg.Header.Get("Subject")),
	}, nil
}

// partHeader is the slice of header behaviour the walk needs. Both
// mail.Header and textproto.MIMEHeader provide Get.
type partHeader interface {
	Get(key string) string
}

// mailHeader adapts mail.Header, whose Get canonicalises differently.
type mailHeader struct{ h mail.Header }

func (m mailHeader) Get(key string) string { return m.h.Get(key) }

// walkPart processes one MIME node and returns its files and metadata.
func walkPart(header partHeader, body io.Reader, opts Options) ([]NamedFile, map[string]string, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
		params = nil
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return walkMultipart(body, params["boundary"], opts)
	case mediaType == "message/rfc822":
		return walkEmbedded(header, body, opts)
	default:
		return walkLeaf(header, body, mediaType, params, opts)
	}
}

// walkMultipart recurses into each child part and folds results.
func walkMultipart(body io.Reader, boundary string, opts Options) ([]NamedFile, map[string]string, error) {
	if boundary == "" {
		return nil, nil, nil
	}

	var files []NamedFile
	var metadata map[string]string

	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed trailing part does not discard what was
			// already extracted.
			break
		}

		childFiles, childMeta, walkErr := walkPart(part.Header, part, opts)
		part.Close()
		if walkErr != nil {
			continue
		}
		files = append(files, childFiles...)
		metadata = mergeMetadata(metadata, childMeta)
	}

	return files, metadata, nil
}

// walkEmbedded handles a message/rfc822 part by walking the nested
// message's own tree.
func walkEmbedded(header partHeader, body io.Reader, opts Options) ([]NamedFile, map[string]string, error) {
	decoded, err := decodeContent(header, body)
	if err != nil {
		return nil, nil, nil
	}
	nested, err := mail.ReadMessage(bytes.NewReader(decoded))
	if err != nil {
		return nil, nil, nil
	}
	return walkPart(mailHeader{nested.Header}, nested.Body, opts)
}

// walkLeaf materialises one terminal part.
func walkLeaf(header partHeader, body io.Reader, mediaType string, params map[string]string, opts Options) ([]NamedFile, map[string]string, error) {
	filename := partFilename(header, params)

	content, err := decodeContent(header, body)
	if err != nil {
		return nil, nil, nil
	}

	if filename != "" {
		// Attachment or named inline content.
		if len(content) == 0 {
			return nil, nil, nil
		}
		if opts.MetadataAttachmentName != "" && filename == opts.MetadataAttachmentName {
			meta, parseErr := parseMetadata(content)
			if parseErr != nil {
				return nil, nil, parseErr
			}
			return nil, meta, nil
		}
		return []NamedFile{{Filename: filename, Content: content}}, nil, nil
	}

	// Unnamed body part: ingest only when the source stores bodies.
	if !opts.StoreBody || len(bytes.TrimSpace(content)) == 0 {
		return nil, nil, nil
	}
	name := "email_body.txt"
	if mediaType == "text/html" {
		name = "email_body.html"
	}
	return []NamedFile{{Filename: name, Content: content}}, nil, nil
}

// partFilename resolves a part's filename from its disposition or
// content-type parameters, decoding RFC 2047 words.
func partFilename(header partHeader, typeParams map[string]string) string {
	if disposition := header.Get("Content-Disposition"); disposition != "" {
		if _, dispParams, err := mime.ParseMediaType(disposition); err == nil {
			if name := dispParams["filename"]; name != "" {
				return decodeHeader(name)
			}
		}
	}
	if name := typeParams["name"]; name != "" {
		return decodeHeader(name)
	}
	return ""
}

// decodeContent reads a part's body, undoing its transfer encoding.
func decodeContent(header partHeader, body io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}
	return io.ReadAll(body)
}

// parseMetadata parses a YAML mapping of metadata-type-name -> value.
func parseMetadata(content []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata attachment", domain.ErrInvalidInput)
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return meta, nil
}

// mergeMetadata folds child metadata into the accumulator,
// last-write-wins on key collision.
func mergeMetadata(acc, child map[string]string) map[string]string {
	if len(child) == 0 {
		return acc
	}
	if acc == nil {
		acc = make(map[string]string, len(child))
	}
	for k, v := range child {
		acc[k] = v
	}
	return acc
}

// decodeHeader decodes RFC 2047 encoded words.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
