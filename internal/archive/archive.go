// Package archive detects compressed containers and yields their member
// streams. Only zip-like containers are recognised; anything else is
// treated as an opaque file by the caller.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
)

// ErrNotArchive indicates the bytes are not a recognised container.
var ErrNotArchive = errors.New("not a recognised archive")

// Member is one named entry inside a container. Directories are not
// surfaced as members.
type Member struct {
	// Name is the member's path inside the container, verbatim.
	Name string

	// Size is the uncompressed byte size.
	Size int64

	open func() (io.ReadCloser, error)
}

// Open returns a reader over the member's uncompressed content.
func (m *Member) Open() (io.ReadCloser, error) {
	return m.open()
}

// List opens the bytes as a container and returns its file members, in
// container order. Returns ErrNotArchive when the format is not
// recognised.
func List(content []byte) ([]Member, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, ErrNotArchive
	}

	var members []Member
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		members = append(members, Member{
			Name: file.Name,
			Size: file.FileInfo().Size(),
			open: file.Open,
		})
	}
	return members, nil
}

// IsArchive reports whether the bytes open as a recognised container.
func IsArchive(content []byte) bool {
	_, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	return err == nil
}
