package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

var ErrInvalidArchive = errors.New("archive: invalid zine archive")

// maxEntrySize bounds a single decompressed entry when unpacking.
const maxEntrySize = 64 << 20

// ZipPacker stores each zine file as a DEFLATE entry of a zip archive, in order.
type ZipPacker struct{}

func NewZipPacker() *ZipPacker {
	return &ZipPacker{}
}

func (p *ZipPacker) Pack(content domain.ZineContent) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, len(content))
	for _, f := range content {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: empty filename", ErrInvalidArchive)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate filename %q", ErrInvalidArchive, f.Name)
		}
		seen[f.Name] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("archive: create entry %q: %w", f.Name, err)
		}
		if _, err := io.WriteString(w, f.Content); err != nil {
			return nil, fmt.Errorf("archive: write entry %q: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *ZipPacker) Unpack(archive []byte) (domain.ZineContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	out := make(domain.ZineContent, 0, len(zr.File))
	seen := make(map[string]struct{}, len(zr.File))
	for _, zf := range zr.File {
		if zf.Name == "" || zf.FileInfo().IsDir() {
			return nil, fmt.Errorf("%w: unexpected entry %q", ErrInvalidArchive, zf.Name)
		}
		if _, dup := seen[zf.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate filename %q", ErrInvalidArchive, zf.Name)
		}
		seen[zf.Name] = struct{}{}

		content, err := readEntry(zf)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ZineFile{Name: zf.Name, Content: content})
	}
	return out, nil
}

func readEntry(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %q: %w", ErrInvalidArchive, zf.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %q: %w", ErrInvalidArchive, zf.Name, err)
	}
	if len(data) > maxEntrySize {
		return "", fmt.Errorf("%w: entry %q exceeds %d bytes", ErrInvalidArchive, zf.Name, maxEntrySize)
	}
	return string(data), nil
}
