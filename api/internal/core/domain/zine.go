package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// MaxFileNameBytes is the longest entry name a zip header can carry.
const MaxFileNameBytes = math.MaxUint16

// ZineFile is one named entry of a zine.
type ZineFile struct {
	Name    string `validate:"required"`
	Content string
}

// ZineContent is an ordered filename -> content mapping.
// On the wire it is a JSON object; key order is preserved and duplicate names are rejected.
type ZineContent []ZineFile

// UnmarshalJSON decodes a JSON object token by token so that key order survives.
func (c *ZineContent) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return NewValidationError("zine_content", "must be an object of filename to content")
	}

	var out ZineContent
	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var content string
		if err := dec.Decode(&content); err != nil {
			return NewValidationError("zine_content", fmt.Sprintf("content of %q must be a string", name))
		}
		if _, dup := seen[name]; dup {
			return NewValidationError("zine_content", fmt.Sprintf("duplicate filename %q", name))
		}
		seen[name] = struct{}{}
		out = append(out, ZineFile{Name: name, Content: content})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}

// MarshalJSON writes the entries as a JSON object in their original order.
func (c ZineContent) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		content, err := json.Marshal(f.Content)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(content)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Validate checks the invariants an issuance needs: at least one entry, and names that are
// non-empty, unique and short enough for the archive format.
func (c ZineContent) Validate() error {
	if len(c) == 0 {
		return NewValidationError("zine_content", "must contain at least one file")
	}
	seen := make(map[string]struct{}, len(c))
	for _, f := range c {
		if f.Name == "" {
			return NewValidationError("zine_content", "filenames must be non-empty")
		}
		if len(f.Name) > MaxFileNameBytes {
			return NewValidationError("zine_content", fmt.Sprintf("filename longer than %d bytes", MaxFileNameBytes))
		}
		if _, dup := seen[f.Name]; dup {
			return NewValidationError("zine_content", fmt.Sprintf("duplicate filename %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// IssueResult is everything an issuance hands back to the caller.
// Salt is the ephemeral salt of the encryption key; without the password it is useless.
type IssueResult struct {
	RecordID       uuid.UUID
	Ciphertext     []byte
	Nonce          []byte
	Salt           []byte
	RecoverySecret []byte
}

// SealedZine is what a caller presents to open a previously issued zine.
type SealedZine struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// ZineService is the use-case surface the HTTP layer depends on.
type ZineService interface {
	Issue(ctx context.Context, content ZineContent, password string) (*IssueResult, error)
	Recover(ctx context.Context, password string) ([]byte, error)
	RecoverQRCode(ctx context.Context, password string) ([]byte, error)
	Open(ctx context.Context, sealed SealedZine, password string) (ZineContent, error)
}
