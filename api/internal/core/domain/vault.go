package domain

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// VaultRecord binds a password-derived lookup key to an issued recovery secret.
// Salt is the salt the lookup key was derived with.
type VaultRecord struct {
	ID             uuid.UUID `json:"id,omitzero"`
	Salt           []byte    `json:"salt"`
	RecoverySecret []byte    `json:"totp"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// VaultState maps base64(lookup key) to its record.
type VaultState map[string]VaultRecord

// LookupID encodes a raw lookup key into its VaultState key.
func LookupID(lookupKey []byte) string {
	return base64.StdEncoding.EncodeToString(lookupKey)
}

// Clone returns a deep copy so mutations never leak into a published snapshot.
func (s VaultState) Clone() VaultState {
	out := make(VaultState, len(s))
	for k, rec := range s {
		out[k] = rec.clone()
	}
	return out
}

func (r VaultRecord) clone() VaultRecord {
	r.Salt = bytes.Clone(r.Salt)
	r.RecoverySecret = bytes.Clone(r.RecoverySecret)
	return r
}

// Equal reports whether two records carry the same data.
func (r VaultRecord) Equal(o VaultRecord) bool {
	return r.ID == o.ID &&
		bytes.Equal(r.Salt, o.Salt) &&
		bytes.Equal(r.RecoverySecret, o.RecoverySecret) &&
		r.CreatedAt.Equal(o.CreatedAt)
}

// VaultMutation edits a private copy of the state. Returning an error aborts the update.
type VaultMutation func(state VaultState) error

// VaultStore is the persistent password -> recovery secret vault.
type VaultStore interface {
	// Load returns a snapshot copy of the entire state.
	Load(ctx context.Context) (VaultState, error)

	// UpdateAtomically serializes a read-modify-write against all other writers.
	// If fn or persistence fails, neither the persisted nor the in-memory state changes.
	UpdateAtomically(ctx context.Context, fn VaultMutation) error

	// Lookup reads one record from a consistent snapshot. Missing keys return ErrNotFound.
	Lookup(ctx context.Context, lookupKey []byte) (VaultRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
