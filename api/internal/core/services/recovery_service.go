package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zinevault/zinevault/api/internal/core/domain"
	"github.com/zinevault/zinevault/api/internal/core/utils"
)

// RecoveryDeps are the collaborators a RecoveryService is built from.
// Random and Now default to crypto/rand and time.Now.
type RecoveryDeps struct {
	Packer domain.ArchivePacker
	Cipher domain.Cipher
	KDF    domain.BoundedDeriver
	Salter domain.LookupSalter
	Vault  domain.VaultStore
	QR     domain.QRRenderer
	Logger *slog.Logger
	Random io.Reader
	Now    func() time.Time
}

// RecoveryService encrypts zines and issues the recovery secrets bound to their passwords.
type RecoveryService struct {
	packer domain.ArchivePacker
	cipher domain.Cipher
	kdf    domain.BoundedDeriver
	salter domain.LookupSalter
	vault  domain.VaultStore
	qr     domain.QRRenderer
	logger *slog.Logger
	random io.Reader
	now    func() time.Time
}

func NewRecoveryService(deps RecoveryDeps) *RecoveryService {
	s := &RecoveryService{
		packer: deps.Packer,
		cipher: deps.Cipher,
		kdf:    deps.KDF,
		salter: deps.Salter,
		vault:  deps.Vault,
		qr:     deps.QR,
		logger: deps.Logger,
		random: deps.Random,
		now:    deps.Now,
	}
	if s.random == nil {
		s.random = rand.Reader
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ==============================================================================
// Issuance
// ==============================================================================

// Issue packs and encrypts content under password and records a fresh recovery secret for it.
// The secret is only returned once the vault has persisted it. Issuing again with the same
// password replaces the earlier record.
func (s *RecoveryService) Issue(ctx context.Context, content domain.ZineContent, password string) (*domain.IssueResult, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, domain.NewValidationError("password", "must not be empty")
	}

	archive, err := s.packer.Pack(content)
	if err != nil {
		return nil, domain.Internal("pack zine", err)
	}

	encSalt, err := s.randomBytes(domain.SaltSize)
	if err != nil {
		return nil, err
	}
	encKey, err := s.kdf.Derive(ctx, password, encSalt)
	if err != nil {
		return nil, domain.Internal("derive encryption key", err)
	}
	nonce, err := s.randomBytes(domain.NonceSize)
	if err != nil {
		return nil, err
	}
	ciphertext, err := s.cipher.Encrypt(archive, encKey, nonce)
	if err != nil {
		return nil, domain.Internal("encrypt zine", err)
	}

	secret, err := s.randomBytes(domain.RecoverySecretSize)
	if err != nil {
		return nil, err
	}

	lookupSalt := s.salter.Salt(password)
	lookupKey, err := s.kdf.Derive(ctx, password, lookupSalt)
	if err != nil {
		return nil, domain.Internal("derive lookup key", err)
	}

	rec := domain.VaultRecord{
		ID:             uuid.New(),
		Salt:           lookupSalt,
		RecoverySecret: secret,
		CreatedAt:      s.now().UTC(),
	}

	var replaced bool
	err = s.vault.UpdateAtomically(ctx, func(state domain.VaultState) error {
		id := domain.LookupID(lookupKey)
		_, replaced = state[id]
		state[id] = rec
		return nil
	})
	if err != nil {
		return nil, domain.Internal("store recovery record", err)
	}

	s.logger.Info("zine issued",
		slog.String("record_id", rec.ID.String()),
		slog.Int("files", len(content)),
		slog.Int("archive_bytes", len(archive)),
		slog.Bool("replaced", replaced),
	)

	return &domain.IssueResult{
		RecordID:       rec.ID,
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		Salt:           encSalt,
		RecoverySecret: bytes.Clone(secret),
	}, nil
}

// ==============================================================================
// Recovery
// ==============================================================================

// Recover returns the recovery secret issued for password, or domain.ErrNotFound.
func (s *RecoveryService) Recover(ctx context.Context, password string) ([]byte, error) {
	if password == "" {
		return nil, domain.NewValidationError("password", "must not be empty")
	}

	lookupSalt := s.salter.Salt(password)
	lookupKey, err := s.kdf.Derive(ctx, password, lookupSalt)
	if err != nil {
		return nil, domain.Internal("derive lookup key", err)
	}

	rec, err := s.vault.Lookup(ctx, lookupKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Internal("lookup recovery record", err)
	}

	// Issue files every record under the key derived from its own salt, so a record found
	// under lookupKey must carry lookupSalt. Anything else was not written for this password.
	if !utils.ConstantTimeEqual(rec.Salt, lookupSalt) {
		s.logger.Warn("vault record salt mismatch", slog.String("record_id", rec.ID.String()))
		return nil, domain.ErrNotFound
	}

	s.logger.Info("recovery secret released", slog.String("record_id", rec.ID.String()))
	return bytes.Clone(rec.RecoverySecret), nil
}

// RecoverQRCode renders the base64 recovery secret for password as a PNG QR code.
func (s *RecoveryService) RecoverQRCode(ctx context.Context, password string) ([]byte, error) {
	secret, err := s.Recover(ctx, password)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.Encode(base64.StdEncoding.EncodeToString(secret))
	if err != nil {
		return nil, domain.Internal("render qr code", err)
	}
	return png, nil
}

// ==============================================================================
// Opening
// ==============================================================================

// Open decrypts and unpacks a sealed zine. Any tampering, or the wrong password,
// yields domain.ErrAuthentication.
func (s *RecoveryService) Open(ctx context.Context, sealed domain.SealedZine, password string) (domain.ZineContent, error) {
	switch {
	case password == "":
		return nil, domain.NewValidationError("password", "must not be empty")
	case len(sealed.Ciphertext) == 0:
		return nil, domain.NewValidationError("encryptedZine", "must not be empty")
	case len(sealed.Nonce) != domain.NonceSize:
		return nil, domain.NewValidationError("nonce", fmt.Sprintf("must decode to %d bytes", domain.NonceSize))
	case len(sealed.Salt) != domain.SaltSize:
		return nil, domain.NewValidationError("salt", fmt.Sprintf("must decode to %d bytes", domain.SaltSize))
	}

	key, err := s.kdf.Derive(ctx, password, sealed.Salt)
	if err != nil {
		return nil, domain.Internal("derive encryption key", err)
	}

	archive, err := s.cipher.Decrypt(sealed.Ciphertext, key, sealed.Nonce)
	if errors.Is(err, domain.ErrAuthentication) {
		return nil, domain.ErrAuthentication
	}
	if err != nil {
		return nil, domain.Internal("decrypt zine", err)
	}

	content, err := s.packer.Unpack(archive)
	if err != nil {
		return nil, domain.Internal("unpack zine", err)
	}
	return content, nil
}

func (s *RecoveryService) randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return nil, domain.Internal("read random bytes", err)
	}
	return b, nil
}
