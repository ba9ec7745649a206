package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinevault/zinevault/api/internal/core/domain"
	"github.com/zinevault/zinevault/api/internal/core/services"
	"github.com/zinevault/zinevault/api/internal/db/filestore"
	"github.com/zinevault/zinevault/api/internal/infrastructure/archive"
	"github.com/zinevault/zinevault/api/internal/infrastructure/crypto"
	"github.com/zinevault/zinevault/api/internal/infrastructure/qrcode"
	"github.com/zinevault/zinevault/api/internal/worker"
)

const testPepper = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

type fixture struct {
	svc   *services.RecoveryService
	vault *filestore.VaultStore
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, mutate ...func(*services.RecoveryDeps)) fixture {
	t.Helper()

	kdf, err := crypto.NewScryptDeriver(1<<10, 8, 1)
	require.NoError(t, err)
	salter, err := crypto.NewHMACLookupSalter(testPepper)
	require.NoError(t, err)
	vault, err := filestore.Open(filepath.Join(t.TempDir(), "zine_passwords.json"), discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vault.Close() })

	deps := services.RecoveryDeps{
		Packer: archive.NewZipPacker(),
		Cipher: crypto.NewSecretboxCipher(),
		KDF:    worker.NewDerivationPool(kdf, 4, discard()),
		Salter: salter,
		Vault:  vault,
		QR:     qrcode.NewRenderer(128),
		Logger: discard(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	return fixture{svc: services.NewRecoveryService(deps), vault: vault}
}

func (f fixture) records(t *testing.T) int {
	t.Helper()
	state, err := f.vault.Load(context.Background())
	require.NoError(t, err)
	return len(state)
}

func zine(pairs ...string) domain.ZineContent {
	var c domain.ZineContent
	for i := 0; i+1 < len(pairs); i += 2 {
		c = append(c, domain.ZineFile{Name: pairs[i], Content: pairs[i+1]})
	}
	return c
}

// ==============================================================================
// 1. Issue -> Recover
// ==============================================================================

func TestRecoveryService_IssueThenRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Issue(ctx, zine("index.html", "<h1>Hi</h1>"), "p1")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Ciphertext)
	assert.Len(t, res.RecoverySecret, domain.RecoverySecretSize)
	assert.Len(t, res.Nonce, domain.NonceSize)
	assert.Len(t, res.Salt, domain.SaltSize)
	assert.Equal(t, 1, f.records(t))

	secret, err := f.svc.Recover(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, res.RecoverySecret, secret)
}

func TestRecoveryService_RecoverUnknownPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, zine("index.html", "x"), "p1")
	require.NoError(t, err)

	_, err = f.svc.Recover(ctx, "wrong-password")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, f.records(t))
}

func TestRecoveryService_ReissueReplacesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, zine("a.txt", "1"), "same")
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, zine("b.txt", "2"), "same")
	require.NoError(t, err)
	assert.NotEqual(t, first.RecoverySecret, second.RecoverySecret)

	secret, err := f.svc.Recover(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, second.RecoverySecret, secret)
	assert.Equal(t, 1, f.records(t))
}

func TestRecoveryService_RecordWithForeignSaltIsNotReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Issue(ctx, zine("a.txt", "1"), "p1")
	require.NoError(t, err)

	// Swap the stored salt while leaving the record under the same lookup key.
	require.NoError(t, f.vault.UpdateAtomically(ctx, func(state domain.VaultState) error {
		require.Len(t, state, 1)
		for id, rec := range state {
			rec.Salt = bytes.Repeat([]byte{0x7f}, domain.SaltSize)
			state[id] = rec
		}
		return nil
	}))

	secret, err := f.svc.Recover(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, secret)
	assert.NotEqual(t, res.RecoverySecret, secret)
}

func TestRecoveryService_LongFileNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := strings.Repeat("chapter-", 64) + ".html"
	res, err := f.svc.Issue(ctx, zine(name, "<p>long</p>"), "p1")
	require.NoError(t, err)

	opened, err := f.svc.Open(ctx, domain.SealedZine{Ciphertext: res.Ciphertext, Nonce: res.Nonce, Salt: res.Salt}, "p1")
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, name, opened[0].Name)
}

// ==============================================================================
// 2. Validation
// ==============================================================================

func TestRecoveryService_ValidationLeavesVaultUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		content  domain.ZineContent
		password string
	}{
		"empty content":   {content: domain.ZineContent{}, password: "p1"},
		"nil content":     {content: nil, password: "p1"},
		"empty password":  {content: zine("a", "b"), password: ""},
		"empty filename":  {content: zine("", "b"), password: "p1"},
		"duplicate names": {content: zine("a", "1", "a", "2"), password: "p1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Issue(ctx, tc.content, tc.password)
			assert.ErrorIs(t, err, domain.ErrValidation)
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
	assert.Equal(t, 0, f.records(t))

	_, err := f.svc.Recover(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ==============================================================================
// 3. Concurrency
// ==============================================================================

func TestRecoveryService_ConcurrentIssueNoLostUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	secrets := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Issue(ctx, zine("page.txt", fmt.Sprint(i)), fmt.Sprintf("password-%d", i))
			if assert.NoError(t, err) {
				secrets[i] = res.RecoverySecret
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, f.records(t))
	for i := 0; i < n; i++ {
		got, err := f.svc.Recover(ctx, fmt.Sprintf("password-%d", i))
		require.NoError(t, err)
		assert.Equal(t, secrets[i], got)
	}
}

// ==============================================================================
// 4. Failure Handling
// ==============================================================================

type brokenVault struct {
	domain.VaultStore
}

func (brokenVault) UpdateAtomically(context.Context, domain.VaultMutation) error {
	return errors.New("disk on fire")
}

func TestRecoveryService_VaultFailureIsInternal(t *testing.T) {
	f := newFixture(t, func(d *services.RecoveryDeps) {
		d.Vault = brokenVault{VaultStore: d.Vault}
	})

	res, err := f.svc.Issue(context.Background(), zine("a", "b"), "p1")
	assert.Nil(t, res, "secret must not be released when it was not persisted")
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrValidation)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRecoveryService_RandomFailureIsInternal(t *testing.T) {
	f := newFixture(t, func(d *services.RecoveryDeps) { d.Random = failingReader{} })

	_, err := f.svc.Issue(context.Background(), zine("a", "b"), "p1")
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Equal(t, 0, f.records(t))
}

func TestRecoveryService_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Issue(ctx, zine("a", "b"), "p1")
	assert.Error(t, err)
	assert.Equal(t, 0, f.records(t))
}

// ==============================================================================
// 5. Opening & QR
// ==============================================================================

func TestRecoveryService_OpenRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := zine("index.html", "<h1>Hi</h1>", "style.css", "h1{}")

	res, err := f.svc.Issue(ctx, content, "p1")
	require.NoError(t, err)

	sealed := domain.SealedZine{Ciphertext: res.Ciphertext, Nonce: res.Nonce, Salt: res.Salt}
	opened, err := f.svc.Open(ctx, sealed, "p1")
	require.NoError(t, err)
	assert.Equal(t, content, opened)

	t.Run("corrupted ciphertext", func(t *testing.T) {
		tampered := bytes.Clone(res.Ciphertext)
		tampered[len(tampered)/2] ^= 0xff
		_, err := f.svc.Open(ctx, domain.SealedZine{Ciphertext: tampered, Nonce: res.Nonce, Salt: res.Salt}, "p1")
		assert.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Open(ctx, sealed, "p2")
		assert.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("malformed nonce", func(t *testing.T) {
		_, err := f.svc.Open(ctx, domain.SealedZine{Ciphertext: res.Ciphertext, Nonce: res.Nonce[:5], Salt: res.Salt}, "p1")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRecoveryService_RecoverQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, zine("a", "b"), "p1")
	require.NoError(t, err)

	data, err := f.svc.RecoverQRCode(ctx, "p1")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = f.svc.RecoverQRCode(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
