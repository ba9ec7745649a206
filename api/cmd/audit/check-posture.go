package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zinevault/zinevault/api/internal/config"
	"github.com/zinevault/zinevault/api/internal/infrastructure/crypto"
)

// Cost floors below which a leaked vault is cheap to brute force.
const (
	minScryptN        = 1 << 15
	minArgonMemoryKiB = 19 * 1024
)

type finding struct {
	pass    bool
	warning bool
	message string
}

func pass(msg string) finding { return finding{pass: true, message: msg} }
func fail(format string, a ...any) finding { return finding{message: fmt.Sprintf(format, a...)} }
func warn(format string, a ...any) finding { return finding{pass: true, warning: true, message: fmt.Sprintf(format, a...)} }

func main() {
	fmt.Println("🔍 zinevault: Running Security Posture Audit...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️  Warning: No .env file found, checking system env vars...")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ FAIL: configuration does not load: %v\n", err)
		printVerdict(os.Stdout, false)
		os.Exit(1)
	}

	if !report(os.Stdout, audit(cfg)) {
		os.Exit(1)
	}
}

func audit(cfg *config.Config) []finding {
	var out []finding

	// --- Audit Point 1: Environment ---
	if cfg.IsDevelopment() {
		out = append(out, fail("ZINEVAULT_ENV is %q; development defaults must never reach deployment", cfg.Environment))
	} else {
		out = append(out, pass("Running in production mode."))
	}

	// --- Audit Point 2: Lookup pepper ---
	if _, err := crypto.NewHMACLookupSalter(cfg.LookupPepperHex); err != nil {
		out = append(out, fail("LOOKUP_PEPPER is unusable: %v", err))
	} else if cfg.LookupPepperHex == config.DevLookupPepper {
		out = append(out, fail("LOOKUP_PEPPER is the development pepper."))
	} else {
		out = append(out, pass("Lookup pepper is at least 256 bits."))
	}

	// --- Audit Point 3: KDF cost ---
	out = append(out, auditKDF(cfg.KDF))

	// --- Audit Point 4: Vault storage ---
	out = append(out, auditVault(cfg))

	// --- Audit Point 5: CORS ---
	if slices.Contains(cfg.AllowedOrigins, "*") {
		out = append(out, fail("CORS_ALLOWED_ORIGINS must not contain a wildcard."))
	} else {
		out = append(out, pass("CORS origins are explicit."))
	}

	return out
}

func auditKDF(k config.KDFConfig) finding {
	params := crypto.KDFParams{
		Algorithm:      k.Algorithm,
		ScryptN:        k.ScryptN,
		ScryptR:        k.ScryptR,
		ScryptP:        k.ScryptP,
		ArgonTime:      k.ArgonTime,
		ArgonMemoryKiB: k.ArgonMemoryKiB,
		ArgonThreads:   k.ArgonThreads,
	}
	if _, err := crypto.NewKeyDeriver(params); err != nil {
		return fail("KDF parameters are invalid: %v", err)
	}

	switch strings.ToLower(k.Algorithm) {
	case crypto.AlgorithmArgon2id:
		if k.ArgonMemoryKiB < minArgonMemoryKiB {
			return fail("KDF_ARGON_MEMORY_KIB=%d is below the %d KiB floor", k.ArgonMemoryKiB, minArgonMemoryKiB)
		}
	default:
		if k.ScryptN < minScryptN {
			return fail("KDF_SCRYPT_N=%d is below the %d floor", k.ScryptN, minScryptN)
		}
	}
	return pass("KDF cost meets the interactive-login floor.")
}

func auditVault(cfg *config.Config) finding {
	if cfg.VaultBackend == config.BackendPostgres {
		if strings.Contains(cfg.DatabaseURL, "dev_password") {
			return fail("DATABASE_URL is using default development credentials.")
		}
		return pass("Database URL does not use default credentials.")
	}

	info, err := os.Stat(cfg.VaultPath)
	if errors.Is(err, fs.ErrNotExist) {
		return warn("Vault file %s does not exist yet; it will be created with mode 0600.", cfg.VaultPath)
	}
	if err != nil {
		return fail("cannot stat vault file %s: %v", cfg.VaultPath, err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fail("vault file %s is mode %#o; group/other must have no access", cfg.VaultPath, perm)
	}
	return pass("Vault file permissions are owner-only.")
}

func report(w io.Writer, findings []finding) bool {
	ok := true
	for _, f := range findings {
		switch {
		case f.warning:
			fmt.Fprintf(w, "⚠️  NOTICE: %s\n", f.message)
		case f.pass:
			fmt.Fprintf(w, "✅ PASS: %s\n", f.message)
		default:
			fmt.Fprintf(w, "❌ FAIL: %s\n", f.message)
			ok = false
		}
	}
	printVerdict(w, ok)
	return ok
}

func printVerdict(w io.Writer, ok bool) {
	fmt.Fprintln(w, "--------------------------------------------------")
	if ok {
		fmt.Fprintln(w, "🚀 VERDICT: SECURITY POSTURE VALIDATED.")
		return
	}
	fmt.Fprintln(w, "🚨 VERDICT: SECURITY POSTURE FAILED.")
	fmt.Fprintln(w, "Fix the errors above before attempting deployment.")
}
