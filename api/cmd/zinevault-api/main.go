package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/zinevault/zinevault/api/internal/api/handlers"
	"github.com/zinevault/zinevault/api/internal/api/middleware"
	"github.com/zinevault/zinevault/api/internal/api/router"
	"github.com/zinevault/zinevault/api/internal/config"
	"github.com/zinevault/zinevault/api/internal/core/domain"
	"github.com/zinevault/zinevault/api/internal/core/services"
	"github.com/zinevault/zinevault/api/internal/db/filestore"
	"github.com/zinevault/zinevault/api/internal/db/postgres"
	deliveryhttp "github.com/zinevault/zinevault/api/internal/delivery/http"
	"github.com/zinevault/zinevault/api/internal/infrastructure/archive"
	"github.com/zinevault/zinevault/api/internal/infrastructure/crypto"
	"github.com/zinevault/zinevault/api/internal/infrastructure/qrcode"
	"github.com/zinevault/zinevault/api/internal/worker"
)

func main() {
	// --- 1. Configuration & Logging ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: configuration invalid", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("booting zinevault", "env", cfg.Environment, "vault_backend", cfg.VaultBackend, "trust_forwarded_headers", cfg.TrustForwardedHeaders)

	// --- 2. Cryptography ---
	kdf, err := crypto.NewKeyDeriver(crypto.KDFParams{
		Algorithm:      cfg.KDF.Algorithm,
		ScryptN:        cfg.KDF.ScryptN,
		ScryptR:        cfg.KDF.ScryptR,
		ScryptP:        cfg.KDF.ScryptP,
		ArgonTime:      cfg.KDF.ArgonTime,
		ArgonMemoryKiB: cfg.KDF.ArgonMemoryKiB,
		ArgonThreads:   cfg.KDF.ArgonThreads,
	})
	if err != nil {
		logger.Error("FATAL: KDF misconfigured", "error", err)
		os.Exit(1)
	}

	salter, err := crypto.NewHMACLookupSalter(cfg.LookupPepperHex)
	if err != nil {
		logger.Error("FATAL: lookup pepper rejected", "error", err)
		os.Exit(1)
	}

	pool := worker.NewDerivationPool(kdf, cfg.KDF.Workers, logger)
	logger.Info("derivation pool ready", "algorithm", cfg.KDF.Algorithm, "workers", pool.Size())

	// --- 3. Vault ---
	vault, err := openVault(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("FATAL: vault unavailable", "error", err)
		os.Exit(1)
	}

	// --- 4. Dependency Injection ---
	recoveryService := services.NewRecoveryService(services.RecoveryDeps{
		Packer: archive.NewZipPacker(),
		Cipher: crypto.NewSecretboxCipher(),
		KDF:    pool,
		Salter: salter,
		Vault:  vault,
		QR:     qrcode.NewRenderer(cfg.QRCodeSize),
		Logger: logger,
	})

	limiterCtx, stopLimiters := context.WithCancel(context.Background())
	defer stopLimiters()

	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins:        cfg.AllowedOrigins,
		MaxBodyBytes:          cfg.MaxBodyBytes,
		RequestTimeout:        cfg.RequestTimeout,
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
		ZineHandler:           handlers.NewZineHandler(recoveryService, logger, cfg.IsDevelopment()),
		HealthHandler:         deliveryhttp.NewHealthHandler(vault),
		GlobalLimiter:         middleware.NewRateLimiter(limiterCtx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, logger),
		RecoveryLimiter:       middleware.NewRateLimiter(limiterCtx, middleware.PerMinute(cfg.RecoveryPerMinute), cfg.RecoveryBurst, logger),
		Logger:                logger,
	})

	// --- 5. HTTP Server ---
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	// --- 6. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("zinevault API listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down")
	stopLimiters()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	// In-flight writes have drained; only now is it safe to release the vault.
	if err := vault.Close(); err != nil {
		logger.Error("vault close failed", "error", err)
	}
	logger.Info("zinevault stopped")
}

func openVault(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.VaultStore, error) {
	switch cfg.VaultBackend {
	case config.BackendPostgres:
		dbPool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo, err := postgres.NewVaultRepository(ctx, dbPool, logger)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		return repo, nil
	case config.BackendFile:
		store, err := filestore.Open(cfg.VaultPath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vault backend %q", cfg.VaultBackend)
	}
}
