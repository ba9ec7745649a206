package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

// DerivationPool caps how many password derivations run at once.
// Callers beyond the pool size wait for a slot or for their context to end.
type DerivationPool struct {
	kdf    domain.KeyDeriver
	sem    *semaphore.Weighted
	size   int64
	logger *slog.Logger
}

// NewDerivationPool sizes the pool to workers, or to runtime.NumCPU() when workers <= 0.
func NewDerivationPool(kdf domain.KeyDeriver, workers int, logger *slog.Logger) *DerivationPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &DerivationPool{
		kdf:    kdf,
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   int64(workers),
		logger: logger,
	}
}

func (p *DerivationPool) Size() int {
	return int(p.size)
}

type derivation struct {
	key []byte
	err error
}

// Derive waits for a free slot, then derives the key. If ctx ends first the caller
// gets ctx.Err(); a derivation already running keeps its slot until it completes.
func (p *DerivationPool) Derive(ctx context.Context, password string, salt []byte) ([]byte, error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.logger.Warn("derivation pool saturated", slog.Duration("waited", time.Since(start)))
		return nil, fmt.Errorf("worker: waiting for derivation slot: %w", err)
	}

	done := make(chan derivation, 1)
	go func() {
		defer p.sem.Release(1)
		key, err := p.kdf.Derive(password, salt)
		done <- derivation{key: key, err: err}
	}()

	select {
	case res := <-done:
		return res.key, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("worker: derivation abandoned: %w", ctx.Err())
	}
}
