package repository

import (
	"context"
	"time"

	"github.com/sudo-init-do/binaryhub/internal/logger"
	"github.com/sudo-init-do/binaryhub/internal/metrics"
	"github.com/sudo-init-do/binaryhub/internal/models"
)

// Retrying re-runs a whole transaction when it fails with models.ErrTransient
// (lock timeout, deadlock, serialization failure). Any other error is returned
// immediately.
type Retrying struct {
	store       models.Store
	maxAttempts int
	baseDelay   time.Duration
	logger      *logger.Logger
}

func NewRetrying(store models.Store, maxAttempts int, baseDelay time.Duration, log *logger.Logger) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Retrying{store: store, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: log}
}

func (r *Retrying) WithTx(ctx context.Context, fn func(tx models.Tx) error) error {
	delay := r.baseDelay
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.store.WithTx(ctx, fn)
		if err == nil || !models.IsRetryable(err) || attempt == r.maxAttempts {
			return err
		}
		metrics.TxRetries.Inc()
		r.logger.Warn("retrying transaction", "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
