package orderflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/storage"
)

// Reconciler resolves order intents left pending by a crash between the
// balance debit and the order commit: the debit is credited back and the
// intent marked compensated. The vendor may have accepted the submission
// before the crash; that duplicate risk is accepted.
type Reconciler struct {
	log      *slog.Logger
	storage  storage.Storage
	interval time.Duration
	maxAge   time.Duration
}

type ReconcilerConfig struct {
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewReconciler(store storage.Storage, opts ...ReconcilerOption) *Reconciler {
	cfg := &ReconcilerConfig{
		logger:   slog.New(&slog.JSONHandler{}),
		interval: 1 * time.Minute,
		maxAge:   5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Reconciler{
		log:      cfg.logger.With(slog.String("module", "intent_reconciler")),
		storage:  store,
		interval: cfg.interval,
		maxAge:   cfg.maxAge,
	}
}

type ReconcilerOption func(c *ReconcilerConfig)

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(c *ReconcilerConfig) {
		c.logger = logger
	}
}

func WithReconcileInterval(interval time.Duration) ReconcilerOption {
	return func(c *ReconcilerConfig) {
		c.interval = interval
	}
}

// WithReconcileMaxAge sets how old a pending intent must be before it is
// treated as abandoned. It must comfortably exceed the vendor call timeout.
func WithReconcileMaxAge(maxAge time.Duration) ReconcilerOption {
	return func(c *ReconcilerConfig) {
		c.maxAge = maxAge
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Start intent reconciler")

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Context done, stopping intent reconciler")

			return nil

		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.log.Error("reconciler.Reconcile", slog.Any("error", err))
			}
		}
	}
}

// Reconcile compensates every abandoned pending intent once.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	cutoff := time.Now().Add(-r.maxAge)

	pending, err := r.storage.ListPendingIntents(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("storage.ListPendingIntents: %w", err)
	}

	for _, intent := range pending {
		txn := transactions.NewCredit(intent.UserID, intent.UserPrice,
			"Order refund: placement interrupted")

		// Credit and state flip are one storage operation: a failed pass
		// leaves the intent pending for the next tick, a concurrent
		// compensation makes this one a no-op.
		err := r.storage.CompensateIntent(ctx, intent.ID, intent.UserID, intent.UserPrice, txn)
		if err != nil {
			r.log.Error("storage.CompensateIntent", slog.Any("error", err),
				slog.String("intent_id", intent.ID))

			continue
		}

		r.log.Info("Abandoned intent compensated",
			slog.String("intent_id", intent.ID),
			slog.Int64("user_id", intent.UserID),
			slog.String("amount", intent.UserPrice.String()),
		)
	}

	return nil
}
