// Package catalog mirrors the vendor service list into the local store.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/smmstore/internal/domain/services"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/vendor"
)

type Syncer struct {
	log     *slog.Logger
	storage storage.Storage
	vendor  *vendor.Client
}

func NewSyncer(store storage.Storage, vendorClient *vendor.Client, opts ...Option) *Syncer {
	s := &Syncer{
		log:     slog.New(&slog.JSONHandler{}),
		storage: store,
		vendor:  vendorClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Syncer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.log = logger.With(slog.String("module", "catalog"))
	}
}

// EnsureCatalog returns the local catalog, pulling it from the vendor first
// when the local copy is empty.
func (s *Syncer) EnsureCatalog(ctx context.Context) ([]*services.Service, error) {
	list, err := s.storage.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.ListServices: %w", err)
	}

	if len(list) > 0 {
		return list, nil
	}

	if err := s.Sync(ctx); err != nil {
		return nil, err
	}

	list, err = s.storage.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.ListServices: %w", err)
	}

	return list, nil
}

// Sync pulls the full vendor catalog and upserts every entry.
func (s *Syncer) Sync(ctx context.Context) error {
	entries, err := s.vendor.Services(ctx)
	if err != nil {
		return fmt.Errorf("vendor.Services: %w", err)
	}

	svcs := make([]*services.Service, 0, len(entries))

	for _, entry := range entries {
		svc, err := services.NewService(
			entry.ServiceID(), entry.Name, entry.Type, entry.Category,
			entry.Rate, entry.MinQuantity(), entry.MaxQuantity(), entry.Refill,
		)
		if err != nil {
			// A malformed vendor row must not poison the whole sync.
			s.log.Warn("Skipping invalid vendor catalog entry",
				slog.Int64("vendor_service_id", entry.ServiceID()),
				slog.Any("error", err),
			)

			continue
		}

		svcs = append(svcs, svc)
	}

	if err := s.storage.SaveServices(ctx, svcs); err != nil {
		return fmt.Errorf("storage.SaveServices: %w", err)
	}

	s.log.Info("Catalog synced from vendor", slog.Int("services", len(svcs)))

	return nil
}
