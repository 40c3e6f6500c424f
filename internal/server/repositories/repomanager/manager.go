// Package repomanager opens the configured catalog backend and vends its
// repositories.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/config"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
)

// RepositoryManager owns the catalog storage handle.
type RepositoryManager interface {
	// RunMigrations brings the schema up to date. Backends without a
	// schema treat it as a no-op.
	RunMigrations(ctx context.Context) error
	Vehicles() vehicles.Repository
	Close() error
}

// New opens the backend selected by cfg.CatalogBackend.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (RepositoryManager, error) {
	switch cfg.CatalogBackend {
	case config.CatalogBackendPostgres, "":
		m, err := NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.CatalogBackendBadger:
		m, err := NewBadgerRepositoryManager(cfg.BadgerDir, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}
