package repomanager

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
)

// BadgerRepositoryManager keeps the catalog in an embedded Badger
// database. An empty dir runs Badger in memory.
type BadgerRepositoryManager struct {
	db *badger.DB
}

func NewBadgerRepositoryManager(dir string, logger logging.Logger) (*BadgerRepositoryManager, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logging.NewBadgerLogger(logger))
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &BadgerRepositoryManager{db: db}, nil
}

func (m *BadgerRepositoryManager) Vehicles() vehicles.Repository {
	return vehicles.NewBadgerRepository(m.db)
}

// RunMigrations is a no-op; documents carry their own shape.
func (m *BadgerRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *BadgerRepositoryManager) Close() error {
	return m.db.Close()
}
