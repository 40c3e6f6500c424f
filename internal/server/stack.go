package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/config"
	"github.com/dmitrijs2005/autolot/internal/server/ingest"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/autolot/internal/server/services"
	"github.com/dmitrijs2005/autolot/internal/server/transcode"
)

var (
	newRepositoryManager = repomanager.New
	newS3Store           = assets.NewS3Store
)

// Stack is the wired catalog core shared by the HTTP server and the admin
// CLI.
type Stack struct {
	Repos    repomanager.RepositoryManager
	Store    assets.Store
	Ingestor *ingest.Ingestor
	Vehicles *services.VehicleService
	Admin    *services.AdminService
}

// NewStack opens the catalog backend and the asset store selected by cfg
// and builds the services on top of them. Migrations are not run here.
// The engine named by cfg.ImageEngine must be registered; the vips engine
// registers itself when its package is imported.
func NewStack(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Stack, error) {
	engine, err := transcode.NewEngine(cfg.ImageEngine)
	if err != nil {
		return nil, err
	}

	store, err := newAssetStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("asset store init error: %w", err)
	}

	repos, err := newRepositoryManager(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("catalog init error: %w", err)
	}

	tr := transcode.New(engine, transcode.Profile{
		MaxWidth:     cfg.OutputMaxWidth,
		Quality:      cfg.OutputQuality,
		SkipMaxBytes: cfg.SkipMaxBytes,
		SkipMaxWidth: cfg.SkipMaxWidth,
	})

	ing := ingest.NewIngestor(tr, store, ingest.Policy{
		MaxFiles:     cfg.MaxFilesPerBatch,
		MaxFileBytes: cfg.MaxFileBytes,
		Concurrency:  cfg.IngestConcurrency,
		NameAttempts: cfg.NameAttempts,
	}, logger)

	vs := services.NewVehicleService(repos.Vehicles(), ing, store, services.VehicleOptions{
		ConflictRetries: cfg.ConflictRetries,
		CacheTTL:        cfg.CatalogCacheTTL,
	}, logger)

	return &Stack{
		Repos:    repos,
		Store:    store,
		Ingestor: ing,
		Vehicles: vs,
		Admin:    services.NewAdminService(cfg, logger),
	}, nil
}

func newAssetStore(ctx context.Context, cfg *config.Config) (assets.Store, error) {
	switch cfg.AssetBackend {
	case config.AssetBackendFS, "":
		fs, err := assets.NewFileStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.AssetBackendS3:
		s3, err := newS3Store(ctx, assets.S3Config{
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3RootUser,
			SecretKey:     cfg.S3RootPassword,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			Bucket:        cfg.S3Bucket,
			KeyPrefix:     cfg.S3KeyPrefix,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}

// Close releases the read cache and the catalog handle.
func (s *Stack) Close() error {
	s.Vehicles.Close()
	return s.Repos.Close()
}
