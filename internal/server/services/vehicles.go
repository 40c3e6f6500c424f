// Package services holds the catalog business logic: the lifecycle of
// vehicle listings and their images, and admin authentication.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/imageset"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
)

// Ingester is the image pipeline as seen by the lifecycle.
// *ingest.Ingestor implements it.
type Ingester interface {
	Validate(uploads []models.RawUpload) error
	Ingest(ctx context.Context, uploads []models.RawUpload) ([]string, error)
	Discard(ctx context.Context, refs []string)
}

// CreateVehicleRequest carries a new listing and its images.
type CreateVehicleRequest struct {
	Fields  VehicleFields
	Uploads []models.RawUpload
}

// EditVehicleRequest changes a listing.
//
// HasOrder reports whether the client sent an image order at all; an
// empty ImageOrder with HasOrder set keeps the current order. A positive
// ExpectedVersion pins the edit to that version: a mismatch fails with
// common.ErrVersionConflict instead of being retried.
type EditVehicleRequest struct {
	ID              string
	Patch           models.VehiclePatch
	ImageOrder      []string
	HasOrder        bool
	Uploads         []models.RawUpload
	ExpectedVersion int64
}

// Result is a persisted listing together with the image counts of the
// request, so callers can tell how many submitted images were dropped.
type Result struct {
	Vehicle   *models.Vehicle
	Submitted int
	Stored    int
}

// VehicleOptions tunes VehicleService.
type VehicleOptions struct {
	ConflictRetries int
	CacheTTL        time.Duration
	CacheCapacity   uint64
}

// VehicleService manages listings and keeps the asset store consistent
// with the image references they hold.
type VehicleService struct {
	repo     vehicles.Repository
	ingester Ingester
	store    assets.Store
	logger   logging.Logger
	retries  int
	cache    *ttlcache.Cache[string, *models.Vehicle]
	now      func() time.Time
	newID    func() string
}

func NewVehicleService(repo vehicles.Repository, ing Ingester, store assets.Store, opts VehicleOptions, logger logging.Logger) *VehicleService {
	s := &VehicleService{
		repo:     repo,
		ingester: ing,
		store:    store,
		logger:   logger.With("component", "vehicles"),
		retries:  max(opts.ConflictRetries, 0),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	if opts.CacheTTL > 0 {
		capacity := opts.CacheCapacity
		if capacity == 0 {
			capacity = 1024
		}
		s.cache = ttlcache.New[string, *models.Vehicle](
			ttlcache.WithTTL[string, *models.Vehicle](opts.CacheTTL),
			ttlcache.WithCapacity[string, *models.Vehicle](capacity),
			ttlcache.WithDisableTouchOnHit[string, *models.Vehicle](),
		)
		go s.cache.Start()
	}

	return s
}

// Close stops the read cache's expiry loop.
func (s *VehicleService) Close() {
	if s.cache != nil {
		s.cache.Stop()
	}
}

// Create validates the request, ingests its images and persists the new
// listing. If persisting fails, the ingested assets are removed.
func (s *VehicleService) Create(ctx context.Context, req CreateVehicleRequest) (*Result, error) {
	now := s.now().UTC()

	v := &models.Vehicle{}
	req.Fields.apply(v)
	if err := validateVehicle(v, now); err != nil {
		return nil, err
	}
	if err := s.ingester.Validate(req.Uploads); err != nil {
		return nil, err
	}

	refs, err := s.ingester.Ingest(ctx, req.Uploads)
	if err != nil {
		return nil, err
	}

	v.ID = s.newID()
	v.Images = refs
	v.CreatedAt = now
	v.UpdatedAt = now

	if err := s.repo.Create(ctx, v); err != nil {
		s.ingester.Discard(context.WithoutCancel(ctx), refs)
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	s.logger.Info(ctx, "vehicle created", "id", v.ID, "submitted", len(req.Uploads), "stored", len(refs))
	return &Result{Vehicle: v.Clone(), Submitted: len(req.Uploads), Stored: len(refs)}, nil
}

// Edit applies the patch, reorders the existing images and appends newly
// ingested ones. Concurrent edits of the same listing are detected by
// version; unpinned edits are re-applied on the fresh state up to the
// configured number of retries. Assets ingested by a failed edit are
// removed.
func (s *VehicleService) Edit(ctx context.Context, req EditVehicleRequest) (*Result, error) {
	if err := validatePatch(req.Patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.ingester.Validate(req.Uploads); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.ExpectedVersion > 0 && current.Version != req.ExpectedVersion {
		return nil, fmt.Errorf("%w: listing is at version %d", common.ErrVersionConflict, current.Version)
	}

	appended, err := s.ingester.Ingest(ctx, req.Uploads)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		next := current.Clone()
		req.Patch.Apply(next)

		var order []string
		if req.HasOrder {
			order = req.ImageOrder
		}
		next.Images = imageset.Reconcile(current.Images, order, appended)
		next.UpdatedAt = s.now().UTC()

		err = s.repo.Update(ctx, next)
		if err == nil {
			s.invalidate(req.ID)
			s.logger.Info(ctx, "vehicle edited", "id", req.ID, "version", next.Version,
				"images", len(next.Images), "submitted", len(req.Uploads), "stored", len(appended))
			return &Result{Vehicle: next.Clone(), Submitted: len(req.Uploads), Stored: len(appended)}, nil
		}

		retry := errors.Is(err, common.ErrVersionConflict) && req.ExpectedVersion == 0 && attempt < s.retries
		if !retry {
			break
		}

		s.logger.Debug(ctx, "concurrent edit, retrying", "id", req.ID, "attempt", attempt+1)
		current, err = s.repo.Get(ctx, req.ID)
		if err != nil {
			break
		}
	}

	s.invalidate(req.ID)
	s.ingester.Discard(context.WithoutCancel(ctx), appended)
	return nil, err
}

// Delete removes every stored asset of the listing, then the listing.
// Asset removal is best-effort: failures are logged and skipped.
func (s *VehicleService) Delete(ctx context.Context, id string) error {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, ref := range v.Images {
		name, ok := s.store.NameFromReference(ref)
		if !ok {
			s.logger.Warn(ctx, "image reference not owned by the asset store", "id", id, "ref", ref)
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			s.logger.Warn(ctx, "asset delete failed", "id", id, "name", name, "error", err)
		}
	}

	err = s.repo.Delete(ctx, id)
	s.invalidate(id)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "vehicle deleted", "id", id, "images", len(v.Images))
	return nil
}

// Get returns one listing, served from the read cache when enabled.
func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	if s.cache != nil {
		if item := s.cache.Get(id); item != nil {
			return item.Value().Clone(), nil
		}
	}

	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(id, v.Clone(), ttlcache.DefaultTTL)
	}
	return v, nil
}

// Inventory is one page of the public catalog together with the filter
// facets of the whole catalog.
type Inventory struct {
	Vehicles   []*models.Vehicle
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	Makes      []string
	Years      []int
}

// List returns the page of listings selected by q.
func (s *VehicleService) List(ctx context.Context, q vehicles.ListQuery) (*Inventory, error) {
	q = q.Normalized()

	page, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	facets, err := s.repo.Facets(ctx)
	if err != nil {
		return nil, err
	}

	return &Inventory{
		Vehicles:   page.Vehicles,
		Page:       q.Page,
		PerPage:    q.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages(q.PerPage),
		Makes:      facets.Makes,
		Years:      facets.Years,
	}, nil
}

// Featured returns the newest listing. An empty catalog yields
// common.ErrorNotFound.
func (s *VehicleService) Featured(ctx context.Context) (*models.Vehicle, error) {
	page, err := s.repo.List(ctx, vehicles.ListQuery{PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Vehicles) == 0 {
		return nil, common.ErrorNotFound
	}
	return page.Vehicles[0], nil
}

// MissingAssets returns the image references of a listing whose asset no
// longer exists in the store. References the store does not own are
// reported as missing too.
func (s *VehicleService) MissingAssets(ctx context.Context, id string) ([]string, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	missing := []string{}
	for _, ref := range v.Images {
		name, ok := s.store.NameFromReference(ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", name, err)
		}
		if !exists {
			missing = append(missing, ref)
		}
	}
	return missing, nil
}

func (s *VehicleService) invalidate(id string) {
	if s.cache != nil {
		s.cache.Delete(id)
	}
}

func validatePatch(p models.VehiclePatch, now time.Time) error {
	candidate := &models.Vehicle{Make: "-", Model: "-", Price: 1}
	p.Apply(candidate)
	return validateVehicle(candidate, now)
}
