package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/ingest"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
	"github.com/dmitrijs2005/autolot/internal/server/transcode"
)

// memRepo is an in-memory vehicles.Repository with injection points.
type memRepo struct {
	vehicles.Repository

	mu        sync.Mutex
	items     map[string]*models.Vehicle
	gets      int
	createErr error
	deleteErr error
	// beforeUpdate runs before the version check, with the lock released.
	beforeUpdate func(attempt int)
	updates      int
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[string]*models.Vehicle{}}
}

func (r *memRepo) Create(ctx context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.items[v.ID]; ok {
		return common.ErrAlreadyExists
	}
	v.Version = 1
	r.items[v.ID] = v.Clone()
	return nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	v, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return v.Clone(), nil
}

func (r *memRepo) all() []*models.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Vehicle{}
	for _, v := range r.items {
		out = append(out, v.Clone())
	}
	return out
}

func (r *memRepo) List(ctx context.Context, q vehicles.ListQuery) (vehicles.ListPage, error) {
	return vehicles.Select(r.all(), q), nil
}

func (r *memRepo) Facets(ctx context.Context) (vehicles.Facets, error) {
	return vehicles.FacetsOf(r.all()), nil
}

func (r *memRepo) Update(ctx context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	attempt := r.updates
	r.updates++
	hook := r.beforeUpdate
	r.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[v.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Version != v.Version {
		return common.ErrVersionConflict
	}
	v.Version++
	r.items[v.ID] = v.Clone()
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

// bump simulates another writer committing to id.
func (r *memRepo) bump(id string, mutate func(v *models.Vehicle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.items[id]
	mutate(v)
	v.Version++
}

// echoNormalizer returns its input and rejects payloads starting with "bad".
type echoNormalizer struct{}

func (echoNormalizer) Normalize(raw []byte, mediaType string) ([]byte, transcode.Outcome, error) {
	if strings.HasPrefix(string(raw), "bad") {
		return nil, transcode.OutcomeTranscoded, common.ErrDecodeFailed
	}
	return raw, transcode.OutcomeTranscoded, nil
}

type fixture struct {
	svc   *VehicleService
	repo  *memRepo
	store *assets.FileStore
	fs    afero.Fs
}

func newFixture(t *testing.T, opts VehicleOptions) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := assets.NewFileStoreFs(fs, "/uploads")
	logger := logging.NewDiscardLogger()
	ing := ingest.NewIngestor(echoNormalizer{}, store, ingest.DefaultPolicy, logger)
	repo := newMemRepo()
	svc := NewVehicleService(repo, ing, store, opts, logger)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, repo: repo, store: store, fs: fs}
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	infos, err := afero.ReadDir(f.fs, "/")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func upload(payload string) models.RawUpload {
	return models.RawUpload{Data: []byte(payload), MediaType: "image/jpeg", Filename: payload + ".jpg"}
}

func ptr[T any](v T) *T { return &v }

func validFields() VehicleFields {
	return VehicleFields{Make: "BMW", Model: "X5", Year: 2019, Price: 32000, Mileage: 54000}
}
