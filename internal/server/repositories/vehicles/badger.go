package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/models"
)

var keyPrefix = []byte("vehicle/")

func vehicleKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}

// BadgerRepository implements Repository on an embedded Badger database.
// Each vehicle is stored as one JSON document under "vehicle/<id>".
// Badger's optimistic transactions back the version check: a concurrent
// writer on the same key makes the commit fail with badger.ErrConflict,
// which is reported as common.ErrVersionConflict.
type BadgerRepository struct {
	db *badger.DB
}

func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func mapBadgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return common.ErrorNotFound
	case errors.Is(err, badger.ErrConflict):
		return common.ErrVersionConflict
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrVersionConflict),
		errors.Is(err, common.ErrAlreadyExists):
		return err
	default:
		return fmt.Errorf("badger error: %w", err)
	}
}

func readVehicle(txn *badger.Txn, id string) (*models.Vehicle, error) {
	item, err := txn.Get(vehicleKey(id))
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	v := &models.Vehicle{}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode vehicle %s: %w", id, err)
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	return v, nil
}

func writeVehicle(txn *badger.Txn, v *models.Vehicle) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(vehicleKey(v.ID), raw)
}

func (r *BadgerRepository) Create(ctx context.Context, v *models.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := v.Clone()
	doc.Version = 1
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(vehicleKey(v.ID)); err == nil {
			return common.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeVehicle(txn, doc)
	})
	if err != nil {
		return mapBadgerErr(err)
	}
	v.Version = 1
	return nil
}

func (r *BadgerRepository) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var v *models.Vehicle
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = readVehicle(txn, id)
		return err
	})
	if err != nil {
		return nil, mapBadgerErr(err)
	}
	return v, nil
}

// List scans every document and applies q in memory.
func (r *BadgerRepository) List(ctx context.Context, q ListQuery) (ListPage, error) {
	all, err := r.all(ctx)
	if err != nil {
		return ListPage{}, err
	}
	return Select(all, q), nil
}

func (r *BadgerRepository) Facets(ctx context.Context) (Facets, error) {
	all, err := r.all(ctx)
	if err != nil {
		return Facets{}, err
	}
	return FacetsOf(all), nil
}

func (r *BadgerRepository) all(ctx context.Context) ([]*models.Vehicle, error) {
	result := []*models.Vehicle{}
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			v := &models.Vehicle{}
			if err := json.Unmarshal(raw, v); err != nil {
				return fmt.Errorf("decode vehicle %s: %w", it.Item().Key(), err)
			}
			if v.Images == nil {
				v.Images = []string{}
			}
			result = append(result, v)
		}
		return nil
	})
	if err != nil {
		return nil, mapBadgerErr(err)
	}
	return result, nil
}

func (r *BadgerRepository) Update(ctx context.Context, v *models.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := v.Clone()
	err := r.db.Update(func(txn *badger.Txn) error {
		stored, err := readVehicle(txn, v.ID)
		if err != nil {
			return err
		}
		if stored.Version != v.Version {
			return common.ErrVersionConflict
		}
		doc.CreatedAt = stored.CreatedAt
		doc.Version = stored.Version + 1
		return writeVehicle(txn, doc)
	})
	if err != nil {
		return mapBadgerErr(err)
	}
	v.Version = doc.Version
	return nil
}

func (r *BadgerRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(vehicleKey(id)); err != nil {
			return err
		}
		return txn.Delete(vehicleKey(id))
	})
	return mapBadgerErr(err)
}
