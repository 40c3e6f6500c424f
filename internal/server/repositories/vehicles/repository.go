// Package vehicles persists catalog entries. Two backends implement
// Repository: PostgreSQL (pgx via database/sql) and an embedded Badger store.
package vehicles

import (
	"context"

	"github.com/dmitrijs2005/autolot/internal/server/models"
)

// Repository stores vehicles.
//
// Update is a compare-and-swap: v.Version must equal the stored version or
// common.ErrVersionConflict is returned. On success v.Version is advanced to
// the new stored version. Get, Update and Delete return common.ErrorNotFound
// for unknown ids. List returns one page of the entries matching q; see
// ListQuery for the defaults.
type Repository interface {
	Create(ctx context.Context, v *models.Vehicle) error
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	List(ctx context.Context, q ListQuery) (ListPage, error)
	Facets(ctx context.Context) (Facets, error)
	Update(ctx context.Context, v *models.Vehicle) error
	Delete(ctx context.Context, id string) error
}
