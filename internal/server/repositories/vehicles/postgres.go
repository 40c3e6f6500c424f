package vehicles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/dbx"
	"github.com/dmitrijs2005/autolot/internal/server/models"
)

// Conn is what the Postgres repository needs from the database handle.
// *sql.DB satisfies it.
type Conn interface {
	dbx.DBTX
	dbx.TxBeginner
}

// PostgresRepository implements Repository over PostgreSQL.
type PostgresRepository struct {
	db Conn
}

// NewPostgresRepository constructs a repository bound to db.
func NewPostgresRepository(db Conn) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const vehicleColumns = `id, make, model, year, price, description, exterior_color, interior_color,
		mileage, engine, transmission, drivetrain, fuel, body_style, vin, images, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	var images []byte
	err := row.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.Price, &v.Description, &v.ExteriorColor, &v.InteriorColor,
		&v.Mileage, &v.Engine, &v.Transmission, &v.Drivetrain, &v.Fuel, &v.BodyStyle, &v.VIN,
		&images, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &v.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	return v, nil
}

func encodeImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

// Create inserts v. The stored version is 1 regardless of v.Version.
func (r *PostgresRepository) Create(ctx context.Context, v *models.Vehicle) error {
	images, err := encodeImages(v.Images)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		v.ID, v.Make, v.Model, v.Year, v.Price, v.Description, v.ExteriorColor, v.InteriorColor,
		v.Mileage, v.Engine, v.Transmission, v.Drivetrain, v.Fuel, v.BodyStyle, v.VIN,
		images, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		v.Version = 1
		return nil
	case 0:
		return common.ErrAlreadyExists
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`

	v, err := scanVehicle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

// orderBy maps a normalized sort onto a fixed ORDER BY clause. Ties list
// the newest entry first.
var orderBy = map[string]string{
	SortNewest:    `created_at DESC, id`,
	SortPriceAsc:  `price ASC, created_at DESC, id`,
	SortPriceDesc: `price DESC, created_at DESC, id`,
	SortYearAsc:   `year ASC, created_at DESC, id`,
	SortYearDesc:  `year DESC, created_at DESC, id`,
}

func (r *PostgresRepository) List(ctx context.Context, q ListQuery) (ListPage, error) {
	q = q.Normalized()

	where := ""
	args := []any{}
	var conds []string
	if q.Make != "" {
		args = append(args, q.Make)
		conds = append(conds, fmt.Sprintf("make = $%d", len(args)))
	}
	if q.Year != 0 {
		args = append(args, q.Year)
		conds = append(conds, fmt.Sprintf("year = $%d", len(args)))
	}
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}

	page := ListPage{Vehicles: []*models.Vehicle{}}
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM vehicles`+where, args...).Scan(&page.Total); err != nil {
		return ListPage{}, fmt.Errorf("failed to count vehicles: %w", err)
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles` + where + ` ORDER BY ` + orderBy[q.Sort]
	if q.PerPage > 0 {
		args = append(args, q.PerPage, q.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ListPage{}, fmt.Errorf("failed to select vehicles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return ListPage{}, err
		}
		page.Vehicles = append(page.Vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, err
	}
	return page, nil
}

func (r *PostgresRepository) Facets(ctx context.Context) (Facets, error) {
	f := Facets{Makes: []string{}, Years: []int{}}

	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT make FROM vehicles WHERE make <> '' ORDER BY make`)
	if err != nil {
		return Facets{}, fmt.Errorf("failed to select makes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return Facets{}, err
		}
		f.Makes = append(f.Makes, m)
	}
	if err := rows.Err(); err != nil {
		return Facets{}, err
	}

	yrows, err := r.db.QueryContext(ctx, `SELECT DISTINCT year FROM vehicles WHERE year > 0 ORDER BY year DESC`)
	if err != nil {
		return Facets{}, fmt.Errorf("failed to select years: %w", err)
	}
	defer yrows.Close()
	for yrows.Next() {
		var y int
		if err := yrows.Scan(&y); err != nil {
			return Facets{}, err
		}
		f.Years = append(f.Years, y)
	}
	if err := yrows.Err(); err != nil {
		return Facets{}, err
	}
	return f, nil
}

// Update locks the row, checks the version and writes every field of v in
// one transaction.
func (r *PostgresRepository) Update(ctx context.Context, v *models.Vehicle) error {
	images, err := encodeImages(v.Images)
	if err != nil {
		return err
	}

	var newVersion int64
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var stored int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM vehicles WHERE id = $1 FOR UPDATE`, v.ID).Scan(&stored)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if stored != v.Version {
			return common.ErrVersionConflict
		}

		query := `
			UPDATE vehicles SET
				make = $1, model = $2, year = $3, price = $4, description = $5,
				exterior_color = $6, interior_color = $7, mileage = $8, engine = $9,
				transmission = $10, drivetrain = $11, fuel = $12, body_style = $13, vin = $14,
				images = $15, updated_at = $16, version = version + 1
			WHERE id = $17 AND version = $18
			RETURNING version
		`
		err = tx.QueryRowContext(ctx, query,
			v.Make, v.Model, v.Year, v.Price, v.Description,
			v.ExteriorColor, v.InteriorColor, v.Mileage, v.Engine,
			v.Transmission, v.Drivetrain, v.Fuel, v.BodyStyle, v.VIN,
			images, v.UpdatedAt, v.ID, v.Version).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrVersionConflict
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	v.Version = newVersion
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
