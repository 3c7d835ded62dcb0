package repo

import (
	"context"
	"database/sql"
	"errors"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
)

type StandRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Stand, error)
	// ListActive returns active stands ordered by name with their summed stock.
	ListActive(ctx context.Context) ([]domain.Stand, error)
}

type standRepo struct {
	db *sql.DB
}

func NewStandRepo(db *sql.DB) StandRepo {
	return &standRepo{db: db}
}

const standSelect = `
	SELECT s.id, s.name, s.location, s.description, s.operating_hours, s.is_active,
	       COALESCE((SELECT SUM(quantity) FROM stand_stock ss WHERE ss.stand_id = s.id), 0),
	       s.created_at, s.updated_at
	FROM stands s`

func scanStand(row rowScanner) (*domain.Stand, error) {
	var (
		s           domain.Stand
		location    sql.NullString
		description sql.NullString
		hours       sql.NullString
		stock       int64
	)
	err := row.Scan(&s.ID, &s.Name, &location, &description, &hours, &s.IsActive, &stock, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if location.Valid {
		s.Location = &location.String
	}
	if description.Valid {
		s.Description = &description.String
	}
	if hours.Valid {
		s.OperatingHours = &hours.String
	}
	s.AvailableStock = int(stock)
	return &s, nil
}

func (r *standRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Stand, error) {
	s, err := scanStand(r.db.QueryRowContext(ctx, standSelect+" WHERE s.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *standRepo) ListActive(ctx context.Context) ([]domain.Stand, error) {
	rows, err := r.db.QueryContext(ctx, standSelect+" WHERE s.is_active ORDER BY s.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stands := []domain.Stand{}
	for rows.Next() {
		s, err := scanStand(rows)
		if err != nil {
			return nil, err
		}
		stands = append(stands, *s)
	}
	return stands, rows.Err()
}

func findStands(ctx context.Context, db *sql.DB, ids []uuid.UUID) (map[uuid.UUID]*domain.Stand, error) {
	out := make(map[uuid.UUID]*domain.Stand)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx, standSelect+" WHERE s.id = ANY($1::text[]::uuid[])", uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanStand(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}
