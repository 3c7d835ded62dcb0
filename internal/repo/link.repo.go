package repo

import (
	"context"
	"database/sql"
	"time"
)

type LinkRepo interface {
	// FindByToken returns the payment_links row as a column→value map, or
	// nil when the token is unknown.
	FindByToken(ctx context.Context, token string) (map[string]any, error)
}

type linkRepo struct {
	db *sql.DB
}

func NewLinkRepo(db *sql.DB) LinkRepo {
	return &linkRepo{db: db}
}

func (r *linkRepo) FindByToken(ctx context.Context, token string) (map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM payment_links WHERE token = $1", token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(cols))
	for i, c := range cols {
		switch v := values[i].(type) {
		case []byte:
			out[c] = string(v)
		case time.Time:
			out[c] = v.UTC().Format(time.RFC3339)
		default:
			out[c] = v
		}
	}
	return out, rows.Err()
}
