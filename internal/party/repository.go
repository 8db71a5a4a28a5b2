package party

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for parties. Customers
// and suppliers live in separate tables with the same shape.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func tableFor(kind Kind) string {
	if kind == KindSupplier {
		return "suppliers"
	}
	return "customers"
}

// Create inserts a party.
func (r *Repository) Create(ctx context.Context, kind Kind, input CreateInput) (Party, error) {
	var p Party
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, phone, address, active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		RETURNING id, name, phone, address, active, created_at`, tableFor(kind)),
		input.Name, nullableText(input.Phone), nullableText(input.Address)).
		Scan(&p.ID, &p.Name, &p.Phone, &p.Address, &p.Active, &p.CreatedAt)
	p.Kind = kind
	return p, err
}

// Get returns one party by id.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Party, error) {
	var (
		p       Party
		phone   pgtype.Text
		address pgtype.Text
	)
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, name, phone, address, active, created_at FROM %s WHERE id = $1`, tableFor(kind)), id).
		Scan(&p.ID, &p.Name, &phone, &address, &p.Active, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return Party{}, ErrNotFound
	}
	if err != nil {
		return Party{}, err
	}
	p.Kind = kind
	p.Phone = phone.String
	p.Address = address.String
	return p, nil
}

// List returns parties in name order, optionally only active ones.
func (r *Repository) List(ctx context.Context, kind Kind, activeOnly bool) ([]Party, error) {
	query := fmt.Sprintf(`SELECT id, name, phone, address, active, created_at FROM %s`, tableFor(kind))
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		var (
			p       Party
			phone   pgtype.Text
			address pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.Name, &phone, &address, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Kind = kind
		p.Phone = phone.String
		p.Address = address.String
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// SetActive toggles a party on or off without deleting history.
func (r *Repository) SetActive(ctx context.Context, kind Kind, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET active = $2 WHERE id = $1`, tableFor(kind)), id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableText(s string) pgtype.Text {
	if s != "" {
		return pgtype.Text{String: s, Valid: true}
	}
	return pgtype.Text{}
}
