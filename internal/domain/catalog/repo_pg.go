package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) ListCategories(ctx context.Context, onlyActive bool) ([]*Category, error) {
	sql := `SELECT id, nombre, activo FROM categorias`
	if onlyActive {
		sql += ` WHERE activo`
	}
	sql += ` ORDER BY nombre`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *repoPG) GetCategory(ctx context.Context, id int) (*Category, error) {
	var c Category
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, nombre, activo FROM categorias WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

func (r *repoPG) ListRelationships(ctx context.Context) ([]*Relationship, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id, nombre FROM parentescos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, newRelationship(id, name))
	}
	return out, rows.Err()
}

func (r *repoPG) GetRelationship(ctx context.Context, id int) (*Relationship, error) {
	var name string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT nombre FROM parentescos WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship %d: %w", id, err)
	}
	return newRelationship(id, name), nil
}
