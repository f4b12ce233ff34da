package catalog

import "context"

type Repository interface {
	ListCategories(ctx context.Context, onlyActive bool) ([]*Category, error)
	GetCategory(ctx context.Context, id int) (*Category, error)
	ListRelationships(ctx context.Context) ([]*Relationship, error)
	GetRelationship(ctx context.Context, id int) (*Relationship, error)
}
