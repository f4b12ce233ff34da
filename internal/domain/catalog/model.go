// Package catalog serves the read-only dictionaries that member records
// reference by id: membership categories and family relationships.
package catalog

import (
	"errors"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/eligibility"
)

var ErrNotFound = errors.New("catalog entry not found")

// Category maps to the categorias table.
type Category struct {
	ID     int    `db:"id" json:"id"`
	Name   string `db:"nombre" json:"name"`
	Active bool   `db:"activo" json:"active"`
}

// IsRetirement reports whether contribution payments are tracked for this
// category.
func (c *Category) IsRetirement() bool {
	return eligibility.IsRetirementCategory(c.Name)
}

// IsMaternityPlan reports whether members need a coverage date range.
func (c *Category) IsMaternityPlan() bool {
	return eligibility.Normalize(c.Name) == eligibility.Normalize(eligibility.MaternityPlanCategory)
}

// Relationship maps to the parentescos table. Kind is derived from the
// label.
type Relationship struct {
	ID   int                      `db:"id" json:"id"`
	Name string                   `db:"nombre" json:"name"`
	Kind eligibility.Relationship `db:"-" json:"kind"`
}

func newRelationship(id int, name string) *Relationship {
	return &Relationship{ID: id, Name: name, Kind: eligibility.ParseRelationship(name)}
}
