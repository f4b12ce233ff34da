package eligibility

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Relationship is the closed set of family-group relationships that the
// eligibility rules distinguish.
type Relationship string

const (
	RelationshipHolder                 Relationship = "holder"
	RelationshipSpouse                 Relationship = "spouse"
	RelationshipChild                  Relationship = "child"
	RelationshipMinorUnderGuardianship Relationship = "minor_under_guardianship"
	RelationshipOther                  Relationship = "other"
)

// Retirement-scheme category names. Members in these categories pay their
// contribution directly and are checked for overdue payments.
const (
	CategoryRetiree   = "Jubilado"
	CategoryPensioner = "Pensionado"
)

// MaternityPlanCategory is the category whose members must declare a
// coverage date range.
const MaternityPlanCategory = "Plan Materno"

// ParseRelationship classifies a relationship label from the dictionary
// table ("Titular", "Cónyuge", "Hijo/a", "Menor bajo guarda", ...).
// Matching ignores case and accents; unknown labels are RelationshipOther.
func ParseRelationship(label string) Relationship {
	n := Normalize(label)
	switch {
	case n == "titular":
		return RelationshipHolder
	case strings.HasPrefix(n, "conyuge"), strings.HasPrefix(n, "espos"), strings.HasPrefix(n, "concubin"):
		return RelationshipSpouse
	case strings.HasPrefix(n, "hij"):
		return RelationshipChild
	case strings.HasPrefix(n, "menor"):
		return RelationshipMinorUnderGuardianship
	default:
		return RelationshipOther
	}
}

// IsRetirementCategory reports whether the category name is one of the two
// retirement-scheme tags.
func IsRetirementCategory(name string) bool {
	n := Normalize(name)
	return n == Normalize(CategoryRetiree) || n == Normalize(CategoryPensioner)
}

// Normalize lowercases s, strips diacritics and trims surrounding space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
