package eligibility

import "testing"

func TestParseRelationship(t *testing.T) {
	tests := []struct {
		label string
		want  Relationship
	}{
		{"Titular", RelationshipHolder},
		{"TITULAR", RelationshipHolder},
		{"Cónyuge", RelationshipSpouse},
		{"conyuge", RelationshipSpouse},
		{"Esposa", RelationshipSpouse},
		{"Concubino/a", RelationshipSpouse},
		{"Hijo/a", RelationshipChild},
		{"Hija", RelationshipChild},
		{" HIJO ", RelationshipChild},
		{"Menor bajo guarda", RelationshipMinorUnderGuardianship},
		{"Menor a cargo", RelationshipMinorUnderGuardianship},
		{"Padre", RelationshipOther},
		{"", RelationshipOther},
	}
	for _, tt := range tests {
		if got := ParseRelationship(tt.label); got != tt.want {
			t.Errorf("ParseRelationship(%q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}

func TestIsRetirementCategory(t *testing.T) {
	for _, name := range []string{"Jubilado", "jubilado", "Pensionado", "PENSIONADO"} {
		if !IsRetirementCategory(name) {
			t.Errorf("expected %q to be a retirement category", name)
		}
	}
	for _, name := range []string{"Plan Materno", "Obligatorio", "Jubilados y pensionados", ""} {
		if IsRetirementCategory(name) {
			t.Errorf("expected %q not to be a retirement category", name)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Cónyuge "); got != "conyuge" {
		t.Errorf("expected conyuge, got %q", got)
	}
	if got := Normalize("Pensionádo"); got != "pensionado" {
		t.Errorf("expected pensionado, got %q", got)
	}
}
