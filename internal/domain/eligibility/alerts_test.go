package eligibility

import (
	"reflect"
	"testing"
	"time"
)

var today = date(2026, time.October, 14)

func TestCertificateAlert_NoExpiration(t *testing.T) {
	certs := []Certificate{{ExpirationDate: nil, NoExpiration: true}}
	if a := CertificateAlert(certs, today); a != nil {
		t.Errorf("expected no alert, got %+v", a)
	}
}

func TestCertificateAlert_NoExpirationWinsOverDate(t *testing.T) {
	certs := []Certificate{{ExpirationDate: ptrTime(today.AddDate(0, 0, -10)), NoExpiration: true}}
	if a := CertificateAlert(certs, today); a != nil {
		t.Errorf("expected no alert, got %+v", a)
	}
}

func TestCertificateAlert_Empty(t *testing.T) {
	if a := CertificateAlert(nil, today); a != nil {
		t.Errorf("expected no alert, got %+v", a)
	}
}

func TestCertificateAlert_MissingDate(t *testing.T) {
	certs := []Certificate{{}}
	if a := CertificateAlert(certs, today); a != nil {
		t.Errorf("expected no alert, got %+v", a)
	}
}

func TestCertificateAlert_Windows(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   AlertKind
	}{
		{"expired yesterday", -1, AlertCertificateExpired},
		{"expires today", 0, AlertCertificateExpiring},
		{"expires in 30 days", 30, AlertCertificateExpiring},
		{"expires in 90 days", 90, AlertCertificateExpiring},
		{"expires in 91 days", 91, ""},
		{"expires in 200 days", 200, ""},
	}
	for _, tt := range tests {
		certs := []Certificate{{ExpirationDate: ptrTime(today.AddDate(0, 0, tt.offset))}}
		a := CertificateAlert(certs, today)
		if tt.want == "" {
			if a != nil {
				t.Errorf("%s: expected no alert, got %+v", tt.name, a)
			}
			continue
		}
		if a == nil {
			t.Errorf("%s: expected %s alert, got none", tt.name, tt.want)
			continue
		}
		if a.Kind != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, a.Kind)
		}
		if a.Message == "" {
			t.Errorf("%s: expected a message", tt.name)
		}
	}
}

func TestCertificateAlert_OnlyLastCertificateCounts(t *testing.T) {
	expired := Certificate{ExpirationDate: ptrTime(today.AddDate(0, 0, -30))}
	valid := Certificate{ExpirationDate: ptrTime(today.AddDate(1, 0, 0))}

	if a := CertificateAlert([]Certificate{expired, valid}, today); a != nil {
		t.Errorf("expected earlier expired certificate to be ignored, got %+v", a)
	}
	a := CertificateAlert([]Certificate{valid, expired}, today)
	if a == nil || a.Kind != AlertCertificateExpired {
		t.Errorf("expected expired alert from the last certificate, got %+v", a)
	}
}

func TestPensionPaymentAlert(t *testing.T) {
	birth := ptrTime(date(1950, time.January, 1))
	tests := []struct {
		name     string
		category string
		payment  *time.Time
		birth    *time.Time
		fires    bool
	}{
		{"retiree 41 days overdue", "Jubilado", ptrTime(today.AddDate(0, 0, -41)), birth, true},
		{"retiree exactly 40 days", "Jubilado", ptrTime(today.AddDate(0, 0, -40)), birth, false},
		{"pensioner overdue", "Pensionado", ptrTime(today.AddDate(0, 0, -90)), birth, true},
		{"category case and accents", "  JUBILADO ", ptrTime(today.AddDate(0, 0, -41)), birth, true},
		{"other category", "Obligatorio", ptrTime(today.AddDate(0, 0, -90)), birth, false},
		{"no payment date", "Jubilado", nil, birth, false},
		{"no birth date", "Jubilado", ptrTime(today.AddDate(0, 0, -90)), nil, false},
		{"turns 80 today", "Jubilado", ptrTime(today.AddDate(0, 0, -90)), ptrTime(date(1946, time.October, 14)), false},
		{"80 tomorrow", "Jubilado", ptrTime(today.AddDate(0, 0, -90)), ptrTime(date(1946, time.October, 15)), true},
	}
	for _, tt := range tests {
		a := PensionPaymentAlert(tt.category, tt.payment, tt.birth, today)
		if tt.fires && (a == nil || a.Kind != AlertPensionPaymentOverdue) {
			t.Errorf("%s: expected overdue alert, got %+v", tt.name, a)
		}
		if !tt.fires && a != nil {
			t.Errorf("%s: expected no alert, got %+v", tt.name, a)
		}
	}
}

func TestDependentAgeAlert_ChildCutoff21(t *testing.T) {
	// Age 20, turns 21 in 48 days: one 30-day month away.
	birth := ptrTime(date(2005, time.December, 1))
	if got := MonthsUntilAge(*birth, 21, today); got != 1 {
		t.Fatalf("precondition: expected 1 month to 21, got %d", got)
	}

	a := DependentAgeAlert(birth, RelationshipChild, false, today)
	if a == nil || a.Kind != AlertChildCutoff21 {
		t.Fatalf("expected child cutoff alert, got %+v", a)
	}

	// Same birth date a year earlier: age 19, no alert.
	if a := DependentAgeAlert(birth, RelationshipChild, false, today.AddDate(-1, 0, 0)); a != nil {
		t.Errorf("expected no alert at age 19, got %+v", a)
	}
}

func TestDependentAgeAlert_ChildOutsideLookahead(t *testing.T) {
	// Age 20 but 98 days (3 months) before turning 21.
	birth := ptrTime(date(2006, time.January, 20))
	if a := DependentAgeAlert(birth, RelationshipChild, false, today); a != nil {
		t.Errorf("expected no alert, got %+v", a)
	}
}

func TestDependentAgeAlert_ChildDaysBeforeBirthday(t *testing.T) {
	birth := ptrTime(date(2005, time.October, 20))
	a := DependentAgeAlert(birth, RelationshipChild, false, today)
	if a == nil || a.Kind != AlertChildCutoff21 {
		t.Errorf("expected child cutoff alert with 0 months left, got %+v", a)
	}
}

func TestDependentAgeAlert_StudentCutoff26(t *testing.T) {
	birth := ptrTime(date(2000, time.December, 1))

	a := DependentAgeAlert(birth, RelationshipChild, true, today)
	if a == nil || a.Kind != AlertStudentCutoff26 {
		t.Fatalf("expected student cutoff alert, got %+v", a)
	}
	if a := DependentAgeAlert(birth, RelationshipChild, false, today); a != nil {
		t.Errorf("expected no alert for a non-student, got %+v", a)
	}
}

func TestDependentAgeAlert_Guardianship(t *testing.T) {
	birth := ptrTime(date(2008, time.November, 20))

	a := DependentAgeAlert(birth, RelationshipMinorUnderGuardianship, false, today)
	if a == nil || a.Kind != AlertGuardianshipCutoff18 {
		t.Fatalf("expected guardianship alert, got %+v", a)
	}
	if a := DependentAgeAlert(birth, RelationshipChild, false, today); a != nil {
		t.Errorf("expected no alert for a 17 year old child, got %+v", a)
	}
}

func TestDependentAgeAlert_OtherRelationships(t *testing.T) {
	birth := ptrTime(date(2005, time.December, 1))
	for _, rel := range []Relationship{RelationshipHolder, RelationshipSpouse, RelationshipOther} {
		if a := DependentAgeAlert(birth, rel, true, today); a != nil {
			t.Errorf("%s: expected no alert, got %+v", rel, a)
		}
	}
	if a := DependentAgeAlert(nil, RelationshipChild, true, today); a != nil {
		t.Errorf("nil birth date: expected no alert, got %+v", a)
	}
}

func TestEvaluate_CombinesAlerts(t *testing.T) {
	f := Facts{
		Relationship: RelationshipChild,
		BirthDate:    ptrTime(date(2005, time.December, 1)),
		Certificates: []Certificate{{ExpirationDate: ptrTime(today.AddDate(0, 0, 10))}},
	}
	alerts := Evaluate(f, today)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(alerts), alerts)
	}
	if alerts[0].Kind != AlertCertificateExpiring {
		t.Errorf("expected certificate alert first, got %s", alerts[0].Kind)
	}
	if alerts[1].Kind != AlertChildCutoff21 {
		t.Errorf("expected dependent alert second, got %s", alerts[1].Kind)
	}
}

func TestEvaluate_NoAlerts(t *testing.T) {
	f := Facts{Relationship: RelationshipHolder, BirthDate: ptrTime(date(1980, time.May, 5))}
	if alerts := Evaluate(f, today); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	f := Facts{
		CategoryName:    "Jubilado",
		Relationship:    RelationshipChild,
		BirthDate:       ptrTime(date(2005, time.December, 1)),
		Studying:        true,
		LastPaymentDate: ptrTime(today.AddDate(0, -3, 0)),
		Certificates:    []Certificate{{ExpirationDate: ptrTime(today.AddDate(0, 0, -1))}},
	}
	first := Evaluate(f, today)
	second := Evaluate(f, today)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if len(first) != 3 {
		t.Errorf("expected 3 alerts, got %d: %+v", len(first), first)
	}
}
