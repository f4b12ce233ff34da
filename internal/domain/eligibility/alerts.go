package eligibility

import (
	"fmt"
	"time"
)

// AlertKind identifies which rule produced an alert.
type AlertKind string

const (
	AlertCertificateExpired    AlertKind = "certificate_expired"
	AlertCertificateExpiring   AlertKind = "certificate_expiring"
	AlertPensionPaymentOverdue AlertKind = "pension_payment_overdue"
	AlertChildCutoff21         AlertKind = "child_cutoff_21"
	AlertStudentCutoff26       AlertKind = "student_cutoff_26"
	AlertGuardianshipCutoff18  AlertKind = "guardianship_cutoff_18"
)

const (
	// CertificateWarningDays is how far ahead an expiring certificate is reported.
	CertificateWarningDays = 90
	// PaymentOverdueDays is the gap after the last contribution payment that
	// raises an overdue alert.
	PaymentOverdueDays = 40
	// PensionAlertAgeLimit suppresses payment alerts from this age on.
	PensionAlertAgeLimit = 80
	// CutoffLookaheadMonths is the window before a coverage cutoff birthday.
	CutoffLookaheadMonths = 2

	ChildCutoffAge        = 21
	StudentCutoffAge      = 26
	GuardianshipCutoffAge = 18
)

// Alert is a human-readable warning attached to a member at read time.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// Certificate is the part of a disability certificate (CUD) the alerts read.
type Certificate struct {
	ExpirationDate *time.Time
	NoExpiration   bool
}

// Facts holds the member fields that alerts are computed from.
type Facts struct {
	CategoryName    string
	Relationship    Relationship
	BirthDate       *time.Time
	Studying        bool
	LastPaymentDate *time.Time
	// Certificates in insertion order; only the last one is consulted.
	Certificates []Certificate
}

// Evaluate runs every alert rule for the member and returns the ones that
// fire, in a stable order. Rules are independent of each other.
func Evaluate(f Facts, asOf time.Time) []Alert {
	var alerts []Alert
	if a := CertificateAlert(f.Certificates, asOf); a != nil {
		alerts = append(alerts, *a)
	}
	if a := PensionPaymentAlert(f.CategoryName, f.LastPaymentDate, f.BirthDate, asOf); a != nil {
		alerts = append(alerts, *a)
	}
	if a := DependentAgeAlert(f.BirthDate, f.Relationship, f.Studying, asOf); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}

// CertificateAlert reports an expired certificate, or one expiring within
// CertificateWarningDays. Only the last certificate of the list is read.
func CertificateAlert(certs []Certificate, asOf time.Time) *Alert {
	if len(certs) == 0 {
		return nil
	}
	last := certs[len(certs)-1]
	if last.NoExpiration || last.ExpirationDate == nil {
		return nil
	}
	days := DaysBetween(asOf, *last.ExpirationDate)
	switch {
	case days < 0:
		return &Alert{
			Kind:    AlertCertificateExpired,
			Message: fmt.Sprintf("disability certificate expired on %s", last.ExpirationDate.Format("2006-01-02")),
		}
	case days <= CertificateWarningDays:
		return &Alert{
			Kind:    AlertCertificateExpiring,
			Message: fmt.Sprintf("disability certificate expires in %d days (%s)", days, last.ExpirationDate.Format("2006-01-02")),
		}
	}
	return nil
}

// PensionPaymentAlert reports retirees and pensioners under
// PensionAlertAgeLimit whose last contribution payment is older than
// PaymentOverdueDays.
func PensionPaymentAlert(categoryName string, lastPayment, birth *time.Time, asOf time.Time) *Alert {
	if !IsRetirementCategory(categoryName) || lastPayment == nil || birth == nil {
		return nil
	}
	if age := AgeInYears(birth, asOf); *age >= PensionAlertAgeLimit {
		return nil
	}
	days := DaysBetween(*lastPayment, asOf)
	if days <= PaymentOverdueDays {
		return nil
	}
	return &Alert{
		Kind:    AlertPensionPaymentOverdue,
		Message: fmt.Sprintf("last contribution payment was %d days ago (%s)", days, lastPayment.Format("2006-01-02")),
	}
}

// DependentAgeAlert warns when a dependent is within CutoffLookaheadMonths
// of losing coverage: children at 21, studying children at 26 and minors
// under guardianship at 18. The alert only fires while the member is exactly
// one year below the cutoff age.
func DependentAgeAlert(birth *time.Time, rel Relationship, studying bool, asOf time.Time) *Alert {
	if birth == nil {
		return nil
	}
	age := *AgeInYears(birth, asOf)

	switch rel {
	case RelationshipChild:
		if age == ChildCutoffAge-1 && withinLookahead(*birth, ChildCutoffAge, asOf) {
			return cutoffAlert(AlertChildCutoff21, "child coverage ends at %d: turns %d on %s", ChildCutoffAge, *birth)
		}
		if studying && age == StudentCutoffAge-1 && withinLookahead(*birth, StudentCutoffAge, asOf) {
			return cutoffAlert(AlertStudentCutoff26, "student coverage ends at %d: turns %d on %s", StudentCutoffAge, *birth)
		}
	case RelationshipMinorUnderGuardianship:
		if age == GuardianshipCutoffAge-1 && withinLookahead(*birth, GuardianshipCutoffAge, asOf) {
			return cutoffAlert(AlertGuardianshipCutoff18, "guardianship coverage ends at %d: turns %d on %s", GuardianshipCutoffAge, *birth)
		}
	}
	return nil
}

func withinLookahead(birth time.Time, cutoff int, asOf time.Time) bool {
	months := MonthsUntilAge(birth, cutoff, asOf)
	return months >= 0 && months <= CutoffLookaheadMonths
}

func cutoffAlert(kind AlertKind, format string, cutoff int, birth time.Time) *Alert {
	on := time.Date(birth.Year()+cutoff, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	return &Alert{Kind: kind, Message: fmt.Sprintf(format, cutoff, cutoff, on.Format("2006-01-02"))}
}
