package member

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/catalog"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/eligibility"
)

// Validation rule identifiers, reported in ValidationError.Rule.
const (
	RuleDisabilityCertificate = "disability_certificate"
	RuleRequiredFields        = "required_fields"
	RuleCUILFormat            = "cuil_format"
	RuleMemberCodeFormat      = "member_code_format"
	RuleDuplicateDNI          = "duplicate_dni"
	RuleDuplicateMemberCode   = "duplicate_member_code"
	RuleDuplicateCUIL         = "duplicate_cuil"
	RuleUnknownRelationship   = "unknown_relationship"
	RuleUnknownCategory       = "unknown_category"
	RuleGuardianshipAge       = "guardianship_age"
	RuleChildAge              = "child_age"
	RuleStudentProof          = "student_proof"
	RuleDisabilityProof       = "disability_proof"
	RuleMaternityPlanDates    = "maternity_plan_dates"
)

// ValidationError is a rejected submission. Only the first failing rule is
// reported.
type ValidationError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(rule, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Upload is an attached file in a submission.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// CertificateInput describes a disability certificate being recorded.
type CertificateInput struct {
	Level          DisabilityLevel
	EmissionDate   *time.Time
	ExpirationDate *time.Time
	NoExpiration   bool
}

// Submission is the registration form for a new member.
type Submission struct {
	FirstName       string
	LastName        string
	DNI             string
	CUIL            string
	MemberCode      string
	RelationshipID  int
	CategoryID      *int
	Sex             string
	BirthDate       *time.Time
	Studying        bool
	LastPaymentDate *time.Time
	Phone           string
	Email           string
	Address         string

	HasDisability bool
	Certificate   CertificateInput

	MaternityFrom *time.Time
	MaternityTo   *time.Time

	StudentProof    *Upload
	DisabilityProof *Upload
}

// UniquenessChecker answers the exact-match existence lookups.
type UniquenessChecker interface {
	ExistsByDNI(ctx context.Context, dni string) (bool, error)
	ExistsByMemberCode(ctx context.Context, code string) (bool, error)
	ExistsByCUIL(ctx context.Context, cuil string) (bool, error)
}

// CatalogLookup resolves dictionary ids. *catalog.Service satisfies it.
type CatalogLookup interface {
	Category(ctx context.Context, id int) (*catalog.Category, error)
	Relationship(ctx context.Context, id int) (*catalog.Relationship, error)
}

// Validated carries what the validator resolved for an accepted submission.
type Validated struct {
	Code         MemberCode
	Relationship *catalog.Relationship
	Category     *catalog.Category
}

// Validator runs the registration rules in order and stops at the first
// failure. It never writes.
type Validator struct {
	unique  UniquenessChecker
	catalog CatalogLookup
	nowFn   func() time.Time
}

func NewValidator(unique UniquenessChecker, lookup CatalogLookup) *Validator {
	return &Validator{unique: unique, catalog: lookup, nowFn: time.Now}
}

// Validate returns a *ValidationError for a rejected submission, or another
// error when a lookup fails.
func (v *Validator) Validate(ctx context.Context, s *Submission) (*Validated, error) {
	if s.HasDisability {
		if err := CheckCertificate(s.Certificate); err != nil {
			return nil, err
		}
	}

	if err := checkRequired(s); err != nil {
		return nil, err
	}

	if !ValidCUIL(strings.TrimSpace(s.CUIL)) {
		return nil, invalid(RuleCUILFormat, "CUIL must have the form NN-NNNNNNNN-N")
	}

	code, err := ParseMemberCode(s.MemberCode)
	if err != nil {
		return nil, invalid(RuleMemberCodeFormat, "member code must have the form <prefix>-<group>/<suffix>, e.g. 19-00639-4/00")
	}

	if err := v.checkUnique(ctx, s); err != nil {
		return nil, err
	}

	out := &Validated{Code: code}
	if out.Relationship, err = v.catalog.Relationship(ctx, s.RelationshipID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, invalid(RuleUnknownRelationship, "relationship %d does not exist", s.RelationshipID)
		}
		return nil, fmt.Errorf("resolve relationship: %w", err)
	}
	if s.CategoryID != nil {
		if out.Category, err = v.catalog.Category(ctx, *s.CategoryID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, invalid(RuleUnknownCategory, "category %d does not exist", *s.CategoryID)
			}
			return nil, fmt.Errorf("resolve category: %w", err)
		}
	}

	if err := v.checkDependentAge(s, out.Relationship.Kind); err != nil {
		return nil, err
	}

	if s.HasDisability && s.DisabilityProof == nil {
		return nil, invalid(RuleDisabilityProof, "a disability certificate scan must be attached")
	}

	if out.Category != nil && out.Category.IsMaternityPlan() {
		if s.MaternityFrom == nil || s.MaternityTo == nil {
			return nil, invalid(RuleMaternityPlanDates, "the maternity plan requires both a start and an end date")
		}
		if s.MaternityFrom.After(*s.MaternityTo) {
			return nil, invalid(RuleMaternityPlanDates, "the maternity plan start date must not be after its end date")
		}
	}

	return out, nil
}

// CheckCertificate applies the disability certificate rules.
func CheckCertificate(c CertificateInput) error {
	if c.EmissionDate == nil {
		return invalid(RuleDisabilityCertificate, "the disability certificate emission date is required")
	}
	if !c.Level.Valid() {
		return invalid(RuleDisabilityCertificate, "the disability level must be %q or %q", LevelTemporary, LevelPermanent)
	}
	if c.Level == LevelTemporary && c.NoExpiration {
		return invalid(RuleDisabilityCertificate, "a temporary disability certificate must have an expiration date")
	}
	if !c.NoExpiration && c.ExpirationDate == nil {
		return invalid(RuleDisabilityCertificate, "the disability certificate expiration date is required")
	}
	return nil
}

func checkRequired(s *Submission) error {
	fields := []struct {
		label string
		value string
	}{
		{"first name", s.FirstName},
		{"last name", s.LastName},
		{"DNI", s.DNI},
		{"CUIL", s.CUIL},
		{"member code", s.MemberCode},
		{"sex", s.Sex},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return invalid(RuleRequiredFields, "%s is required", f.label)
		}
	}
	if s.RelationshipID <= 0 {
		return invalid(RuleRequiredFields, "relationship is required")
	}
	return nil
}

// checkUnique consults DNI, then member code, then CUIL. Each lookup only
// runs when the previous one found no match.
func (v *Validator) checkUnique(ctx context.Context, s *Submission) error {
	checks := []struct {
		rule   string
		label  string
		value  string
		exists func(context.Context, string) (bool, error)
	}{
		{RuleDuplicateDNI, "DNI", s.DNI, v.unique.ExistsByDNI},
		{RuleDuplicateMemberCode, "member code", s.MemberCode, v.unique.ExistsByMemberCode},
		{RuleDuplicateCUIL, "CUIL", s.CUIL, v.unique.ExistsByCUIL},
	}
	for _, c := range checks {
		value := strings.TrimSpace(c.value)
		found, err := c.exists(ctx, value)
		if err != nil {
			return fmt.Errorf("check %s uniqueness: %w", c.label, err)
		}
		if found {
			return invalid(c.rule, "a member with %s %s is already registered", c.label, value)
		}
	}
	return nil
}

func (v *Validator) checkDependentAge(s *Submission, rel eligibility.Relationship) error {
	age := eligibility.AgeInYears(s.BirthDate, v.nowFn())
	if age == nil {
		return nil
	}

	switch rel {
	case eligibility.RelationshipMinorUnderGuardianship:
		if *age >= eligibility.GuardianshipCutoffAge {
			return invalid(RuleGuardianshipAge, "a minor under guardianship must be under %d (age %d)", eligibility.GuardianshipCutoffAge, *age)
		}
	case eligibility.RelationshipChild:
		if *age > eligibility.StudentCutoffAge {
			return invalid(RuleChildAge, "children over %d cannot be registered as dependents (age %d)", eligibility.StudentCutoffAge, *age)
		}
		if *age >= eligibility.ChildCutoffAge && s.StudentProof == nil {
			return invalid(RuleStudentProof, "children aged %d or older require proof of active student status", eligibility.ChildCutoffAge)
		}
	}
	return nil
}
