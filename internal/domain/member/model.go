// Package member implements the member registry: registration with
// validation, filtered listings annotated with eligibility alerts, inline
// editing of one record at a time, and disability certificates.
package member

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/eligibility"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/assets"
)

var (
	ErrNotFound  = errors.New("member not found")
	ErrDuplicate = errors.New("a member with the same dni, cuil or member code already exists")
)

// Member maps to the afiliados table. RelationshipName and CategoryName are
// joined from the dictionaries on read.
type Member struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	FirstName        string     `db:"nombre" json:"first_name"`
	LastName         string     `db:"apellido" json:"last_name"`
	DNI              string     `db:"dni" json:"dni"`
	CUIL             string     `db:"cuil" json:"cuil"`
	MemberCode       string     `db:"numero_afiliado" json:"member_code"`
	GroupCode        string     `db:"grupo_familiar_codigo" json:"group_code"`
	RelationshipID   int        `db:"parentesco_id" json:"relationship_id"`
	RelationshipName string     `db:"-" json:"relationship_name,omitempty"`
	CategoryID       *int       `db:"categoria_id" json:"category_id,omitempty"`
	CategoryName     string     `db:"-" json:"category_name,omitempty"`
	Sex              string     `db:"sexo" json:"sex"`
	BirthDate        *time.Time `db:"fechaNacimiento" json:"birth_date,omitempty"`
	Studying         bool       `db:"estudios" json:"studying"`
	HasDisability    bool       `db:"discapacidad" json:"has_disability"`
	LastPaymentDate  *time.Time `db:"fecha_ultimo_pago_cuota" json:"last_payment_date,omitempty"`
	MaternityFrom    *time.Time `db:"plan_materno_desde" json:"maternity_from,omitempty"`
	MaternityTo      *time.Time `db:"plan_materno_hasta" json:"maternity_to,omitempty"`
	Phone            *string    `db:"telefono" json:"phone,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Address          *string    `db:"domicilio" json:"address,omitempty"`
	Active           bool       `db:"activo" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsHolder reports whether the member heads its family group.
func (m *Member) IsHolder() bool {
	code, err := ParseMemberCode(m.MemberCode)
	return err == nil && code.IsHolder()
}

// DisabilityLevel distinguishes temporary certificates, which always expire,
// from permanent ones.
type DisabilityLevel string

const (
	LevelTemporary DisabilityLevel = "temporary"
	LevelPermanent DisabilityLevel = "permanent"
)

func (l DisabilityLevel) Valid() bool {
	return l == LevelTemporary || l == LevelPermanent
}

// DisabilityCertificate maps to the cud table. Seq orders certificates by
// insertion; the highest Seq is the current certificate.
type DisabilityCertificate struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	Seq            int64           `db:"seq" json:"-"`
	MemberID       uuid.UUID       `db:"afiliado_id" json:"member_id"`
	Level          DisabilityLevel `db:"nivel" json:"level"`
	EmissionDate   time.Time       `db:"fecha_emision" json:"emission_date"`
	ExpirationDate *time.Time      `db:"fecha_vencimiento" json:"expiration_date,omitempty"`
	NoExpiration   bool            `db:"sin_vencimiento" json:"no_expiration"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

func (c *DisabilityCertificate) facts() eligibility.Certificate {
	return eligibility.Certificate{ExpirationDate: c.ExpirationDate, NoExpiration: c.NoExpiration}
}

// Attachment maps to the adjuntos table.
type Attachment struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	MemberID    uuid.UUID   `db:"afiliado_id" json:"member_id"`
	Kind        assets.Kind `db:"tipo" json:"kind"`
	FileName    string      `db:"nombre_archivo" json:"file_name"`
	ContentType string      `db:"content_type" json:"content_type"`
	URL         string      `db:"url" json:"url"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// MemberView is a member as returned by reads: the stored row plus the
// alerts computed for the current date. Alerts are never persisted.
type MemberView struct {
	*Member
	Age               *int                   `json:"age"`
	Alerts            []eligibility.Alert    `json:"alerts"`
	LatestCertificate *DisabilityCertificate `json:"latest_certificate,omitempty"`
}

// newView evaluates the member's alerts as of asOf. latest may be nil.
func newView(m *Member, latest *DisabilityCertificate, asOf time.Time) *MemberView {
	f := eligibility.Facts{
		CategoryName:    m.CategoryName,
		Relationship:    eligibility.ParseRelationship(m.RelationshipName),
		BirthDate:       m.BirthDate,
		Studying:        m.Studying,
		LastPaymentDate: m.LastPaymentDate,
	}
	if latest != nil {
		f.Certificates = []eligibility.Certificate{latest.facts()}
	}

	alerts := eligibility.Evaluate(f, asOf)
	if alerts == nil {
		alerts = []eligibility.Alert{}
	}
	return &MemberView{
		Member:            m,
		Age:               eligibility.AgeInYears(m.BirthDate, asOf),
		Alerts:            alerts,
		LatestCertificate: latest,
	}
}

// Filter narrows a member listing. Zero values are ignored.
type Filter struct {
	DNI        string `json:"dni,omitempty"`
	CUIL       string `json:"cuil,omitempty"`
	MemberCode string `json:"member_code,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	GroupCode  string `json:"group_code,omitempty"`
	CategoryID *int   `json:"category_id,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

// params flattens the filter into the names used by memberFilters.
func (f Filter) params() map[string]string {
	p := map[string]string{
		"dni":                   f.DNI,
		"cuil":                  f.CUIL,
		"numero_afiliado":       f.MemberCode,
		"apellido":              f.LastName,
		"grupo_familiar_codigo": f.GroupCode,
	}
	if f.CategoryID != nil {
		p["categoria_id"] = strconv.Itoa(*f.CategoryID)
	}
	if f.Active != nil {
		p["activo"] = strconv.FormatBool(*f.Active)
	}
	return p
}
