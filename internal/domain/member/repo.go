package member

import (
	"context"

	"github.com/google/uuid"
)

type MemberRepository interface {
	UniquenessChecker

	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	Update(ctx context.Context, m *Member) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Member, int, error)
	// ListByGroup returns the family group ordered by member code.
	ListByGroup(ctx context.Context, groupCode string) ([]*Member, error)

	AddCertificate(ctx context.Context, c *DisabilityCertificate) error
	// ListCertificates returns a member's certificates in insertion order.
	ListCertificates(ctx context.Context, memberID uuid.UUID) ([]*DisabilityCertificate, error)
	// LatestCertificates returns the newest certificate of each member that
	// has one.
	LatestCertificates(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]*DisabilityCertificate, error)

	AddAttachment(ctx context.Context, a *Attachment) error
	ListAttachments(ctx context.Context, memberID uuid.UUID) ([]*Attachment, error)
}
