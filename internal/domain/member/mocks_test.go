package member

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/catalog"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/eligibility"
)

var testNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// -- Mock member repository --

type mockMemberRepo struct {
	mu          sync.Mutex
	members     map[uuid.UUID]*Member
	certs       []*DisabilityCertificate
	attachments []*Attachment
	seq         int64
	creates     int
	existsErr   error
	searchErr   error
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[uuid.UUID]*Member)}
}

func (r *mockMemberRepo) put(m *Member) *Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if code, err := ParseMemberCode(m.MemberCode); err == nil && m.GroupCode == "" {
		m.GroupCode = code.Group
	}
	cp := *m
	r.members[m.ID] = &cp
	return m
}

func (r *mockMemberRepo) Create(_ context.Context, m *Member) error {
	r.mu.Lock()
	for _, existing := range r.members {
		if existing.DNI == m.DNI || existing.CUIL == m.CUIL || existing.MemberCode == m.MemberCode {
			r.mu.Unlock()
			return ErrDuplicate
		}
	}
	r.creates++
	r.mu.Unlock()
	m.CreatedAt = testNow
	m.UpdatedAt = testNow
	r.put(m)
	return nil
}

func (r *mockMemberRepo) GetByID(_ context.Context, id uuid.UUID) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *mockMemberRepo) Update(_ context.Context, m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	r.members[m.ID] = &cp
	return nil
}

func (r *mockMemberRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return ErrNotFound
	}
	m.Active = active
	return nil
}

func (r *mockMemberRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return ErrNotFound
	}
	delete(r.members, id)
	return nil
}

func (r *mockMemberRepo) matches(m *Member, f Filter) bool {
	switch {
	case f.DNI != "" && m.DNI != f.DNI:
		return false
	case f.CUIL != "" && m.CUIL != f.CUIL:
		return false
	case f.MemberCode != "" && m.MemberCode != f.MemberCode:
		return false
	case f.GroupCode != "" && m.GroupCode != f.GroupCode:
		return false
	case f.LastName != "" && !strings.HasPrefix(strings.ToLower(m.LastName), strings.ToLower(f.LastName)):
		return false
	case f.CategoryID != nil && (m.CategoryID == nil || *m.CategoryID != *f.CategoryID):
		return false
	case f.Active != nil && m.Active != *f.Active:
		return false
	}
	return true
}

func (r *mockMemberRepo) sorted(f Filter) []*Member {
	var out []*Member
	for _, m := range r.members {
		if r.matches(m, f) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].MemberCode < out[j].MemberCode
	})
	return out
}

func (r *mockMemberRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Member, int, error) {
	if r.searchErr != nil {
		return nil, 0, r.searchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(f)
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *mockMemberRepo) ListByGroup(_ context.Context, groupCode string) ([]*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.sorted(Filter{GroupCode: groupCode})
	sort.Slice(items, func(i, j int) bool { return items[i].MemberCode < items[j].MemberCode })
	return items, nil
}

func (r *mockMemberRepo) exists(match func(*Member) bool) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if match(m) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockMemberRepo) ExistsByDNI(_ context.Context, dni string) (bool, error) {
	return r.exists(func(m *Member) bool { return m.DNI == dni })
}

func (r *mockMemberRepo) ExistsByMemberCode(_ context.Context, code string) (bool, error) {
	return r.exists(func(m *Member) bool { return m.MemberCode == code })
}

func (r *mockMemberRepo) ExistsByCUIL(_ context.Context, cuil string) (bool, error) {
	return r.exists(func(m *Member) bool { return m.CUIL == cuil })
}

func (r *mockMemberRepo) AddCertificate(_ context.Context, c *DisabilityCertificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.seq++
	c.Seq = r.seq
	c.CreatedAt = testNow
	cp := *c
	r.certs = append(r.certs, &cp)
	return nil
}

func (r *mockMemberRepo) ListCertificates(_ context.Context, memberID uuid.UUID) ([]*DisabilityCertificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*DisabilityCertificate
	for _, c := range r.certs {
		if c.MemberID == memberID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *mockMemberRepo) LatestCertificates(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*DisabilityCertificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[uuid.UUID]*DisabilityCertificate)
	for _, c := range r.certs {
		if !want[c.MemberID] {
			continue
		}
		if cur, ok := out[c.MemberID]; !ok || c.Seq > cur.Seq {
			out[c.MemberID] = c
		}
	}
	return out, nil
}

func (r *mockMemberRepo) AddAttachment(_ context.Context, a *Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = testNow
	r.attachments = append(r.attachments, a)
	return nil
}

func (r *mockMemberRepo) ListAttachments(_ context.Context, memberID uuid.UUID) ([]*Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Attachment
	for _, a := range r.attachments {
		if a.MemberID == memberID {
			out = append(out, a)
		}
	}
	return out, nil
}

// -- Mock catalog --

const (
	relHolder   = 1
	relSpouse   = 2
	relChild    = 4
	relGuardian = 5

	catMandatory = 1
	catRetiree   = 3
	catMaternity = 5
)

type mockLookup struct {
	categories    map[int]*catalog.Category
	relationships map[int]*catalog.Relationship
	err           error
}

func newMockLookup() *mockLookup {
	rel := func(id int, name string) *catalog.Relationship {
		return &catalog.Relationship{ID: id, Name: name, Kind: eligibility.ParseRelationship(name)}
	}
	return &mockLookup{
		categories: map[int]*catalog.Category{
			catMandatory: {ID: catMandatory, Name: "Obligatorio", Active: true},
			catRetiree:   {ID: catRetiree, Name: "Jubilado", Active: true},
			catMaternity: {ID: catMaternity, Name: "Plan Materno", Active: true},
		},
		relationships: map[int]*catalog.Relationship{
			relHolder:   rel(relHolder, "Titular"),
			relSpouse:   rel(relSpouse, "Cónyuge"),
			relChild:    rel(relChild, "Hijo/a"),
			relGuardian: rel(relGuardian, "Menor bajo guarda"),
		},
	}
}

func (l *mockLookup) Category(_ context.Context, id int) (*catalog.Category, error) {
	if l.err != nil {
		return nil, l.err
	}
	c, ok := l.categories[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return c, nil
}

func (l *mockLookup) Relationship(_ context.Context, id int) (*catalog.Relationship, error) {
	if l.err != nil {
		return nil, l.err
	}
	r, ok := l.relationships[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return r, nil
}

var errRemote = errors.New("connection reset")
