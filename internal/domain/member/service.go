package member

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/catalog"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/assets"
)

// TxRunner runs fn in a transaction that repositories join through ctx.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo      MemberRepository
	validator *Validator
	catalog   CatalogLookup
	host      assets.Host
	sessions  SessionStore
	metrics   *Metrics
	logger    zerolog.Logger
	runInTx   TxRunner
	nowFn     func() time.Time
}

func NewService(repo MemberRepository, lookup CatalogLookup, host assets.Host, sessions SessionStore) *Service {
	s := &Service{
		repo:     repo,
		catalog:  lookup,
		host:     host,
		sessions: sessions,
		logger:   zerolog.Nop(),
		runInTx:  noTx,
		nowFn:    time.Now,
	}
	s.validator = NewValidator(repo, lookup)
	s.validator.nowFn = func() time.Time { return s.nowFn() }
	return s
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }
func (s *Service) SetMetrics(m *Metrics)      { s.metrics = m }
func (s *Service) SetTxRunner(tx TxRunner)    { s.runInTx = tx }

// CreateResult is a stored member plus the outcome of its attachment
// uploads. AttachmentsFailed lists the kinds that could not be uploaded;
// the member is kept regardless.
type CreateResult struct {
	Member            *MemberView   `json:"member"`
	Attachments       []*Attachment `json:"attachments"`
	AttachmentsFailed []string      `json:"attachments_failed"`
}

// CreateMember validates sub and inserts the member together with its first
// disability certificate. Attachments are uploaded afterwards.
func (s *Service) CreateMember(ctx context.Context, sub *Submission) (*CreateResult, error) {
	v, err := s.validator.Validate(ctx, sub)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			s.metrics.incRejection(ve.Rule)
			s.logger.Debug().Str("rule", ve.Rule).Str("dni", sub.DNI).Msg("member submission rejected")
			return nil, err
		}
		s.logger.Error().Err(err).Msg("member validation lookup failed")
		return nil, err
	}

	m := newMember(sub, v)
	var cert *DisabilityCertificate
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
		if !sub.HasDisability {
			return nil
		}
		cert = newCertificate(m.ID, sub.Certificate)
		return s.repo.AddCertificate(ctx, cert)
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicate) {
			s.logger.Error().Err(err).Msg("insert member failed")
		}
		return nil, err
	}
	s.metrics.incCreated()

	res := &CreateResult{
		Member:            newView(m, cert, s.nowFn()),
		Attachments:       []*Attachment{},
		AttachmentsFailed: []string{},
	}
	s.metrics.observeAlerts(res.Member.Alerts)

	uploads := []struct {
		kind assets.Kind
		file *Upload
	}{
		{assets.KindStudentProof, sub.StudentProof},
		{assets.KindDisabilityProof, sub.DisabilityProof},
	}
	for _, u := range uploads {
		if u.file == nil {
			continue
		}
		a, err := s.attach(ctx, m.ID, u.kind, u.file)
		if err != nil {
			s.metrics.incUploadFailure(string(u.kind))
			s.logger.Error().Err(err).
				Str("member_id", m.ID.String()).
				Str("kind", string(u.kind)).
				Msg("attachment upload failed")
			res.AttachmentsFailed = append(res.AttachmentsFailed, string(u.kind))
			continue
		}
		res.Attachments = append(res.Attachments, a)
	}
	return res, nil
}

func (s *Service) attach(ctx context.Context, memberID uuid.UUID, kind assets.Kind, f *Upload) (*Attachment, error) {
	if s.host == nil {
		return nil, errors.New("no asset host configured")
	}
	asset, err := s.host.Upload(ctx, assets.Asset{
		OwnerID:     memberID.String(),
		Kind:        kind,
		FileName:    f.FileName,
		ContentType: f.ContentType,
	}, f.Content)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}
	a := &Attachment{
		MemberID:    memberID,
		Kind:        kind,
		FileName:    asset.FileName,
		ContentType: asset.ContentType,
		URL:         asset.URL,
	}
	if err := s.repo.AddAttachment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func newMember(sub *Submission, v *Validated) *Member {
	m := &Member{
		FirstName:       strings.TrimSpace(sub.FirstName),
		LastName:        strings.TrimSpace(sub.LastName),
		DNI:             strings.TrimSpace(sub.DNI),
		CUIL:            strings.TrimSpace(sub.CUIL),
		MemberCode:      v.Code.String(),
		GroupCode:       v.Code.Group,
		RelationshipID:  v.Relationship.ID,
		Sex:             strings.TrimSpace(sub.Sex),
		BirthDate:       sub.BirthDate,
		Studying:        sub.Studying,
		HasDisability:   sub.HasDisability,
		LastPaymentDate: sub.LastPaymentDate,
		Phone:           optional(sub.Phone),
		Email:           optional(sub.Email),
		Address:         optional(sub.Address),
		Active:          true,
	}
	m.RelationshipName = v.Relationship.Name
	if v.Category != nil {
		id := v.Category.ID
		m.CategoryID = &id
		m.CategoryName = v.Category.Name
		if v.Category.IsMaternityPlan() {
			m.MaternityFrom = sub.MaternityFrom
			m.MaternityTo = sub.MaternityTo
		}
	}
	return m
}

func newCertificate(memberID uuid.UUID, in CertificateInput) *DisabilityCertificate {
	c := &DisabilityCertificate{
		MemberID:     memberID,
		Level:        in.Level,
		EmissionDate: *in.EmissionDate,
		NoExpiration: in.NoExpiration,
	}
	if !in.NoExpiration {
		c.ExpirationDate = in.ExpirationDate
	}
	return c
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// GetMember returns one member with its alerts.
func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*MemberView, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []*Member{m})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// SearchMembers returns a page of members matching f, each with its alerts,
// and the total number of matches. No match is an empty page.
func (s *Service) SearchMembers(ctx context.Context, f Filter, limit, offset int) ([]*MemberView, int, error) {
	start := time.Now()
	defer func() { s.metrics.observeSearch(time.Since(start)) }()

	items, total, err := s.repo.Search(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, items)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// ListGroup returns the family group with the holder first.
func (s *Service) ListGroup(ctx context.Context, groupCode string) ([]*MemberView, error) {
	items, err := s.repo.ListByGroup(ctx, strings.TrimSpace(groupCode))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].IsHolder() && !items[j].IsHolder()
	})
	return s.views(ctx, items)
}

// views evaluates alerts for items using each member's newest certificate.
func (s *Service) views(ctx context.Context, items []*Member) ([]*MemberView, error) {
	out := make([]*MemberView, 0, len(items))
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(items))
	for i, m := range items {
		ids[i] = m.ID
	}
	latest, err := s.repo.LatestCertificates(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	for _, m := range items {
		v := newView(m, latest[m.ID], now)
		s.metrics.observeAlerts(v.Alerts)
		out = append(out, v)
	}
	return out, nil
}

// BrowseResult is the page shown to a user together with their list state.
type BrowseResult struct {
	State ListState     `json:"state"`
	Items []*MemberView `json:"data"`
}

// Browse applies a (NewSearch, NextPage, PrevPage, or nil to reload) to the
// user's stored list state and returns the resulting page. A page emptied by
// deletions falls back to the last non-empty one.
func (s *Service) Browse(ctx context.Context, userID string, a Action) (*BrowseResult, error) {
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		if state, err = Dispatch(state, a); err != nil {
			return nil, err
		}
	}

	items, total, err := s.SearchMembers(ctx, state.Filter, state.Page.Limit, state.Page.Offset)
	if err != nil {
		return nil, err
	}
	loaded, _ := Dispatch(state, PageLoaded{Total: total})
	if loaded.Page.Offset != state.Page.Offset {
		if items, total, err = s.SearchMembers(ctx, loaded.Filter, loaded.Page.Limit, loaded.Page.Offset); err != nil {
			return nil, err
		}
		loaded.Total = total
	}

	if err := s.sessions.Save(ctx, userID, loaded); err != nil {
		return nil, err
	}
	return &BrowseResult{State: loaded, Items: items}, nil
}

func (s *Service) loadState(ctx context.Context, userID string) (ListState, error) {
	state, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return ListState{}, err
	}
	if state == nil {
		return NewListState(0), nil
	}
	return *state, nil
}

// BeginEdit opens id for inline editing by userID. Each user edits at most
// one member at a time.
func (s *Service) BeginEdit(ctx context.Context, userID string, id uuid.UUID) (*MemberView, error) {
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	v, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Dispatch(state, BeginEdit{ID: id})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, userID, next); err != nil {
		return nil, err
	}
	return v, nil
}

// CancelEdit discards userID's edit of id.
func (s *Service) CancelEdit(ctx context.Context, userID string, id uuid.UUID) error {
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	if !state.IsEditing(id) {
		return ErrNotEditing
	}
	next, err := Dispatch(state, CancelEdit{})
	if err != nil {
		return err
	}
	return s.sessions.Save(ctx, userID, next)
}

// Patch holds the fields changed by an inline edit. Nil fields are left
// untouched.
type Patch struct {
	FirstName       *string
	LastName        *string
	DNI             *string
	CUIL            *string
	MemberCode      *string
	RelationshipID  *int
	CategoryID      *int
	Sex             *string
	BirthDate       *time.Time
	Studying        *bool
	LastPaymentDate *time.Time
	MaternityFrom   *time.Time
	MaternityTo     *time.Time
	Phone           *string
	Email           *string
	Address         *string
}

// UpdateMember saves an inline edit. userID must hold the edit session for
// id; the session ends once the update is stored.
func (s *Service) UpdateMember(ctx context.Context, userID string, id uuid.UUID, p Patch) (*MemberView, error) {
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !state.IsEditing(id) {
		return nil, ErrNotEditing
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyPatch(ctx, m, p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	next, err := Dispatch(state, SaveEdit{ID: id})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, userID, next); err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []*Member{m})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) applyPatch(ctx context.Context, m *Member, p Patch) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&m.FirstName, p.FirstName)
	setString(&m.LastName, p.LastName)
	setString(&m.DNI, p.DNI)
	setString(&m.CUIL, p.CUIL)
	setString(&m.MemberCode, p.MemberCode)
	setString(&m.Sex, p.Sex)
	if p.Phone != nil {
		m.Phone = optional(*p.Phone)
	}
	if p.Email != nil {
		m.Email = optional(*p.Email)
	}
	if p.Address != nil {
		m.Address = optional(*p.Address)
	}
	if p.BirthDate != nil {
		m.BirthDate = p.BirthDate
	}
	if p.Studying != nil {
		m.Studying = *p.Studying
	}
	if p.LastPaymentDate != nil {
		m.LastPaymentDate = p.LastPaymentDate
	}
	if p.MaternityFrom != nil {
		m.MaternityFrom = p.MaternityFrom
	}
	if p.MaternityTo != nil {
		m.MaternityTo = p.MaternityTo
	}

	for _, f := range []struct{ label, value string }{
		{"first name", m.FirstName}, {"last name", m.LastName}, {"DNI", m.DNI}, {"sex", m.Sex},
	} {
		if f.value == "" {
			return invalid(RuleRequiredFields, "%s is required", f.label)
		}
	}
	if !ValidCUIL(m.CUIL) {
		return invalid(RuleCUILFormat, "CUIL must have the form NN-NNNNNNNN-N")
	}
	code, err := ParseMemberCode(m.MemberCode)
	if err != nil {
		return invalid(RuleMemberCodeFormat, "member code must have the form <prefix>-<group>/<suffix>, e.g. 19-00639-4/00")
	}
	m.MemberCode = code.String()
	m.GroupCode = code.Group

	if p.RelationshipID != nil {
		rel, err := s.catalog.Relationship(ctx, *p.RelationshipID)
		if errors.Is(err, catalog.ErrNotFound) {
			return invalid(RuleUnknownRelationship, "relationship %d does not exist", *p.RelationshipID)
		}
		if err != nil {
			return fmt.Errorf("resolve relationship: %w", err)
		}
		m.RelationshipID = rel.ID
		m.RelationshipName = rel.Name
	}
	if p.CategoryID != nil {
		cat, err := s.catalog.Category(ctx, *p.CategoryID)
		if errors.Is(err, catalog.ErrNotFound) {
			return invalid(RuleUnknownCategory, "category %d does not exist", *p.CategoryID)
		}
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}
		id := cat.ID
		m.CategoryID = &id
		m.CategoryName = cat.Name
	}
	return nil
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) DeleteMember(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ListCertificates returns the member's certificates in insertion order.
func (s *Service) ListCertificates(ctx context.Context, memberID uuid.UUID) ([]*DisabilityCertificate, error) {
	if _, err := s.repo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListCertificates(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*DisabilityCertificate{}
	}
	return out, nil
}

// AddCertificate appends a certificate, which becomes the one alerts read,
// and flags the member as having a disability.
func (s *Service) AddCertificate(ctx context.Context, memberID uuid.UUID, in CertificateInput) (*DisabilityCertificate, error) {
	if err := CheckCertificate(in); err != nil {
		return nil, err
	}
	cert := newCertificate(memberID, in)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, memberID)
		if err != nil {
			return err
		}
		if err := s.repo.AddCertificate(ctx, cert); err != nil {
			return err
		}
		if m.HasDisability {
			return nil
		}
		m.HasDisability = true
		return s.repo.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// ListAttachments returns the uploaded proofs of a member.
func (s *Service) ListAttachments(ctx context.Context, memberID uuid.UUID) ([]*Attachment, error) {
	if _, err := s.repo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListAttachments(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Attachment{}
	}
	return out, nil
}
