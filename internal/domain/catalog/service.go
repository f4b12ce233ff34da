package catalog

import (
	"context"
	"sync"
	"time"
)

// Service reads dictionaries through a short-lived in-process cache; the
// tables change only through administrative migrations.
type Service struct {
	repo  Repository
	ttl   time.Duration
	nowFn func() time.Time

	mu            sync.Mutex
	loadedAt      time.Time
	categories    map[int]*Category
	relationships map[int]*Relationship
}

func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl, nowFn: time.Now}
}

func (s *Service) ListCategories(ctx context.Context, onlyActive bool) ([]*Category, error) {
	return s.repo.ListCategories(ctx, onlyActive)
}

func (s *Service) ListRelationships(ctx context.Context) ([]*Relationship, error) {
	return s.repo.ListRelationships(ctx)
}

// Category resolves a category id. Unknown ids return ErrNotFound.
func (s *Service) Category(ctx context.Context, id int) (*Category, error) {
	if c := s.cachedCategory(id); c != nil {
		return c, nil
	}
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ensureFresh()
	s.categories[id] = c
	s.mu.Unlock()
	return c, nil
}

// Relationship resolves a relationship id. Unknown ids return ErrNotFound.
func (s *Service) Relationship(ctx context.Context, id int) (*Relationship, error) {
	if r := s.cachedRelationship(id); r != nil {
		return r, nil
	}
	r, err := s.repo.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ensureFresh()
	s.relationships[id] = r
	s.mu.Unlock()
	return r, nil
}

func (s *Service) cachedCategory(id int) *Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFresh()
	return s.categories[id]
}

func (s *Service) cachedRelationship(id int) *Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFresh()
	return s.relationships[id]
}

// ensureFresh drops the cache once ttl has elapsed. Caller holds mu.
func (s *Service) ensureFresh() {
	now := s.nowFn()
	if s.categories == nil || s.ttl <= 0 || now.Sub(s.loadedAt) > s.ttl {
		s.categories = make(map[int]*Category)
		s.relationships = make(map[int]*Relationship)
		s.loadedAt = now
	}
}
