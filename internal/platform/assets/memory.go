package assets

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedAsset struct {
	meta    Asset
	content []byte
}

// MemoryHost keeps assets in process memory. Used in development and tests.
type MemoryHost struct {
	mu     sync.RWMutex
	assets map[string]*storedAsset
	nowFn  func() time.Time
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		assets: make(map[string]*storedAsset),
		nowFn:  time.Now,
	}
}

func (h *MemoryHost) Upload(_ context.Context, meta Asset, content io.Reader) (*Asset, error) {
	if err := ValidateMeta(meta); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	meta.ID = uuid.New().String()
	meta.ContentType = normalizeContentType(meta.ContentType)
	meta.Size = int64(len(data))
	meta.Hash = hash
	meta.URL = "memory://" + meta.ID
	meta.CreatedAt = h.nowFn().UTC()

	h.mu.Lock()
	h.assets[meta.ID] = &storedAsset{meta: meta, content: data}
	h.mu.Unlock()

	out := meta
	return &out, nil
}

// Get returns the metadata and content of an asset.
func (h *MemoryHost) Get(_ context.Context, id string) (*Asset, []byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.assets[id]
	if !ok {
		return nil, nil, ErrAssetNotFound
	}
	meta := s.meta
	content := make([]byte, len(s.content))
	copy(content, s.content)
	return &meta, content, nil
}

// ListByOwner returns an owner's assets, oldest first.
func (h *MemoryHost) ListByOwner(_ context.Context, ownerID string) []*Asset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Asset
	for _, s := range h.assets {
		if s.meta.OwnerID == ownerID {
			meta := s.meta
			out = append(out, &meta)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
