// Package preview keeps uploaded images addressable by URL until released.
package preview

import (
	"context"
	"errors"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// ErrNotFound is returned for unknown or released preview ids.
var ErrNotFound = errors.New("preview not found")

// Store holds preview images. Every Put must be paired with a Release.
type Store interface {
	Put(ctx context.Context, img models.Image) (string, error)
	Get(ctx context.Context, id string) (*models.Image, error)
	Release(ctx context.Context, id string) error
}

// ContentType returns the sniffed MIME type of img, falling back to the
// declared type when the payload is not recognised.
func ContentType(img models.Image) string {
	if len(img.Data) > 0 {
		if mt := mimetype.Detect(img.Data); mt.String() != "application/octet-stream" {
			return mt.String()
		}
	}
	if img.ContentType != "" {
		return img.ContentType
	}
	return "application/octet-stream"
}

func newID() string {
	return uuid.NewString()
}

// MemoryStore keeps previews in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.Image
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]models.Image)}
}

func (s *MemoryStore) Put(_ context.Context, img models.Image) (string, error) {
	id := newID()
	img.ContentType = ContentType(img)

	s.mu.Lock()
	s.items[id] = img
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Image, error) {
	s.mu.RLock()
	img, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

// Release drops id. Releasing an unknown id is not an error.
func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Len reports how many previews are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
