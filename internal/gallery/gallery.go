// Package gallery keeps generated images and the generation history in
// memory for the lifetime of the process. Nothing here is durable; it is
// session state, same as the chat caches.
package gallery

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/museworks/muse/internal/imagegen"
)

const (
	// MaxEntries caps how many generations are remembered.
	MaxEntries = 100
	// MaxImageSize caps a single stored image at 10MB.
	MaxImageSize = 10 * 1024 * 1024
)

var (
	ErrNotFound      = errors.New("image not found")
	ErrImageTooLarge = errors.New("image exceeds maximum size")
)

// Entry is one generation: the prompt, the style, and the ids of the images
// it produced.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	ImageIDs  []string  `json:"image_ids"`
	CreatedAt time.Time `json:"created_at"`
}

type storedImage struct {
	data     []byte
	mimeType string
}

// Store is a mutex-guarded in-memory image store keyed by uuid.
type Store struct {
	mu      sync.RWMutex
	images  map[string]storedImage
	history []Entry
}

func NewStore() *Store {
	return &Store{images: make(map[string]storedImage)}
}

// Add records one generation. When the history cap is hit the oldest entry
// and its images are dropped synchronously; there is no background cleanup.
func (s *Store) Add(prompt, style string, images []imagegen.Image) (Entry, error) {
	for _, img := range images {
		if len(img.Data) > MaxImageSize {
			return Entry{}, ErrImageTooLarge
		}
	}

	entry := Entry{
		Prompt:    prompt,
		Style:     style,
		ImageIDs:  make([]string, 0, len(images)),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range images {
		id := uuid.New().String()
		s.images[id] = storedImage{data: img.Data, mimeType: img.MIMEType}
		entry.ImageIDs = append(entry.ImageIDs, id)
	}
	s.history = append(s.history, entry)

	for len(s.history) > MaxEntries {
		for _, id := range s.history[0].ImageIDs {
			delete(s.images, id)
		}
		s.history = s.history[1:]
	}
	return entry, nil
}

// Get returns a copy of the image bytes and their MIME type.
func (s *Store) Get(id string) ([]byte, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	data := make([]byte, len(img.data))
	copy(data, img.data)
	return data, img.mimeType, nil
}

// History returns generation entries, newest first.
func (s *Store) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Count returns the number of stored images.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
