package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var ErrNotLive = errors.New("resource handle is not live")

type Handle struct {
	ID          string
	URI         string
	ContentType string
	Size        int
}

type Store interface {
	Acquire(data []byte, contentType string) (Handle, error)
	Release(Handle) error
}

func newID() string {
	return "blob:" + uuid.NewString()
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type TempFileStore struct {
	dir   string
	mu    sync.Mutex
	files map[string]string
}

func NewTempFileStore(parent string) (*TempFileStore, error) {
	dir, err := os.MkdirTemp(parent, "kittenstudio-*")
	if err != nil {
		return nil, err
	}
	return &TempFileStore{dir: dir, files: map[string]string{}}, nil
}

func (s *TempFileStore) Dir() string { return s.dir }

func (s *TempFileStore) Acquire(data []byte, contentType string) (Handle, error) {
	id := newID()
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	path := filepath.Join(s.dir, id[len("blob:"):]+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return Handle{}, err
	}

	s.mu.Lock()
	s.files[id] = path
	s.mu.Unlock()
	return Handle{ID: id, URI: "file://" + path, ContentType: contentType, Size: len(data)}, nil
}

func (s *TempFileStore) Release(h Handle) error {
	s.mu.Lock()
	path, ok := s.files[h.ID]
	delete(s.files, h.ID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLive, h.ID)
	}
	return os.Remove(path)
}

func (s *TempFileStore) Close() error {
	return os.RemoveAll(s.dir)
}

type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (s *MemoryStore) Acquire(data []byte, contentType string) (Handle, error) {
	id := newID()
	s.mu.Lock()
	s.blobs[id] = append([]byte(nil), data...)
	s.mu.Unlock()
	return Handle{ID: id, URI: id, ContentType: contentType, Size: len(data)}, nil
}

func (s *MemoryStore) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[h.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLive, h.ID)
	}
	delete(s.blobs, h.ID)
	return nil
}

func (s *MemoryStore) Bytes(h Handle) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[h.ID]
	return b, ok
}
