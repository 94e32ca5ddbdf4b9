package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the durable track catalog. One Store owns the snapshot file and
// the id index; every mutation runs read snapshot → apply → persist → swap
// index inside a single critical section, so no reader ever observes a
// persisted change without the matching index update.
type Store struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	idx *index // nil while cold; rebuilt from disk on next read
}

// Open creates a Store over the snapshot file at path. The file does not
// need to exist yet; its directory is created. A nil logger disables logging.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	return &Store{path: path, log: log}, nil
}

// Create adds a track and returns the stored record. An empty id gets a
// generated one; a caller-supplied id that collides fails with ErrDuplicateID.
func (s *Store) Create(t Track) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(); err != nil {
		return Track{}, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, ok := s.idx.get(t.ID); ok {
		return Track{}, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}

	now := time.Now().UTC()
	t.Creado = now
	t.Actualizado = now
	t.normalize()
	if err := t.Validate(); err != nil {
		return Track{}, err
	}

	tracks := append(s.idx.snapshot(), t)
	if err := s.persistLocked(tracks); err != nil {
		return Track{}, err
	}

	s.log.Info("track created", zap.String("id", t.ID), zap.String("titulo", t.Titulo))
	return t.clone(), nil
}

// Get returns the track with the given id.
func (s *Store) Get(id string) (Track, error) {
	s.mu.RLock()
	if s.idx != nil {
		t, ok := s.idx.get(id)
		s.mu.RUnlock()
		if !ok {
			return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		return t, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(); err != nil {
		return Track{}, err
	}
	t, ok := s.idx.get(id)
	if !ok {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return t, nil
}

// List returns all tracks in snapshot order. The order is stable across
// reads as long as the catalog is unchanged.
func (s *Store) List() ([]Track, error) {
	s.mu.RLock()
	if s.idx != nil {
		out := s.idx.list()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(); err != nil {
		return nil, err
	}
	return s.idx.list(), nil
}

// Update applies the patch to the track with the given id and returns the
// updated record.
func (s *Store) Update(id string, p Patch) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(); err != nil {
		return Track{}, err
	}

	tracks := s.idx.snapshot()
	pos := -1
	for i := range tracks {
		if tracks[i].ID == id {
			pos = i
			break
		}
	}
	if pos == -1 {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}

	t := &tracks[pos]
	t.apply(p)
	t.Actualizado = time.Now().UTC()
	t.normalize()
	if err := t.Validate(); err != nil {
		return Track{}, err
	}

	if err := s.persistLocked(tracks); err != nil {
		return Track{}, err
	}

	s.log.Info("track updated", zap.String("id", id))
	return t.clone(), nil
}

// Delete removes the track with the given id, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(); err != nil {
		return false, err
	}

	tracks := s.idx.snapshot()
	kept := tracks[:0]
	for _, t := range tracks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tracks) {
		return false, nil
	}

	if err := s.persistLocked(kept); err != nil {
		return false, err
	}

	s.log.Info("track deleted", zap.String("id", id))
	return true, nil
}

// Invalidate drops the in-memory index; the next read rebuilds it from the
// snapshot file. Safe to call any number of times.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.idx = nil
	s.mu.Unlock()
}

// Close tears the store down, clearing the index. The snapshot file already
// holds every committed write, so there is nothing to flush.
func (s *Store) Close() error {
	s.Invalidate()
	return nil
}

// ensureLocked rebuilds the index from disk when cold. Caller holds mu.
func (s *Store) ensureLocked() error {
	if s.idx != nil {
		return nil
	}
	tracks, err := s.load()
	if err != nil {
		return err
	}
	s.idx = newIndex(tracks)
	return nil
}

// load reads and validates the snapshot file.
func (s *Store) load() ([]Track, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}

	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", s.path, err)
	}
	for i := range tracks {
		tracks[i].normalize()
		if err := tracks[i].Validate(); err != nil {
			return nil, fmt.Errorf("catalog %s record %d: %w", s.path, i, err)
		}
	}
	return tracks, nil
}

// persistLocked writes the snapshot with write-temp-then-rename semantics and
// swaps the index only after the rename commits. On failure both disk and
// index keep the pre-write snapshot. Caller holds mu.
func (s *Store) persistLocked(tracks []Track) error {
	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrStorageWrite, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrStorageWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp: %v", ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync temp: %v", ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp: %v", ErrStorageWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace snapshot: %v", ErrStorageWrite, err)
	}

	s.idx = newIndex(tracks)
	return nil
}
