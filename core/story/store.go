package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storyforge-dev/storyforge/core/blueprint"
)

// ErrNotFound is returned when a story id has no stored record.
var ErrNotFound = errors.New("story not found")

// Record is one persisted story: its blueprint plus the prose and images
// generated so far. Content and Images are keyed by chapter index rendered
// as a string, matching what the frontend stores.
type Record struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	Genre      string               `json:"genre,omitempty"`
	Tone       string               `json:"tone,omitempty"`
	SequelOfID string               `json:"sequelOfId,omitempty"`
	Config     map[string]any       `json:"config,omitempty"`
	Blueprint  *blueprint.Blueprint `json:"blueprint,omitempty"`
	Content    map[string]string    `json:"content,omitempty"`
	Images     map[string]string    `json:"images,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// Summary is the listing view of a Record, without the heavy fields.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Genre      string    `json:"genre,omitempty"`
	Tone       string    `json:"tone,omitempty"`
	SequelOfID string    `json:"sequelOfId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists stories as one JSON file per story under a data directory.
// Safe for concurrent use within a single process.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID rejects ids that could escape the data directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}

// Save upserts a record. A missing ID is assigned a fresh UUID; timestamps
// are maintained here. The stored record is returned.
func (s *Store) Save(rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
	} else {
		if !validID(rec.ID) {
			return nil, fmt.Errorf("invalid story id %q", rec.ID)
		}
		if existing, err := s.read(rec.ID); err == nil {
			rec.CreatedAt = existing.CreatedAt
		} else if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding story %s: %w", rec.ID, err)
	}
	tmp := s.path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing story %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp, s.path(rec.ID)); err != nil {
		return nil, fmt.Errorf("committing story %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func (s *Store) read(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading story %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding story %s: %w", id, err)
	}
	return &rec, nil
}

// Get returns the full record for id, or [ErrNotFound].
func (s *Store) Get(id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns summaries of every stored story, most recently updated first.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing store directory: %w", err)
	}

	var out []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// A corrupt file should not hide every other story.
			continue
		}
		out = append(out, Summary{
			ID:         rec.ID,
			Title:      rec.Title,
			Genre:      rec.Genre,
			Tone:       rec.Tone,
			SequelOfID: rec.SequelOfID,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the story with the given id, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting story %s: %w", id, err)
	}
	return true, nil
}
