package snapshot

import (
	"slices"
	"time"
)

// Version is the document format written by Save. Files carrying any other
// version are ignored by LoadLatest.
const Version = 1

// Entry is the persisted state of one movie or series.
type Entry struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Checksum   string `json:"checksum"`
	CategoryID int    `json:"category_id"`
	// Categories records every category the item was listed under.
	Categories   []int     `json:"categories,omitempty"`
	EpisodeCount int       `json:"episode_count,omitempty"`
	LastModified time.Time `json:"last_modified"`
	// Files lists the pointer files written for the item, relative to the
	// library root. Unchanged items re-register them as kept.
	Files []string `json:"files,omitempty"`
	// Folders lists the title folders, relative to the library root.
	Folders []string `json:"folders,omitempty"`
}

// Snapshot is the catalog state recorded at the end of a successful run.
type Snapshot struct {
	Version        int           `json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
	ProviderID     string        `json:"provider_id"`
	ConfigChecksum string        `json:"config_checksum"`
	Movies         map[int]Entry `json:"movies"`
	Series         map[int]Entry `json:"series"`
	Complete       bool          `json:"complete"`
}

// New returns an empty, incomplete snapshot ready to be filled.
func New(createdAt time.Time, providerID, configChecksum string) *Snapshot {
	return &Snapshot{
		Version:        Version,
		CreatedAt:      createdAt,
		ProviderID:     providerID,
		ConfigChecksum: configChecksum,
		Movies:         make(map[int]Entry),
		Series:         make(map[int]Entry),
	}
}

// Compatible reports whether s can serve as a diff base for a run against
// providerID with the given layout checksum.
func (s *Snapshot) Compatible(providerID, configChecksum string) bool {
	if s == nil || !s.Complete {
		return false
	}
	return s.ProviderID == providerID && s.ConfigChecksum == configChecksum
}

// MovieEntry returns the movie entry for id when present.
func (s *Snapshot) MovieEntry(id int) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.Movies[id]
	return e, ok
}

// SeriesEntry returns the series entry for id when present.
func (s *Snapshot) SeriesEntry(id int) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.Series[id]
	return e, ok
}

// Clone returns a deep copy of s stamped with createdAt.
func (s *Snapshot) Clone(createdAt time.Time) *Snapshot {
	out := New(createdAt, s.ProviderID, s.ConfigChecksum)
	out.Complete = s.Complete
	for id, e := range s.Movies {
		out.Movies[id] = e.clone()
	}
	for id, e := range s.Series {
		out.Series[id] = e.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	e.Categories = slices.Clone(e.Categories)
	e.Files = slices.Clone(e.Files)
	e.Folders = slices.Clone(e.Folders)
	return e
}
