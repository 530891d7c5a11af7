package dashboard

import (
	"sync/atomic"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// Store holds the current snapshot. Replace swaps the whole record set;
// readers always see one complete snapshot, never a mix of two refreshes.
type Store struct {
	current atomic.Pointer[model.Snapshot]
	version atomic.Uint64
}

// NewStore returns a Store holding snap.
func NewStore(snap model.Snapshot) *Store {
	s := &Store{}
	s.Replace(snap)
	return s
}

// Replace installs snap and bumps the version.
func (s *Store) Replace(snap model.Snapshot) {
	c := snap.Clone()
	s.current.Store(&c)
	s.version.Add(1)
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() model.Snapshot {
	p := s.current.Load()
	if p == nil {
		return model.Normalize(model.RawSnapshot{})
	}
	return p.Clone()
}

// Version increases by one on every Replace.
func (s *Store) Version() uint64 {
	return s.version.Load()
}
