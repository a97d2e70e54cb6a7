package directory

// Store exposes the read-only resource directories.
type Store interface {
	CrisisLines() []CrisisLine
	Coping() Coping
	Therapy() Therapy
}

// MemoryStore serves the built-in directories.
type MemoryStore struct {
	crisis  []CrisisLine
	coping  Coping
	therapy Therapy
}

// NewMemoryStore returns a store seeded with the built-in directory data.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		crisis:  crisisLines(),
		coping:  coping(),
		therapy: therapy(),
	}
}

// CrisisLines returns the crisis hotline listing.
func (s *MemoryStore) CrisisLines() []CrisisLine {
	return append([]CrisisLine(nil), s.crisis...)
}

// Coping returns coping strategies, the safety plan and emergency guidance.
func (s *MemoryStore) Coping() Coping {
	return s.coping
}

// Therapy returns therapy platforms and provider types.
func (s *MemoryStore) Therapy() Therapy {
	return s.therapy
}
