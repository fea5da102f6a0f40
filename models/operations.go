package models

import (
	"fmt"
)

// Snapshot is a read-only copy of every site's state, stored row-major.
// It carries enough to paint the lattice and nothing else.
type Snapshot struct {
	Size   int     `json:"size"`
	States []State `json:"states"`
}

// NewSnapshot creates an all-empty snapshot of a size x size lattice
func NewSnapshot(size int) *Snapshot {
	if size < 0 {
		size = 0
	}
	return &Snapshot{
		Size:   size,
		States: make([]State, size*size),
	}
}

// At returns the state at (row, col), wrapping both coordinates
func (s *Snapshot) At(row, col int) State {
	return s.States[s.index(row, col)]
}

// Set assigns the state at (row, col), wrapping both coordinates
func (s *Snapshot) Set(row, col int, state State) {
	s.States[s.index(row, col)] = state
}

func (s *Snapshot) index(row, col int) int {
	row = ((row % s.Size) + s.Size) % s.Size
	col = ((col % s.Size) + s.Size) % s.Size
	return row*s.Size + col
}

// Counts tallies the population of the snapshot
func (s *Snapshot) Counts() Counts {
	var c Counts
	for _, st := range s.States {
		c.Add(st)
	}
	return c
}

// Validate checks that the snapshot is square and holds only known states
func (s *Snapshot) Validate() error {
	if s.Size < 1 {
		return fmt.Errorf("snapshot size must be positive, got %d", s.Size)
	}
	if len(s.States) != s.Size*s.Size {
		return fmt.Errorf("snapshot holds %d states, want %d", len(s.States), s.Size*s.Size)
	}
	for i, st := range s.States {
		if st != Positive && st != Negative && st != Empty {
			return fmt.Errorf("site %d has unknown state %d", i, st)
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	states := make([]State, len(s.States))
	copy(states, s.States)
	return &Snapshot{Size: s.Size, States: states}
}

// Equal reports whether two snapshots hold the same lattice
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil || s.Size != other.Size || len(s.States) != len(other.States) {
		return false
	}
	for i := range s.States {
		if s.States[i] != other.States[i] {
			return false
		}
	}
	return true
}
