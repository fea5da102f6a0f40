// Package lattice builds the periodic square grid the agents live on.
package lattice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TFMV/schelling/models"
)

var (
	ErrInvalidSize         = errors.New("lattice size must be at least 1")
	ErrUnknownNeighborhood = errors.New("unknown neighborhood")
)

// Neighborhood selects the adjacency rule of the lattice
type Neighborhood int

const (
	VonNeumann Neighborhood = iota // 4 orthogonal neighbors
	Moore                          // orthogonal plus diagonals, 8 neighbors
)

// String returns the canonical name of the neighborhood
func (n Neighborhood) String() string {
	switch n {
	case VonNeumann:
		return "vonneumann"
	case Moore:
		return "moore"
	default:
		return fmt.Sprintf("Neighborhood(%d)", int(n))
	}
}

// Degree is the number of neighbors every node has under n
func (n Neighborhood) Degree() int {
	if n == Moore {
		return 8
	}
	return 4
}

// ParseNeighborhood maps a name to a Neighborhood.
// "nearest" is accepted as an alias of von Neumann.
func ParseNeighborhood(name string) (Neighborhood, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vonneumann", "von-neumann", "von_neumann", "nearest", "":
		return VonNeumann, nil
	case "moore":
		return Moore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownNeighborhood, name)
	}
}

// offsets lists the (drow, dcol) steps to each neighbor. The two diagonals
// of the Moore set are (+1,+1) and (+1,-1); their mirror images arrive
// through symmetry of the edge set.
var offsets = map[Neighborhood][][2]int{
	VonNeumann: {{-1, 0}, {1, 0}, {0, -1}, {0, 1}},
	Moore:      {{-1, 0}, {1, 0}, {0, -1}, {0, 1}, {1, 1}, {1, -1}, {-1, -1}, {-1, 1}},
}

// Lattice is an immutable toroidal size x size grid
type Lattice struct {
	size      int
	mode      Neighborhood
	neighbors [][]int // flat index -> flat indices of neighbors
}

// New creates the toroidal lattice of the given size and neighborhood
func New(size int, mode Neighborhood) (*Lattice, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}
	steps, ok := offsets[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNeighborhood, int(mode))
	}

	n := size * size
	l := &Lattice{
		size:      size,
		mode:      mode,
		neighbors: make([][]int, n),
	}

	// Small lattices wrap onto themselves, so a neighbor may repeat and a
	// node may neighbor itself. Repeats are kept: every node keeps the full
	// degree and sums over neighbors stay symmetric.
	for i := 0; i < n; i++ {
		row, col := i/size, i%size
		adj := make([]int, 0, len(steps))
		for _, d := range steps {
			adj = append(adj, l.wrap(row+d[0], col+d[1]))
		}
		l.neighbors[i] = adj
	}
	return l, nil
}

func (l *Lattice) wrap(row, col int) int {
	row = ((row % l.size) + l.size) % l.size
	col = ((col % l.size) + l.size) % l.size
	return row*l.size + col
}

// Size returns the linear size L
func (l *Lattice) Size() int { return l.size }

// Len returns the number of nodes, L*L
func (l *Lattice) Len() int { return l.size * l.size }

// Neighborhood returns the adjacency rule the lattice was built with
func (l *Lattice) Neighborhood() Neighborhood { return l.mode }

// Index returns the flat row-major index of a node, wrapping its coordinates
func (l *Lattice) Index(node models.Node) int {
	return l.wrap(node.Row, node.Col)
}

// NodeAt returns the node stored at a flat index
func (l *Lattice) NodeAt(i int) models.Node {
	return models.Node{Row: i / l.size, Col: i % l.size}
}

// Contains reports whether node lies inside [0,L) x [0,L)
func (l *Lattice) Contains(node models.Node) bool {
	return node.Row >= 0 && node.Row < l.size && node.Col >= 0 && node.Col < l.size
}

// Nodes returns every node in row-major order
func (l *Lattice) Nodes() []models.Node {
	nodes := make([]models.Node, l.Len())
	for i := range nodes {
		nodes[i] = l.NodeAt(i)
	}
	return nodes
}

// Neighbors returns the neighbors of node
func (l *Lattice) Neighbors(node models.Node) []models.Node {
	adj := l.neighbors[l.Index(node)]
	result := make([]models.Node, len(adj))
	for k, j := range adj {
		result[k] = l.NodeAt(j)
	}
	return result
}

// NeighborIndices returns the flat indices adjacent to flat index i.
// The returned slice is shared and must not be modified.
func (l *Lattice) NeighborIndices(i int) []int {
	return l.neighbors[i]
}

// Degree returns the number of neighbors of node; it is the same everywhere
func (l *Lattice) Degree(node models.Node) int {
	return len(l.neighbors[l.Index(node)])
}
