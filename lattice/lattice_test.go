package lattice_test

import (
	"errors"
	"testing"

	"github.com/TFMV/schelling/lattice"
	"github.com/TFMV/schelling/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -10} {
		_, err := lattice.New(size, lattice.VonNeumann)
		require.Error(t, err)
		assert.True(t, errors.Is(err, lattice.ErrInvalidSize), "size %d", size)
	}
}

func TestNew_UnknownNeighborhood(t *testing.T) {
	_, err := lattice.New(4, lattice.Neighborhood(7))
	require.Error(t, err)
	assert.ErrorIs(t, err, lattice.ErrUnknownNeighborhood)
}

func TestParseNeighborhood(t *testing.T) {
	tests := []struct {
		input string
		want  lattice.Neighborhood
	}{
		{"moore", lattice.Moore},
		{"Moore", lattice.Moore},
		{"vonneumann", lattice.VonNeumann},
		{"von-neumann", lattice.VonNeumann},
		{"nearest", lattice.VonNeumann},
		{"", lattice.VonNeumann},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := lattice.ParseNeighborhood(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := lattice.ParseNeighborhood("hexagonal")
	assert.ErrorIs(t, err, lattice.ErrUnknownNeighborhood)
}

func TestDegreeIsUniform(t *testing.T) {
	for _, mode := range []lattice.Neighborhood{lattice.VonNeumann, lattice.Moore} {
		for size := 1; size <= 7; size++ {
			l, err := lattice.New(size, mode)
			require.NoError(t, err)
			assert.Equal(t, size*size, l.Len())
			for _, node := range l.Nodes() {
				assert.Equal(t, mode.Degree(), l.Degree(node), "%s L=%d node %s", mode, size, node)
				assert.Len(t, l.Neighbors(node), mode.Degree())
			}
		}
	}
}

func TestNeighborsAreDistinctOnLargeLattices(t *testing.T) {
	for _, mode := range []lattice.Neighborhood{lattice.VonNeumann, lattice.Moore} {
		l, err := lattice.New(5, mode)
		require.NoError(t, err)
		for _, node := range l.Nodes() {
			seen := map[models.Node]bool{}
			for _, nb := range l.Neighbors(node) {
				assert.False(t, seen[nb], "%s: duplicate neighbor %s of %s", mode, nb, node)
				assert.NotEqual(t, node, nb)
				seen[nb] = true
			}
		}
	}
}

func TestAdjacencyIsSymmetric(t *testing.T) {
	for _, mode := range []lattice.Neighborhood{lattice.VonNeumann, lattice.Moore} {
		for _, size := range []int{1, 2, 3, 4, 6} {
			l, err := lattice.New(size, mode)
			require.NoError(t, err)

			// count(j in adj(i)) == count(i in adj(j)) as multisets
			counts := map[[2]int]int{}
			for i := 0; i < l.Len(); i++ {
				for _, j := range l.NeighborIndices(i) {
					counts[[2]int{i, j}]++
				}
			}
			for key, n := range counts {
				assert.Equal(t, n, counts[[2]int{key[1], key[0]}], "%s L=%d edge %v", mode, size, key)
			}
		}
	}
}

func TestWraparound(t *testing.T) {
	l, err := lattice.New(4, lattice.VonNeumann)
	require.NoError(t, err)

	assert.ElementsMatch(t, []models.Node{
		{Row: 3, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: 3}, {Row: 0, Col: 1},
	}, l.Neighbors(models.Node{Row: 0, Col: 0}))

	m, err := lattice.New(4, lattice.Moore)
	require.NoError(t, err)
	nbs := m.Neighbors(models.Node{Row: 3, Col: 3})
	assert.Contains(t, nbs, models.Node{Row: 0, Col: 0}) // (+1,+1)
	assert.Contains(t, nbs, models.Node{Row: 0, Col: 2}) // (+1,-1)
	assert.Contains(t, nbs, models.Node{Row: 2, Col: 2}) // (-1,-1)
	assert.Contains(t, nbs, models.Node{Row: 2, Col: 0}) // (-1,+1)
}

func TestSmallMooreLatticeRepeatsNeighbors(t *testing.T) {
	l, err := lattice.New(2, lattice.Moore)
	require.NoError(t, err)

	for _, node := range l.Nodes() {
		nbs := l.Neighbors(node)
		require.Len(t, nbs, 8)
		assert.Equal(t, 8, l.Degree(node))

		distinct := map[models.Node]bool{}
		for _, nb := range nbs {
			assert.True(t, l.Contains(nb))
			distinct[nb] = true
		}
		assert.Len(t, distinct, 3, "node %s", node)
		assert.False(t, distinct[node])
	}
}

func TestIndexRoundTrip(t *testing.T) {
	l, err := lattice.New(5, lattice.Moore)
	require.NoError(t, err)
	for i, node := range l.Nodes() {
		assert.Equal(t, i, l.Index(node))
		assert.Equal(t, node, l.NodeAt(i))
	}
	assert.Equal(t, l.Index(models.Node{Row: 0, Col: 0}), l.Index(models.Node{Row: 5, Col: -5}))
	assert.False(t, l.Contains(models.Node{Row: 5, Col: 0}))
}
