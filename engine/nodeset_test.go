package engine

import (
	"testing"

	"github.com/TFMV/schelling/models"
	"github.com/stretchr/testify/assert"
)

func TestNodeSet(t *testing.T) {
	s := newNodeSet(6)
	for _, i := range []int{4, 1, 3, 1} {
		s.add(i)
	}
	assert.Equal(t, 3, s.len())
	assert.Equal(t, []int{4, 1, 3}, s.items)
	assert.True(t, s.contains(1))
	assert.False(t, s.contains(0))

	s.remove(4)
	assert.Equal(t, []int{3, 1}, s.items)
	assert.False(t, s.contains(4))
	assert.Equal(t, 3, s.at(0))

	s.remove(4)
	assert.Equal(t, 2, s.len())

	s.remove(1)
	s.remove(3)
	assert.Zero(t, s.len())
	for i := range s.pos {
		assert.Equal(t, -1, s.pos[i])
	}
}

func TestMoveKeepsPartition(t *testing.T) {
	e := &Engine{}
	e.occupied = newNodeSet(4)
	e.free = newNodeSet(4)
	e.states = make([]models.State, 4)
	e.states[0] = models.Positive
	e.occupied.add(0)
	for i := 1; i < 4; i++ {
		e.free.add(i)
	}

	e.move(0, 2)
	assert.Equal(t, models.Empty, e.states[0])
	assert.Equal(t, models.Positive, e.states[2])
	assert.True(t, e.occupied.contains(2))
	assert.False(t, e.occupied.contains(0))
	assert.True(t, e.free.contains(0))
	assert.False(t, e.free.contains(2))
	assert.Equal(t, 1, e.occupied.len())
	assert.Equal(t, 3, e.free.len())
}
