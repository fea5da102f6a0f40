package engine

// nodeSet is an insertion-ordered set of flat node indices with O(1)
// membership, insertion and removal. Removal swaps the last element into
// the hole, so iteration order depends only on the sequence of operations.
type nodeSet struct {
	items []int
	pos   []int // index -> position in items, -1 when absent
}

func newNodeSet(capacity int) nodeSet {
	pos := make([]int, capacity)
	for i := range pos {
		pos[i] = -1
	}
	return nodeSet{items: make([]int, 0, capacity), pos: pos}
}

func (s *nodeSet) len() int { return len(s.items) }

func (s *nodeSet) at(k int) int { return s.items[k] }

func (s *nodeSet) contains(i int) bool { return s.pos[i] >= 0 }

func (s *nodeSet) add(i int) {
	if s.pos[i] >= 0 {
		return
	}
	s.pos[i] = len(s.items)
	s.items = append(s.items, i)
}

func (s *nodeSet) remove(i int) {
	k := s.pos[i]
	if k < 0 {
		return
	}
	last := s.items[len(s.items)-1]
	s.items[k] = last
	s.pos[last] = k
	s.items = s.items[:len(s.items)-1]
	s.pos[i] = -1
}
