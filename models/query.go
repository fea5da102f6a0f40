package models

// NodeFilter is a function that filters sites by coordinate and state
type NodeFilter func(node Node, state State) bool

// Filter returns the nodes matching the filter in row-major order
func (s *Snapshot) Filter(filter NodeFilter) []Node {
	var result []Node
	for i, st := range s.States {
		node := Node{Row: i / s.Size, Col: i % s.Size}
		if filter(node, st) {
			result = append(result, node)
		}
	}
	return result
}

// NodesWithState returns every node currently holding state
func (s *Snapshot) NodesWithState(state State) []Node {
	return s.Filter(func(_ Node, st State) bool {
		return st == state
	})
}

// Rows returns the snapshot as a row-major matrix
func (s *Snapshot) Rows() [][]State {
	rows := make([][]State, s.Size)
	for r := range rows {
		rows[r] = s.States[r*s.Size : (r+1)*s.Size]
	}
	return rows
}
