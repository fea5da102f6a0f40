package engine

import (
	"github.com/TFMV/schelling/models"
)

// utilityAt is the fraction of neighbors of site i holding state s
func (e *Engine) utilityAt(i int, s models.State) float64 {
	adj := e.lattice.NeighborIndices(i)
	same := 0
	for _, j := range adj {
		if e.states[j] == s {
			same++
		}
	}
	return float64(same) / float64(len(adj))
}

// Utility returns the fraction of node's neighbors sharing its state.
// The value is computed for empty nodes too but carries no meaning there.
func (e *Engine) Utility(node models.Node) float64 {
	i := e.lattice.Index(node)
	return e.utilityAt(i, e.states[i])
}

// PotentialUtility returns the utility node would have if it held state.
// Nothing is mutated.
func (e *Engine) PotentialUtility(node models.Node, state models.State) float64 {
	return e.utilityAt(e.lattice.Index(node), state)
}

// MeanUtility averages Utility over the occupied nodes. It returns
// ErrEmptyPopulation when no node is occupied.
func (e *Engine) MeanUtility() (float64, error) {
	if e.occupied.len() == 0 {
		return 0, ErrEmptyPopulation
	}
	sum := 0.0
	for _, i := range e.occupied.items {
		sum += e.utilityAt(i, e.states[i])
	}
	return sum / float64(e.occupied.len()), nil
}

func (e *Engine) unsatisfied() []int {
	var result []int
	for _, i := range e.occupied.items {
		if e.utilityAt(i, e.states[i]) < e.threshold {
			result = append(result, i)
		}
	}
	return result
}

// UnsatisfiedNodes lists the occupied nodes whose utility is below threshold
func (e *Engine) UnsatisfiedNodes() []models.Node {
	idx := e.unsatisfied()
	result := make([]models.Node, len(idx))
	for k, i := range idx {
		result[k] = e.lattice.NodeAt(i)
	}
	return result
}

// UnsatisfiedCount returns len(UnsatisfiedNodes()) without building the list
func (e *Engine) UnsatisfiedCount() int {
	count := 0
	for _, i := range e.occupied.items {
		if e.utilityAt(i, e.states[i]) < e.threshold {
			count++
		}
	}
	return count
}

// SurfaceLength counts unordered neighbor pairs whose states differ, with
// Empty treated as a state of its own.
func (e *Engine) SurfaceLength() int {
	ordered := 0
	for i, s := range e.states {
		for _, j := range e.lattice.NeighborIndices(i) {
			if e.states[j] != s {
				ordered++
			}
		}
	}
	// every edge was seen from both ends
	return ordered / 2
}

// Report bundles the aggregate diagnostics of the current state
func (e *Engine) Report() models.Metrics {
	m := models.Metrics{
		RunID:       e.params.RunID,
		Counts:      e.NumberOfStates(),
		Unsatisfied: e.UnsatisfiedCount(),
		Surface:     e.SurfaceLength(),
	}
	if mean, err := e.MeanUtility(); err == nil {
		m.MeanUtility = mean
		m.Populated = true
	}
	return m
}
