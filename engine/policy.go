package engine

import (
	"fmt"
	"strings"
)

// ConvergenceBudget is the number of utility-seeking attempts made per outer
// iteration of EvolveToConvergence.
const ConvergenceBudget = 1000

// Policy names accepted by GetPolicy
const (
	PolicyGreedy = "greedy"
	PolicySeek   = "seek"
)

// StepResult is the outcome of one relocation step
type StepResult struct {
	Policy   string `json:"policy"`
	Attempts int    `json:"attempts"` // candidates examined or attempts consumed
	Moves    int    `json:"moves"`
	Settled  bool   `json:"settled"` // no unsatisfied node was left to move
}

// Policy is a relocation rule that advances the simulation by one step
type Policy interface {
	Step(e *Engine) StepResult
	Name() string
}

// GreedyRandom moves every unsatisfied agent to a uniformly random free site
type GreedyRandom struct{}

// Name returns the policy name
func (GreedyRandom) Name() string { return PolicyGreedy }

// Step performs one EvolveOnce pass
func (GreedyRandom) Step(e *Engine) StepResult {
	return e.evolveOnce()
}

// UtilitySeeking relocates one agent per attempt onto a site that would
// satisfy it, making at most Budget attempts per step.
type UtilitySeeking struct {
	Budget int
}

// Name returns the policy name
func (UtilitySeeking) Name() string { return PolicySeek }

// Step performs Evolve(Budget)
func (p UtilitySeeking) Step(e *Engine) StepResult {
	return e.evolve(p.Budget)
}

// GetPolicy returns a relocation policy by name. budget applies to the
// utility-seeking policy; a non-positive budget selects ConvergenceBudget.
func GetPolicy(name string, budget int) (Policy, error) {
	if budget <= 0 {
		budget = ConvergenceBudget
	}
	switch strings.ToLower(name) {
	case PolicyGreedy, "random", "":
		return GreedyRandom{}, nil
	case PolicySeek, "utility":
		return UtilitySeeking{Budget: budget}, nil
	default:
		return nil, fmt.Errorf("unknown relocation policy: %s", name)
	}
}

// EvolveOnce makes one pass over the unsatisfied agents in random order,
// moving each one still unsatisfied when its turn comes to a uniformly random
// free site. It returns the number of moves; settled is true, and nothing
// changes, when no agent was unsatisfied. With no free site it returns 0.
func (e *Engine) EvolveOnce() (moves int, settled bool) {
	res := e.evolveOnce()
	return res.Moves, res.Settled
}

func (e *Engine) evolveOnce() StepResult {
	res := StepResult{Policy: PolicyGreedy}

	candidates := e.unsatisfied()
	if len(candidates) == 0 {
		res.Settled = true
		e.record(res)
		return res
	}
	if e.free.len() == 0 {
		e.record(res)
		return res
	}

	e.rng.Shuffle(len(candidates), func(a, b int) {
		candidates[a], candidates[b] = candidates[b], candidates[a]
	})

	// Earlier moves in the pass change neighborhoods, so each candidate
	// is checked again when its turn comes.
	for _, i := range candidates {
		s := e.states[i]
		res.Attempts++
		if !s.Occupied() || e.utilityAt(i, s) >= e.threshold {
			continue
		}
		dst := e.free.at(e.rng.IntN(e.free.len()))
		e.move(i, dst)
		res.Moves++
	}

	e.record(res)
	return res
}

// Evolve makes up to maxSteps utility-seeking attempts. Each attempt picks
// one unsatisfied agent at random and moves it to a random free site whose
// potential utility for the agent's state meets the threshold; when no such
// site exists the attempt is spent without moving. It stops early once every agent is satisfied and returns the
// number of moves made.
func (e *Engine) Evolve(maxSteps int) int {
	return e.evolve(maxSteps).Moves
}

func (e *Engine) evolve(maxSteps int) StepResult {
	res := StepResult{Policy: PolicySeek}
	targets := make([]int, 0, e.free.len())

	for res.Attempts < maxSteps {
		candidates := e.unsatisfied()
		if len(candidates) == 0 {
			res.Settled = true
			break
		}
		res.Attempts++

		i := candidates[e.rng.IntN(len(candidates))]
		s := e.states[i]

		// scored exactly as PotentialUtility, with the agent still in place
		targets = targets[:0]
		for _, f := range e.free.items {
			if e.utilityAt(f, s) >= e.threshold {
				targets = append(targets, f)
			}
		}
		if len(targets) == 0 {
			continue
		}
		e.move(i, targets[e.rng.IntN(len(targets))])
		res.Moves++
	}

	e.record(res)
	return res
}

// EvolveToConvergence repeats Evolve(ConvergenceBudget) until no agent is
// unsatisfied or maxOuterIterations rounds have run. It returns the total
// number of attempts consumed.
func (e *Engine) EvolveToConvergence(maxOuterIterations int) int {
	total := 0
	for round := 0; round < maxOuterIterations; round++ {
		res := e.evolve(ConvergenceBudget)
		total += res.Attempts
		e.logger.Debug("convergence round",
			"run_id", e.params.RunID,
			"round", round,
			"attempts", res.Attempts,
			"moves", res.Moves,
		)
		if res.Settled {
			break
		}
	}
	return total
}
