// Package engine runs the Schelling segregation model on a toroidal lattice.
//
// An Engine owns the state of every site, the partition of sites into
// occupied and free sets, and the random stream all stochastic choices draw
// from. It is not safe for concurrent use.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/TFMV/schelling/lattice"
	"github.com/TFMV/schelling/logging"
	"github.com/TFMV/schelling/models"
	"github.com/google/uuid"
)

// Recorder receives the outcome of every relocation step
type Recorder interface {
	RecordStep(res StepResult)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for construction and step events
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder attaches a step recorder, typically a metrics collector
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine is a running Schelling simulation
type Engine struct {
	params    models.Params
	lattice   *lattice.Lattice
	states    []models.State
	occupied  nodeSet
	free      nodeSet
	threshold float64
	rng       *rand.Rand
	logger    *slog.Logger
	recorder  Recorder
}

// NewRand returns the random stream used when a caller supplies only a seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// New creates an engine and draws the initial state of every site from rng.
// A nil rng is replaced by a stream seeded from p.Seed.
func New(p models.Params, rng *rand.Rand, opts ...Option) (*Engine, error) {
	mode, err := validate(p)
	if err != nil {
		return nil, err
	}
	lat, err := lattice.New(p.Size, mode)
	if err != nil {
		return nil, &ConfigError{Field: "size", Reason: "cannot build lattice", Value: p.Size, Err: err}
	}
	if rng == nil {
		rng = NewRand(p.Seed)
	}
	if p.RunID == "" {
		p.RunID = uuid.New().String()
	}

	states := make([]models.State, lat.Len())
	for i := range states {
		u := rng.Float64()
		switch {
		case u < p.FractionPos:
			states[i] = models.Positive
		case u < p.FractionPos+p.FractionNeg:
			states[i] = models.Negative
		default:
			states[i] = models.Empty
		}
	}

	e := newEngine(p, lat, states, rng, opts)
	e.logger.Info("engine created",
		"run_id", p.RunID,
		"size", p.Size,
		"neighborhood", mode.String(),
		"fraction_pos", p.FractionPos,
		"fraction_neg", p.FractionNeg,
		"fraction_empty", p.FractionEmpty(),
		"threshold", p.Threshold,
		"occupied", e.occupied.len(),
		"free", e.free.len(),
	)
	return e, nil
}

// NewFromSnapshot creates an engine over an explicit lattice state instead of
// a random draw. The fractions recorded in Params reflect the snapshot.
func NewFromSnapshot(snap *models.Snapshot, threshold float64, mode lattice.Neighborhood, rng *rand.Rand, opts ...Option) (*Engine, error) {
	if snap == nil {
		return nil, configError("snapshot", "must not be nil", nil)
	}
	if err := snap.Validate(); err != nil {
		return nil, &ConfigError{Field: "snapshot", Reason: err.Error(), Err: err}
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	lat, err := lattice.New(snap.Size, mode)
	if err != nil {
		return nil, &ConfigError{Field: "neighborhood", Reason: "cannot build lattice", Value: mode, Err: err}
	}
	if rng == nil {
		rng = NewRand(0)
	}

	counts := snap.Counts()
	n := float64(counts.Total())
	p := models.Params{
		RunID:        uuid.New().String(),
		Size:         snap.Size,
		FractionPos:  float64(counts.Positive) / n,
		FractionNeg:  float64(counts.Negative) / n,
		Threshold:    threshold,
		Neighborhood: mode.String(),
	}

	e := newEngine(p, lat, snap.Clone().States, rng, opts)
	e.logger.Info("engine created from snapshot",
		"run_id", p.RunID,
		"size", p.Size,
		"neighborhood", mode.String(),
		"threshold", threshold,
		"occupied", e.occupied.len(),
		"free", e.free.len(),
	)
	return e, nil
}

func newEngine(p models.Params, lat *lattice.Lattice, states []models.State, rng *rand.Rand, opts []Option) *Engine {
	e := &Engine{
		params:    p,
		lattice:   lat,
		states:    states,
		occupied:  newNodeSet(lat.Len()),
		free:      newNodeSet(lat.Len()),
		threshold: p.Threshold,
		rng:       rng,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	for i, s := range states {
		if s.Occupied() {
			e.occupied.add(i)
		} else {
			e.free.add(i)
		}
	}
	return e
}

// validate checks every scalar before anything is allocated
func validate(p models.Params) (lattice.Neighborhood, error) {
	if p.Size < 1 {
		return 0, &ConfigError{Field: "size", Reason: "must be at least 1", Value: p.Size, Err: lattice.ErrInvalidSize}
	}
	mode, err := lattice.ParseNeighborhood(p.Neighborhood)
	if err != nil {
		return 0, &ConfigError{Field: "neighborhood", Reason: "must be vonneumann or moore", Value: p.Neighborhood, Err: err}
	}
	if math.IsNaN(p.FractionPos) || p.FractionPos < 0 {
		return 0, configError("fraction_pos", "must be non-negative", p.FractionPos)
	}
	if math.IsNaN(p.FractionNeg) || p.FractionNeg < 0 {
		return 0, configError("fraction_neg", "must be non-negative", p.FractionNeg)
	}
	if p.FractionPos+p.FractionNeg >= 1.0 {
		return 0, configError("fractions", "fraction_pos + fraction_neg must leave room for empty sites",
			fmt.Sprintf("%g + %g", p.FractionPos, p.FractionNeg))
	}
	if err := validateThreshold(p.Threshold); err != nil {
		return 0, err
	}
	return mode, nil
}

func validateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return configError("threshold", "must lie in [0,1]", t)
	}
	return nil
}

// ID returns the run identifier
func (e *Engine) ID() string { return e.params.RunID }

// Params returns the parameters the engine was built with
func (e *Engine) Params() models.Params { return e.params }

// Lattice returns the immutable topology
func (e *Engine) Lattice() *lattice.Lattice { return e.lattice }

// Threshold returns the satisfaction threshold
func (e *Engine) Threshold() float64 { return e.threshold }

// State returns the current state of node
func (e *Engine) State(node models.Node) models.State {
	return e.states[e.lattice.Index(node)]
}

// Snapshot returns a copy of the current lattice state for rendering
func (e *Engine) Snapshot() *models.Snapshot {
	current := models.Snapshot{Size: e.lattice.Size(), States: e.states}
	return current.Clone()
}

// NumberOfStates returns the population of each state
func (e *Engine) NumberOfStates() models.Counts {
	var c models.Counts
	for _, s := range e.states {
		c.Add(s)
	}
	return c
}

// OccupiedNodes returns the occupied partition
func (e *Engine) OccupiedNodes() []models.Node {
	return e.nodes(&e.occupied)
}

// FreeNodes returns the free partition
func (e *Engine) FreeNodes() []models.Node {
	return e.nodes(&e.free)
}

func (e *Engine) nodes(set *nodeSet) []models.Node {
	result := make([]models.Node, set.len())
	for k := range result {
		result[k] = e.lattice.NodeAt(set.at(k))
	}
	return result
}

// move relocates the agent at from onto the free site to. The state flip and
// both partition updates happen together.
func (e *Engine) move(from, to int) {
	e.states[to] = e.states[from]
	e.states[from] = models.Empty
	e.occupied.remove(from)
	e.occupied.add(to)
	e.free.remove(to)
	e.free.add(from)
}

func (e *Engine) record(res StepResult) {
	e.logger.Debug("step",
		"run_id", e.params.RunID,
		"policy", res.Policy,
		"attempts", res.Attempts,
		"moves", res.Moves,
		"settled", res.Settled,
	)
	if e.recorder != nil {
		e.recorder.RecordStep(res)
	}
}
