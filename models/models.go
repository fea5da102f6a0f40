// Package models provides data structures shared by the schelling packages.
// It defines the core domain models used throughout the application.
package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// State is the occupancy of a single lattice site
type State int8

const (
	Empty    State = 0
	Positive State = 1
	Negative State = -1
)

// String returns the short name of the state
func (s State) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("State(%d)", int8(s))
	}
}

// ParseState maps a state name to a State. It accepts the names produced by
// String.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "positive":
		return Positive, nil
	case "negative":
		return Negative, nil
	case "empty":
		return Empty, nil
	default:
		return Empty, fmt.Errorf("unknown state: %q", name)
	}
}

// Occupied reports whether an agent lives on the site
func (s State) Occupied() bool {
	return s != Empty
}

// Node is a lattice coordinate. Nodes carry no state of their own.
type Node struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (n Node) String() string {
	return fmt.Sprintf("(%d,%d)", n.Row, n.Col)
}

// Counts holds the population of each state
type Counts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Empty    int `json:"empty"`
}

// Total returns the number of sites counted
func (c Counts) Total() int {
	return c.Positive + c.Negative + c.Empty
}

// Add increments the counter for s
func (c *Counts) Add(s State) {
	switch s {
	case Positive:
		c.Positive++
	case Negative:
		c.Negative++
	default:
		c.Empty++
	}
}

// Params is the complete configuration surface of a simulation
type Params struct {
	RunID        string  `json:"run_id"`
	Size         int     `json:"size"`
	FractionPos  float64 `json:"fraction_pos"`
	FractionNeg  float64 `json:"fraction_neg"`
	Threshold    float64 `json:"threshold"`
	Neighborhood string  `json:"neighborhood"`
	Seed         uint64  `json:"seed"`
}

// NewParams creates a parameter set with a fresh run ID
func NewParams(size int, fractionPos, fractionNeg, threshold float64, neighborhood string, seed uint64) Params {
	return Params{
		RunID:        uuid.New().String(),
		Size:         size,
		FractionPos:  fractionPos,
		FractionNeg:  fractionNeg,
		Threshold:    threshold,
		Neighborhood: neighborhood,
		Seed:         seed,
	}
}

// FractionEmpty is the probability of a site starting empty
func (p Params) FractionEmpty() float64 {
	return 1.0 - p.FractionPos - p.FractionNeg
}

// Metrics is the aggregate report of a simulation at one instant
type Metrics struct {
	RunID       string  `json:"run_id"`
	Counts      Counts  `json:"counts"`
	MeanUtility float64 `json:"mean_utility"`
	Populated   bool    `json:"populated"` // false when MeanUtility is undefined
	Unsatisfied int     `json:"unsatisfied"`
	Surface     int     `json:"surface"`
}
