package milp

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	OPTIMAL    Status = "OPTIMAL"
	TIME_LIMIT Status = "TIME_LIMIT"
	NODE_LIMIT Status = "NODE_LIMIT"
	INFEASIBLE Status = "INFEASIBLE"
	// search finished but dropped subtrees after numeric failures
	SUBOPTIMAL Status = "SUBOPTIMAL"
)

var (
	ErrUnbounded          = errors.New("milp: relaxation is unbounded")
	ErrLazyRoundsExceeded = errors.New("milp: lazy constraint rounds exceeded sanity bound")
)

// Params mirrors the handful of engine parameters the fleet model needs.
type Params struct {
	TimeLimit     time.Duration
	MIPGap        float64
	Threads       int
	NodeLimit     int
	MaxLazyRounds int
}

func DefaultParams() Params {
	return Params{TimeLimit: time.Minute, MIPGap: 1e-4, Threads: 1, MaxLazyRounds: 100000}
}

type Result struct {
	Status   Status
	X        []float64
	ObjVal   float64
	ObjBound float64
	Gap      float64

	Nodes           int
	LazyRounds      int
	LazyCuts        int
	NumericFailures int
	Runtime         time.Duration
}

// HasSolution reports whether an incumbent assignment is available.
func (r *Result) HasSolution() bool {
	return r != nil && r.X != nil
}

// Engine is the external mixed-integer solver as seen by the model builder.
type Engine interface {
	Optimize(ctx context.Context, m *Model, p Params) (*Result, error)
}
