package fleetmip

import (
	"context"
	"errors"
	"fmt"
	"math"

	"git.solver4all.com/azaryc2s/fleetmip/metrics"
	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

type SolveOptions struct {
	Engine  milp.Engine // defaults to the branch-and-bound engine
	Params  milp.Params
	Metrics *metrics.SolverMetrics
}

// Solve registers the subtour oracle on fm, runs the engine and extracts the
// result. A time or node limit with an incumbent is a success carrying its gap.
func Solve(ctx context.Context, fm *FleetModel, opts SolveOptions) (*Solution, error) {
	engine := opts.Engine
	if engine == nil {
		engine = &milp.BranchAndBound{Logf: func(format string, args ...interface{}) {
			Log(LvlSpam, format, args...)
		}}
	}
	fm.Model.RegisterLazyConstraintSource(NewSubtourOracle(fm, opts.Metrics))

	Log(LvlInfo, "solving %s: time limit %v, gap %g, %d threads", fm.Name, opts.Params.TimeLimit, opts.Params.MIPGap, opts.Params.Threads)
	res, err := engine.Optimize(ctx, fm.Model, opts.Params)
	if res != nil {
		obj := 0.0
		if res.HasSolution() {
			obj = res.ObjVal
		}
		opts.Metrics.ObserveSolve(fm.Name, string(res.Status), res.Runtime, res.Nodes, finiteOr(res.Gap, 1), obj)
	}
	if err != nil {
		if errors.Is(err, milp.ErrLazyRoundsExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrRepairExhausted, err)
		}
		return nil, fmt.Errorf("solving %s: %w", fm.Name, err)
	}

	switch {
	case res.Status == milp.INFEASIBLE:
		return nil, fmt.Errorf("solving %s: %w", fm.Name, ErrInfeasibleModel)
	case !res.HasSolution():
		return nil, fmt.Errorf("solving %s after %v (%s): %w", fm.Name, res.Runtime, res.Status, ErrNoIncumbent)
	}

	sol := ExtractSolution(fm, res.X)
	sol.Status = string(res.Status)
	sol.Objective = res.ObjVal
	sol.Bound = finiteOr(res.ObjBound, res.ObjVal)
	sol.Gap = finiteOr(res.Gap, 1)
	sol.Nodes = res.Nodes
	sol.LazyCuts = res.LazyCuts
	sol.Time = res.Runtime.String()
	if res.Status != milp.OPTIMAL {
		sol.Provisional = true
	}
	if !sol.Verified {
		Warn("solution of %s has %d residual subtours; reporting it as provisional", fm.Name, len(sol.Residual))
	}
	Log(LvlInfo, "%s: status %s, objective %.2f, gap %.4f, %d nodes, %d cuts", fm.Name, sol.Status, sol.Objective, sol.Gap, sol.Nodes, sol.LazyCuts)
	return sol, nil
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}
