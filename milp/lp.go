package milp

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	feasTol  = 1e-6
	intTol   = 1e-6
	pivotTol = 1e-9
	optTol   = 1e-9
	tieTol   = 1e-12
)

const (
	// pricing falls back to Bland's rule after this many degenerate pivots in a row
	blandAfter    = 50
	ctxCheckEvery = 64
)

var (
	errNodeInfeasible = errors.New("milp: node relaxation infeasible")
	errIterationLimit = errors.New("milp: simplex iteration limit reached")
)

// solveRelaxation solves the LP relaxation of m restricted to [lb,ub] plus rows.
// The returned z is in minimization space (sign*objective, constant excluded).
//
// Variables are shifted to y = x - lb and fixed columns are substituted out.
// Column bounds are handled by the simplex itself, so rows only carry the
// model's constraints. ctx is checked between pivots.
func solveRelaxation(ctx context.Context, m *Model, rows []Constraint, lb, ub []float64, sign float64) ([]float64, float64, error) {
	n := m.NumVars()
	col := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if ub[j] < lb[j]-feasTol {
			return nil, 0, errNodeInfeasible
		}
		if ub[j]-lb[j] <= feasTol {
			col[j] = -1
			continue
		}
		col[j] = len(free)
		free = append(free, j)
	}
	nf := len(free)

	var (
		dense [][]float64
		rhs   []float64
		eq    []bool
	)
	for _, c := range rows {
		a := make([]float64, nf)
		b := c.RHS
		nz := false
		for i, j := range c.Ind {
			v := c.Val[i]
			b -= v * lb[j]
			if col[j] >= 0 && v != 0 {
				a[col[j]] += v
				nz = true
			}
		}
		if !nz {
			if (c.Sense == LESS_EQUAL && b < -feasTol) ||
				(c.Sense == GREATER_EQUAL && b > feasTol) ||
				(c.Sense == EQUAL && math.Abs(b) > feasTol) {
				return nil, 0, errNodeInfeasible
			}
			continue
		}
		if c.Sense == GREATER_EQUAL {
			floats.Scale(-1, a)
			b = -b
		}
		dense = append(dense, a)
		rhs = append(rhs, b)
		eq = append(eq, c.Sense == EQUAL)
	}

	cost := make([]float64, nf)
	upper := make([]float64, nf)
	base := 0.0
	for j := 0; j < n; j++ {
		obj := sign * m.vars[j].Obj
		base += obj * lb[j]
		if col[j] >= 0 {
			cost[col[j]] = obj
			upper[col[j]] = ub[j] - lb[j]
		}
	}

	x := make([]float64, n)
	copy(x, lb)

	if len(dense) == 0 {
		z := base
		for k, j := range free {
			if cost[k] >= 0 {
				continue
			}
			if math.IsInf(upper[k], 1) {
				return nil, 0, ErrUnbounded
			}
			x[j] += upper[k]
			z += cost[k] * upper[k]
		}
		return x, z, nil
	}

	tb := newTableau(dense, rhs, eq, upper)
	if tb.nart > 0 {
		phase1 := make([]float64, tb.n)
		for k := tb.n - tb.nart; k < tb.n; k++ {
			phase1[k] = 1
		}
		if err := tb.optimize(ctx, phase1); err != nil {
			if errors.Is(err, ErrUnbounded) {
				return nil, 0, errIterationLimit
			}
			return nil, 0, err
		}
		infeas := 0.0
		for k := tb.n - tb.nart; k < tb.n; k++ {
			infeas += tb.value(k)
		}
		if infeas > feasTol {
			return nil, 0, errNodeInfeasible
		}
		for k := tb.n - tb.nart; k < tb.n; k++ {
			tb.upper[k] = 0
		}
	}

	full := make([]float64, tb.n)
	copy(full, cost)
	if err := tb.optimize(ctx, full); err != nil {
		return nil, 0, err
	}

	z := base
	for k, j := range free {
		y := math.Min(math.Max(tb.value(k), 0), upper[k])
		x[j] += y
		z += cost[k] * y
	}
	return x, z, nil
}

// tableau is a dense bounded-variable simplex tableau B^-1 [A | I | art].
// Nonbasic columns sit at 0 or at their upper bound; beta holds basic values.
type tableau struct {
	t       *mat.Dense
	m, n    int
	nart    int
	beta    []float64
	basis   []int
	row     []int // row of a basic column, -1 otherwise
	upper   []float64
	atUpper []bool
	d       []float64
}

// newTableau adds a slack to every inequality row and an artificial to every
// row whose slack cannot start basic (equalities and negative right-hand sides).
func newTableau(dense [][]float64, rhs []float64, eq []bool, upper []float64) *tableau {
	m, nf := len(dense), len(upper)
	nslack, nart := 0, 0
	for i := range dense {
		if !eq[i] {
			nslack++
		}
		if eq[i] || rhs[i] < 0 {
			nart++
		}
	}
	n := nf + nslack + nart
	tb := &tableau{
		t:       mat.NewDense(m, n, nil),
		m:       m,
		n:       n,
		nart:    nart,
		beta:    make([]float64, m),
		basis:   make([]int, m),
		row:     make([]int, n),
		upper:   make([]float64, n),
		atUpper: make([]bool, n),
		d:       make([]float64, n),
	}
	copy(tb.upper, upper)
	for k := nf; k < n; k++ {
		tb.upper[k] = math.Inf(1)
	}
	for k := range tb.row {
		tb.row[k] = -1
	}

	slack, art := nf, nf+nslack
	for i, a := range dense {
		r := tb.t.RawRowView(i)
		copy(r, a)
		b := rhs[i]
		s := -1
		if !eq[i] {
			s = slack
			slack++
			r[s] = 1
		}
		if b < 0 {
			floats.Scale(-1, r)
			b = -b
		}
		tb.beta[i] = b
		if eq[i] || rhs[i] < 0 {
			r[art] = 1
			tb.basis[i] = art
			tb.row[art] = i
			art++
		} else {
			tb.basis[i] = s
			tb.row[s] = i
		}
	}
	return tb
}

func (tb *tableau) value(k int) float64 {
	if r := tb.row[k]; r >= 0 {
		return tb.beta[r]
	}
	if tb.atUpper[k] {
		return tb.upper[k]
	}
	return 0
}

func (tb *tableau) price(cost []float64) {
	copy(tb.d, cost)
	for i, k := range tb.basis {
		if c := cost[k]; c != 0 {
			floats.AddScaled(tb.d, -c, tb.t.RawRowView(i))
		}
	}
	for _, k := range tb.basis {
		tb.d[k] = 0
	}
}

// optimize minimizes cost from the current basis.
func (tb *tableau) optimize(ctx context.Context, cost []float64) error {
	tb.price(cost)
	maxIter := 50*(tb.m+tb.n) + 1000
	degenerate := 0
	for it := 0; ; it++ {
		if it >= maxIter {
			return errIterationLimit
		}
		if it%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		bland := degenerate >= blandAfter
		q, dir := tb.entering(bland)
		if q < 0 {
			return nil
		}
		r, step, toUpper := tb.ratio(q, dir, bland)
		if math.IsInf(step, 1) {
			return ErrUnbounded
		}
		if step <= pivotTol {
			degenerate++
		} else {
			degenerate = 0
		}
		if step > 0 {
			for i := 0; i < tb.m; i++ {
				if a := tb.t.At(i, q); a != 0 {
					tb.beta[i] -= dir * step * a
				}
			}
		}
		if r < 0 {
			tb.atUpper[q] = !tb.atUpper[q]
			continue
		}
		entered := dir * step
		if tb.atUpper[q] {
			entered += tb.upper[q]
		}
		tb.pivot(r, q, entered, toUpper)
	}
}

func (tb *tableau) entering(bland bool) (int, float64) {
	best, bestDir, bestScore := -1, 0.0, 0.0
	for k := 0; k < tb.n; k++ {
		if tb.row[k] >= 0 || tb.upper[k] == 0 {
			continue
		}
		dk := tb.d[k]
		var dir float64
		switch {
		case !tb.atUpper[k] && dk < -optTol:
			dir = 1
		case tb.atUpper[k] && dk > optTol:
			dir = -1
		default:
			continue
		}
		if bland {
			return k, dir
		}
		if s := math.Abs(dk); s > bestScore {
			best, bestDir, bestScore = k, dir, s
		}
	}
	return best, bestDir
}

// ratio returns the leaving row (-1 for a bound flip of q), the step length
// and whether the leaving column ends at its upper bound.
func (tb *tableau) ratio(q int, dir float64, bland bool) (int, float64, bool) {
	step := tb.upper[q]
	r, toUpper, pivA := -1, false, 0.0
	for i := 0; i < tb.m; i++ {
		a := dir * tb.t.At(i, q)
		k := tb.basis[i]
		var lim float64
		var up bool
		switch {
		case a > pivotTol:
			lim = tb.beta[i] / a
		case a < -pivotTol && !math.IsInf(tb.upper[k], 1):
			lim = (tb.upper[k] - tb.beta[i]) / -a
			up = true
		default:
			continue
		}
		if lim < 0 {
			lim = 0
		}
		switch {
		case r < 0 && lim < step, r >= 0 && lim < step-tieTol:
		case r >= 0 && lim <= step+tieTol:
			if bland && k > tb.basis[r] || !bland && math.Abs(a) <= pivA {
				continue
			}
		default:
			continue
		}
		r, step, toUpper, pivA = i, lim, up, math.Abs(a)
	}
	return r, step, toUpper
}

func (tb *tableau) pivot(r, q int, entered float64, toUpper bool) {
	leaving := tb.basis[r]
	prow := tb.t.RawRowView(r)
	floats.Scale(1/prow[q], prow)
	prow[q] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		irow := tb.t.RawRowView(i)
		if f := irow[q]; f != 0 {
			floats.AddScaled(irow, -f, prow)
			irow[q] = 0
		}
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, prow)
	}
	tb.d[q] = 0

	tb.beta[r] = entered
	tb.basis[r] = q
	tb.row[q] = r
	tb.atUpper[q] = false
	tb.row[leaving] = -1
	tb.atUpper[leaving] = toUpper
}

// mostFractional returns the integer variable whose value is furthest from an
// integer, or -1 when x is integral on all integer columns.
func mostFractional(m *Model, x []float64) int {
	best, bestDist := -1, intTol
	for j, v := range m.vars {
		if v.Type == CONTINUOUS {
			continue
		}
		f := x[j] - math.Floor(x[j])
		d := math.Min(f, 1-f)
		if d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// roundIntegers snaps integer columns to the nearest integer.
func roundIntegers(m *Model, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for j, v := range m.vars {
		if v.Type != CONTINUOUS {
			out[j] = math.Round(out[j])
		} else if math.Abs(out[j]) < 1e-12 {
			out[j] = 0
		}
	}
	return out
}
