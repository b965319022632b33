package milp

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type VarType int8

const (
	CONTINUOUS VarType = iota
	BINARY
	INTEGER
)

type Sense int8

const (
	LESS_EQUAL Sense = iota
	GREATER_EQUAL
	EQUAL
)

func (s Sense) String() string {
	switch s {
	case LESS_EQUAL:
		return "<="
	case GREATER_EQUAL:
		return ">="
	case EQUAL:
		return "="
	}
	return "?"
}

type ModelSense int8

const (
	MINIMIZE ModelSense = iota
	MAXIMIZE
)

var ErrBadIndex = errors.New("milp: variable index out of range")

type Var struct {
	Name string
	Type VarType
	LB   float64
	UB   float64
	Obj  float64
}

// Constraint is a sparse linear row sum(Val[i]*x[Ind[i]]) Sense RHS.
type Constraint struct {
	Ind   []int
	Val   []float64
	Sense Sense
	RHS   float64
	Name  string
}

// Activity evaluates the left-hand side of c at x.
func (c Constraint) Activity(x []float64) float64 {
	s := 0.0
	for i, j := range c.Ind {
		s += c.Val[i] * x[j]
	}
	return s
}

// Violated reports whether x breaks c by more than tol.
func (c Constraint) Violated(x []float64, tol float64) bool {
	a := c.Activity(x)
	switch c.Sense {
	case LESS_EQUAL:
		return a > c.RHS+tol
	case GREATER_EQUAL:
		return a < c.RHS-tol
	default:
		return math.Abs(a-c.RHS) > tol
	}
}

// key is a canonical form used to deduplicate lazy constraints. Terms are merged
// and sorted by index so that permuted rows compare equal.
func (c Constraint) key() string {
	merged := map[int]float64{}
	for i, j := range c.Ind {
		merged[j] += c.Val[i]
	}
	idx := make([]int, 0, len(merged))
	for j, v := range merged {
		if v != 0 {
			idx = append(idx, j)
		}
	}
	sort.Ints(idx)
	var b strings.Builder
	for _, j := range idx {
		b.WriteString(strconv.Itoa(j))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(merged[j], 'g', 12, 64))
		b.WriteByte(',')
	}
	b.WriteString(c.Sense.String())
	b.WriteString(strconv.FormatFloat(c.RHS, 'g', 12, 64))
	return b.String()
}

// Candidate is an integer-feasible assignment surfaced during the search.
type Candidate struct {
	X   []float64
	Obj float64
}

// IsSet reports whether binary variable i is 1 in the candidate.
func (c Candidate) IsSet(i int) bool {
	return i >= 0 && i < len(c.X) && c.X[i] > 0.5
}

// LazySource inspects an integer-feasible candidate and returns the constraints
// it violates. An empty result accepts the candidate.
type LazySource interface {
	LazyConstraints(cand Candidate) []Constraint
}

// LazySourceFunc adapts a plain function to LazySource.
type LazySourceFunc func(cand Candidate) []Constraint

func (f LazySourceFunc) LazyConstraints(cand Candidate) []Constraint { return f(cand) }

// Model is a solver-independent MIP: variables, linear rows, a linear objective
// with constant term, and an append-only pool of lazy rows.
type Model struct {
	Name   string
	Sense  ModelSense
	ObjCon float64

	vars    []Var
	constrs []Constraint

	mu       sync.RWMutex
	lazy     []Constraint
	lazyKeys map[string]struct{}
	source   LazySource
}

func NewModel(name string, sense ModelSense) *Model {
	return &Model{Name: name, Sense: sense, lazyKeys: map[string]struct{}{}}
}

// AddVar appends a variable and returns its index. Binary variables are clamped
// to [0,1].
func (m *Model) AddVar(name string, vtype VarType, lb, ub, obj float64) int {
	if vtype == BINARY {
		lb = math.Max(lb, 0)
		ub = math.Min(ub, 1)
	}
	m.vars = append(m.vars, Var{Name: name, Type: vtype, LB: lb, UB: ub, Obj: obj})
	return len(m.vars) - 1
}

// SetObj overwrites the objective coefficient of variable i.
func (m *Model) SetObj(i int, obj float64) {
	m.vars[i].Obj = obj
}

// AddObj adds to the objective coefficient of variable i.
func (m *Model) AddObj(i int, delta float64) {
	m.vars[i].Obj += delta
}

func (m *Model) AddConstr(ind []int, val []float64, sense Sense, rhs float64, name string) error {
	if len(ind) != len(val) {
		return fmt.Errorf("milp: constraint %s has %d indices but %d values", name, len(ind), len(val))
	}
	for _, j := range ind {
		if j < 0 || j >= len(m.vars) {
			return fmt.Errorf("%w: %d in constraint %s", ErrBadIndex, j, name)
		}
	}
	m.constrs = append(m.constrs, Constraint{Ind: ind, Val: val, Sense: sense, RHS: rhs, Name: name})
	return nil
}

// AddLazy appends constraints to the lazy pool, skipping any row already present.
// It returns how many rows were new. Safe for concurrent use.
func (m *Model) AddLazy(cs ...Constraint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, c := range cs {
		k := c.key()
		if _, ok := m.lazyKeys[k]; ok {
			continue
		}
		m.lazyKeys[k] = struct{}{}
		m.lazy = append(m.lazy, c)
		added++
	}
	return added
}

// LazyConstraints returns a snapshot of the lazy pool.
func (m *Model) LazyConstraints() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Constraint, len(m.lazy))
	copy(out, m.lazy)
	return out
}

func (m *Model) LazyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lazy)
}

// RegisterLazyConstraintSource installs the callback consulted on every
// integer-feasible candidate.
func (m *Model) RegisterLazyConstraintSource(src LazySource) {
	m.mu.Lock()
	m.source = src
	m.mu.Unlock()
}

func (m *Model) lazySource() LazySource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

func (m *Model) NumVars() int { return len(m.vars) }
func (m *Model) NumConstrs() int { return len(m.constrs) }
func (m *Model) Var(i int) Var { return m.vars[i] }
func (m *Model) Constr(i int) Constraint { return m.constrs[i] }
func (m *Model) Constrs() []Constraint { return m.constrs }
func (m *Model) VarName(i int) string { return m.vars[i].Name }
func (m *Model) IsInteger(i int) bool { return m.vars[i].Type != CONTINUOUS }
func (m *Model) Bounds(i int) (lb, ub float64) { return m.vars[i].LB, m.vars[i].UB }

// Objective evaluates the objective, constant included, at x.
func (m *Model) Objective(x []float64) float64 {
	s := m.ObjCon
	for i, v := range m.vars {
		s += v.Obj * x[i]
	}
	return s
}

// Feasible reports whether x satisfies bounds, integrality, the static rows and
// the current lazy pool within tol. It returns the name of the first broken row.
func (m *Model) Feasible(x []float64, tol float64) (bool, string) {
	if len(x) != len(m.vars) {
		return false, "dimension"
	}
	for i, v := range m.vars {
		if x[i] < v.LB-tol || x[i] > v.UB+tol {
			return false, "bound " + v.Name
		}
		if v.Type != CONTINUOUS && math.Abs(x[i]-math.Round(x[i])) > tol {
			return false, "integrality " + v.Name
		}
	}
	for _, c := range m.constrs {
		if c.Violated(x, tol) {
			return false, c.Name
		}
	}
	for _, c := range m.LazyConstraints() {
		if c.Violated(x, tol) {
			return false, c.Name
		}
	}
	return true, ""
}
