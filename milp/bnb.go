package milp

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BranchAndBound is a pure-Go LP-based branch-and-bound engine. Relaxations are
// solved with a bounded-variable dense simplex; every integer-feasible node is
// handed to the model's lazy constraint source before it may become the incumbent.
type BranchAndBound struct {
	// Logf receives progress lines when set.
	Logf func(format string, args ...interface{})
}

// relax solves a node relaxation; replaced in tests.
var relax = solveRelaxation

type node struct {
	lb, ub []float64
	bound  float64
	depth  int
}

type search struct {
	m      *Model
	p      Params
	sign   float64
	logf   func(format string, args ...interface{})
	source LazySource

	mu      sync.Mutex
	cond    *sync.Cond
	open    []*node
	active  int
	stopped bool
	limit   Status

	hasInc bool
	incZ   float64
	inc    []float64

	nodes      int
	lazyRounds int
	numeric    int
	// lowest bound among subtrees dropped after a numeric failure
	lost float64
}

func (e *BranchAndBound) Optimize(ctx context.Context, m *Model, p Params) (*Result, error) {
	start := time.Now()
	if p.Threads < 1 {
		p.Threads = 1
	}
	if p.MaxLazyRounds <= 0 {
		p.MaxLazyRounds = DefaultParams().MaxLazyRounds
	}
	if p.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.TimeLimit)
		defer cancel()
	}

	s := &search{m: m, p: p, sign: 1, logf: e.Logf, source: m.lazySource(), lost: math.Inf(1)}
	if m.Sense == MAXIMIZE {
		s.sign = -1
	}
	s.cond = sync.NewCond(&s.mu)

	root := &node{lb: make([]float64, m.NumVars()), ub: make([]float64, m.NumVars()), bound: math.Inf(-1)}
	for j := range m.vars {
		root.lb[j], root.ub[j] = m.vars[j].LB, m.vars[j].UB
	}
	s.open = append(s.open, root)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Threads; w++ {
		g.Go(func() error { return s.work(gctx) })
	}
	err := g.Wait()

	res := s.result()
	res.Runtime = time.Since(start)
	res.LazyCuts = m.LazyCount()
	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *search) work(ctx context.Context) error {
	for {
		n, ok := s.next(ctx)
		if !ok {
			return nil
		}
		err := s.process(ctx, n)
		s.mu.Lock()
		s.active--
		if err != nil {
			s.stopped = true
		}
		s.cond.Broadcast()
		s.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

// next pops the most recently pushed node, blocking while other workers may
// still produce children. It returns false once the tree is exhausted or the
// search has been stopped.
func (s *search) next(ctx context.Context) (*node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.stopped {
			return nil, false
		}
		if ctx.Err() != nil {
			s.stop(TIME_LIMIT)
			return nil, false
		}
		if s.p.NodeLimit > 0 && s.nodes >= s.p.NodeLimit {
			s.stop(NODE_LIMIT)
			return nil, false
		}
		if len(s.open) > 0 {
			n := s.open[len(s.open)-1]
			s.open = s.open[:len(s.open)-1]
			s.active++
			s.nodes++
			return n, true
		}
		if s.active == 0 {
			return nil, false
		}
		s.cond.Wait()
	}
}

// stop must be called with mu held.
func (s *search) stop(reason Status) {
	if !s.stopped {
		s.limit = reason
	}
	s.stopped = true
	s.cond.Broadcast()
}

func (s *search) pruneTol() float64 {
	return math.Max(feasTol, s.p.MIPGap*math.Abs(s.incZ))
}

func (s *search) dominated(z float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasInc && z >= s.incZ-s.pruneTol()
}

func (s *search) process(ctx context.Context, n *node) error {
	rows := append(append([]Constraint(nil), s.m.constrs...), s.m.LazyConstraints()...)
	x, z, err := relax(ctx, s.m, rows, n.lb, n.ub, s.sign)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// interrupted mid-solve: keep the node open so the bound stays valid
			s.push(n)
			return nil
		case errors.Is(err, errNodeInfeasible):
			return nil
		case errors.Is(err, ErrUnbounded):
			if n.depth == 0 {
				return err
			}
			return nil
		default:
			s.mu.Lock()
			s.numeric++
			if n.bound < s.lost {
				s.lost = n.bound
			}
			s.mu.Unlock()
			s.log("node at depth %d dropped: %v", n.depth, err)
			return nil
		}
	}
	if s.dominated(z) {
		return nil
	}

	if j := mostFractional(s.m, x); j >= 0 {
		s.branch(n, j, x[j], z)
		return nil
	}

	cand := roundIntegers(s.m, x)
	if s.source != nil {
		cuts := s.source.LazyConstraints(Candidate{X: cand, Obj: s.m.Objective(cand)})
		if len(cuts) > 0 {
			added := s.m.AddLazy(cuts...)
			s.mu.Lock()
			s.lazyRounds++
			rounds := s.lazyRounds
			s.mu.Unlock()
			s.log("lazy round %d: %d cuts (%d new) at depth %d", rounds, len(cuts), added, n.depth)
			if rounds > s.p.MaxLazyRounds {
				return ErrLazyRoundsExceeded
			}
		}
	}
	// cuts from this round or from concurrent workers may exclude the candidate
	for _, c := range s.m.LazyConstraints() {
		if c.Violated(cand, feasTol) {
			s.push(&node{lb: n.lb, ub: n.ub, bound: z, depth: n.depth})
			return nil
		}
	}

	zc := s.sign * (s.m.Objective(cand) - s.m.ObjCon)
	s.mu.Lock()
	if !s.hasInc || zc < s.incZ {
		s.hasInc = true
		s.incZ = zc
		s.inc = cand
		s.mu.Unlock()
		s.log("new incumbent %.4f at depth %d", s.sign*zc, n.depth)
		return nil
	}
	s.mu.Unlock()
	return nil
}

func (s *search) branch(n *node, j int, v, z float64) {
	down := &node{lb: n.lb, ub: cloneBounds(n.ub), bound: z, depth: n.depth + 1}
	down.ub[j] = math.Floor(v)
	up := &node{lb: cloneBounds(n.lb), ub: n.ub, bound: z, depth: n.depth + 1}
	up.lb[j] = math.Ceil(v)
	// explore the side nearer to the relaxation value first
	if v-math.Floor(v) >= 0.5 {
		s.push(down, up)
	} else {
		s.push(up, down)
	}
}

func (s *search) push(ns ...*node) {
	s.mu.Lock()
	s.open = append(s.open, ns...)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *search) log(format string, args ...interface{}) {
	if s.logf != nil {
		s.logf(format, args...)
	}
}

func (s *search) result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &Result{Nodes: s.nodes, LazyRounds: s.lazyRounds, NumericFailures: s.numeric}

	bound := s.lost
	if s.hasInc && s.incZ < bound {
		bound = s.incZ
	}
	for _, n := range s.open {
		if n.bound < bound {
			bound = n.bound
		}
	}

	// a dropped subtree may hold a better or the only feasible point
	lostMatters := s.numeric > 0 && !(s.hasInc && s.lost >= s.incZ-s.pruneTol())
	switch {
	case !s.stopped && lostMatters:
		res.Status = SUBOPTIMAL
	case !s.stopped && s.hasInc:
		res.Status = OPTIMAL
	case !s.stopped:
		res.Status = INFEASIBLE
	case s.limit != "":
		res.Status = s.limit
	default:
		res.Status = TIME_LIMIT
	}

	if s.hasInc {
		res.X = s.inc
		res.ObjVal = s.sign*s.incZ + s.m.ObjCon
		if res.Status == OPTIMAL {
			res.ObjBound = res.ObjVal
		} else {
			res.ObjBound = s.sign*bound + s.m.ObjCon
		}
		res.Gap = math.Abs(res.ObjBound-res.ObjVal) / math.Max(1e-10, math.Abs(res.ObjVal))
	} else if !math.IsInf(bound, 1) {
		res.ObjBound = s.sign*bound + s.m.ObjCon
		res.Gap = math.Inf(1)
	}
	return res
}

func cloneBounds(b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	return out
}
