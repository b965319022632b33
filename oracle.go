package fleetmip

import (
	"fmt"
	"sort"

	"git.solver4all.com/azaryc2s/fleetmip/metrics"
	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

// SubtourOracle is the lazy constraint source of a FleetModel. It holds no
// state beyond the static model, so concurrent calls are safe.
type SubtourOracle struct {
	fm      *FleetModel
	metrics *metrics.SolverMetrics
}

func NewSubtourOracle(fm *FleetModel, m *metrics.SolverMetrics) *SubtourOracle {
	return &SubtourOracle{fm: fm, metrics: m}
}

// Subtour is a set of ports visited by a vessel's active arcs that cannot be
// reached from its home port.
type Subtour struct {
	Vessel string
	Ports  []PortID
	Arcs   []int // positions in VesselVars.Arcs
}

// LazyConstraints returns one cut per disconnected component of every vessel's
// active arc set. An empty result accepts the candidate.
func (o *SubtourOracle) LazyConstraints(cand milp.Candidate) []milp.Constraint {
	var cuts []milp.Constraint
	for _, vv := range o.fm.Vessels {
		for _, st := range FindSubtours(vv, cand) {
			cuts = append(cuts, secCut(vv, st))
			Log(LvlDebug, "SEC for vessel %s on ports %v (%d arcs)", vv.Vessel.ID, st.Ports, len(st.Arcs))
		}
	}
	o.metrics.ObserveOracle(o.fm.Name, len(cuts))
	return cuts
}

// FindSubtours runs a breadth-first search from the vessel's home port over its
// active arcs, treated as undirected, and groups the unreached active arcs into
// connected components.
func FindSubtours(vv *VesselVars, cand milp.Candidate) []Subtour {
	adj := map[PortID][]PortID{}
	var active []int
	for pos, a := range vv.Arcs {
		if !cand.IsSet(a.Index) {
			continue
		}
		active = append(active, pos)
		adj[a.From] = append(adj[a.From], a.To)
		adj[a.To] = append(adj[a.To], a.From)
	}
	if len(active) == 0 {
		return nil
	}

	comp := map[PortID]int{}
	bfs := func(start PortID, id int) []PortID {
		visited := []PortID{start}
		comp[start] = id
		queue := []PortID{start}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, q := range adj[p] {
				if _, seen := comp[q]; seen {
					continue
				}
				comp[q] = id
				visited = append(visited, q)
				queue = append(queue, q)
			}
		}
		return visited
	}
	bfs(vv.Vessel.HomePort, 0)

	var subtours []Subtour
	byComp := map[int]int{}
	for _, pos := range active {
		a := vv.Arcs[pos]
		if _, reached := comp[a.From]; !reached {
			ports := bfs(a.From, len(subtours)+1)
			sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
			byComp[len(subtours)+1] = len(subtours)
			subtours = append(subtours, Subtour{Vessel: vv.Vessel.ID, Ports: ports})
		}
		if id := comp[a.From]; id > 0 {
			st := &subtours[byComp[id]]
			st.Arcs = append(st.Arcs, pos)
		}
	}
	return subtours
}

// secCut forbids the component's arcs unless the vessel also enters the
// component from outside: sum(A_S) - sum(entering) <= |A_S| - 1.
func secCut(vv *VesselVars, st Subtour) milp.Constraint {
	inside := make(map[PortID]bool, len(st.Ports))
	for _, p := range st.Ports {
		inside[p] = true
	}
	ind := make([]int, 0, len(st.Arcs))
	val := make([]float64, 0, len(st.Arcs))
	for _, pos := range st.Arcs {
		ind = append(ind, vv.Arcs[pos].Index)
		val = append(val, 1)
	}
	for _, a := range vv.Arcs {
		if !inside[a.From] && inside[a.To] {
			ind = append(ind, a.Index)
			val = append(val, -1)
		}
	}
	return milp.Constraint{
		Ind:   ind,
		Val:   val,
		Sense: milp.LESS_EQUAL,
		RHS:   float64(len(st.Arcs) - 1),
		Name:  fmt.Sprintf("sec_%s_%v", vv.Vessel.ID, st.Ports),
	}
}
