package fleetmip

import (
	"fmt"
	"sort"

	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

type ModelParams struct {
	FuelPrice            float64 // per tonne
	HandlingCostPerDay   float64
	CleaningCostPerDay   float64
	CapexFactor          float64 // share of the price charged for the scenario horizon
	UnservedPenalty      float64
	UnservedPenaltyShare float64 // share of a leg's base revenue added to the flat penalty
	MaxStops             int
	MaxVoyageDays        float64
	PortDwellDays        float64
}

type DemandLeg struct {
	ID          string
	Origin      PortID
	Dest        PortID
	Commodity   Commodity
	BaseRevenue float64
}

func (l DemandLeg) key() legKey {
	return legKey{l.Origin, l.Dest, l.Commodity}
}

type legKey struct {
	o, d PortID
	k    Commodity
}

type ArcMode int8

const (
	Ballast ArcMode = iota
	Laden
)

func (m ArcMode) String() string {
	if m == Laden {
		return "LADEN"
	}
	return "BALLAST"
}

type Arc struct {
	Vessel    string
	From      PortID
	To        PortID
	Mode      ArcMode
	Commodity Commodity // zero on ballast arcs
}

// ArcVar is an arc decision variable together with the per-use quantities its
// objective and voyage-bound coefficients were computed from.
type ArcVar struct {
	Arc
	Index        int
	DistanceNM   float64
	TransitDays  float64
	HandlingDays float64
	Days         float64 // transit + handling + dwell
	FuelTonnes   float64
	Revenue      float64
}

type PortCommodity struct {
	Port      PortID
	Commodity Commodity
}

type PortSwitch struct {
	Port PortID
	CommodityPair
}

type SeaSwitch struct {
	PortPair
	CommodityPair
}

// VesselVars holds every variable index belonging to one vessel.
type VesselVars struct {
	Vessel Vessel
	Buy    int
	Arcs   []ArcVar

	Load          map[PortCommodity]int
	Unload        map[PortCommodity]int
	PortClean     map[PortSwitch]int
	PortCleanTime map[PortID]int
	SeaClean      map[SeaSwitch]int
	SeaCleanTime  map[PortPair]int

	out     map[PortID][]int // positions in Arcs
	in      map[PortID][]int
	ballast map[PortPair]int
}

type Category string

const (
	CatRevenue  Category = "revenue"
	CatFuel     Category = "fuel"
	CatOpex     Category = "opex"
	CatPortFees Category = "port_fees"
	CatHandling Category = "handling"
	CatCleaning Category = "cleaning"
	CatCapex    Category = "capex"
	CatPenalty  Category = "penalty"
)

// Categories in reporting order. Revenue is the only positive one.
var Categories = []Category{CatRevenue, CatFuel, CatOpex, CatPortFees, CatHandling, CatCleaning, CatCapex, CatPenalty}

// LinExpr is a linear expression over model variables with a constant term.
type LinExpr struct {
	Ind   []int
	Val   []float64
	Const float64
}

func (e *LinExpr) add(i int, v float64) {
	if v == 0 {
		return
	}
	e.Ind = append(e.Ind, i)
	e.Val = append(e.Val, v)
}

func (e *LinExpr) Eval(x []float64) float64 {
	s := e.Const
	for i, j := range e.Ind {
		s += e.Val[i] * x[j]
	}
	return s
}

// BuildReport collects what the builder dropped or could not cover.
type BuildReport struct {
	Dropped  []error
	Warnings []string
	Vars     int
	Constrs  int
}

// FleetModel is the assembled routing model for one scenario.
type FleetModel struct {
	Name    string
	Model   *milp.Model
	Net     *Network
	Params  ModelParams
	Vessels []*VesselVars
	Legs    []DemandLeg
	Serve   []int
	Terms   map[Category]*LinExpr
	Report  BuildReport
}

type builder struct {
	fm      *FleetModel
	m       *milp.Model
	p       ModelParams
	err     error
	missing map[string]bool
}

func (b *builder) constr(ind []int, val []float64, sense milp.Sense, rhs float64, name string) {
	if b.err != nil {
		return
	}
	if err := b.m.AddConstr(ind, val, sense, rhs, name); err != nil {
		b.err = err
	}
}

// cost adds a positive cost amount on variable i to category c and subtracts it
// from the objective.
func (b *builder) cost(c Category, i int, amount float64) {
	b.fm.Terms[c].add(i, amount)
	b.m.AddObj(i, -amount)
}

func (b *builder) drop(key string, err error) {
	if b.missing[key] {
		return
	}
	b.missing[key] = true
	b.fm.Report.Dropped = append(b.fm.Report.Dropped, err)
	Log(LvlDebug, "dropping arcs: %v", err)
}

// CreateFleetModel builds the routing model for vessels serving legs on net.
// Arcs whose lookups are missing are dropped and recorded in the report; the
// build only fails for an empty fleet or an unknown home port.
func CreateFleetModel(name string, net *Network, vessels []Vessel, legs []DemandLeg, p ModelParams) (*FleetModel, error) {
	if len(vessels) == 0 {
		return nil, ErrEmptyFleet
	}
	for _, v := range vessels {
		if _, ok := net.Port(v.HomePort); !ok {
			return nil, fmt.Errorf("vessel %s: unknown home port %d", v.ID, v.HomePort)
		}
	}
	vessels = append([]Vessel(nil), vessels...)
	sort.Slice(vessels, func(i, j int) bool { return vessels[i].ID < vessels[j].ID })

	fm := &FleetModel{
		Name:   name,
		Model:  milp.NewModel(name, milp.MAXIMIZE),
		Net:    net,
		Params: p,
		Legs:   legs,
		Terms:  make(map[Category]*LinExpr, len(Categories)),
	}
	for _, c := range Categories {
		fm.Terms[c] = &LinExpr{}
	}
	b := &builder{fm: fm, m: fm.Model, p: p, missing: map[string]bool{}}

	legsByKey := map[legKey][]int{}
	var keys []legKey
	for i, l := range legs {
		k := l.key()
		if _, ok := legsByKey[k]; !ok {
			keys = append(keys, k)
		}
		legsByKey[k] = append(legsByKey[k], i)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.o != c.o {
			return a.o < c.o
		}
		if a.d != c.d {
			return a.d < c.d
		}
		return a.k < c.k
	})

	// unserved legs pay the penalty: const - pen*serve
	for _, l := range legs {
		pen := p.UnservedPenalty + p.UnservedPenaltyShare*l.BaseRevenue
		s := b.m.AddVar("serve_"+l.ID, milp.BINARY, 0, 1, pen)
		fm.Serve = append(fm.Serve, s)
		b.m.ObjCon -= pen
		fm.Terms[CatPenalty].Const += pen
		fm.Terms[CatPenalty].add(s, -pen)
	}

	ladenByKey := map[legKey][]int{}
	for _, v := range vessels {
		vv := b.addVessel(v, keys)
		for _, a := range vv.Arcs {
			if a.Mode == Laden {
				k := legKey{a.From, a.To, a.Commodity}
				ladenByKey[k] = append(ladenByKey[k], a.Index)
			}
		}
		fm.Vessels = append(fm.Vessels, vv)
	}

	// demand linkage: sum of laden traversals equals the number of served legs
	for _, k := range keys {
		ind := append([]int(nil), ladenByKey[k]...)
		val := make([]float64, len(ind))
		for i := range val {
			val[i] = 1
		}
		for _, li := range legsByKey[k] {
			ind = append(ind, fm.Serve[li])
			val = append(val, -1)
			if len(ladenByKey[k]) == 0 {
				w := fmt.Sprintf("leg %s (%d->%d, %d) cannot be served by any vessel", legs[li].ID, k.o, k.d, k.k)
				fm.Report.Warnings = append(fm.Report.Warnings, w)
				Warn("%s", w)
			}
		}
		b.constr(ind, val, milp.EQUAL, 0, fmt.Sprintf("demand_%d_%d_%d", k.o, k.d, k.k))
	}

	if b.err != nil {
		return nil, fmt.Errorf("building model %s: %w", name, b.err)
	}
	fm.Report.Vars = b.m.NumVars()
	fm.Report.Constrs = b.m.NumConstrs()
	Log(LvlInfo, "model %s: %d vessels, %d legs, %d vars, %d constraints, %d dropped lookups",
		name, len(vessels), len(legs), fm.Report.Vars, fm.Report.Constrs, len(fm.Report.Dropped))
	return fm, nil
}

func (b *builder) addVessel(v Vessel, keys []legKey) *VesselVars {
	net, p := b.fm.Net, b.p
	vv := &VesselVars{
		Vessel:        v,
		Load:          map[PortCommodity]int{},
		Unload:        map[PortCommodity]int{},
		PortClean:     map[PortSwitch]int{},
		PortCleanTime: map[PortID]int{},
		SeaClean:      map[SeaSwitch]int{},
		SeaCleanTime:  map[PortPair]int{},
		out:           map[PortID][]int{},
		in:            map[PortID][]int{},
		ballast:       map[PortPair]int{},
	}
	vv.Buy = b.m.AddVar("buy_"+v.ID, milp.BINARY, 0, 1, 0)
	b.cost(CatCapex, vv.Buy, v.Price*p.CapexFactor)

	addArc := func(a ArcVar, name string) {
		a.Index = b.m.AddVar(name, milp.BINARY, 0, 1, 0)
		b.fm.Terms[CatRevenue].add(a.Index, a.Revenue)
		b.m.AddObj(a.Index, a.Revenue)
		b.cost(CatFuel, a.Index, a.FuelTonnes*p.FuelPrice)
		b.cost(CatOpex, a.Index, v.Spec.Opex*a.Days)
		b.cost(CatPortFees, a.Index, net.PortFee(a.To))
		b.cost(CatHandling, a.Index, p.HandlingCostPerDay*a.HandlingDays)
		pos := len(vv.Arcs)
		vv.Arcs = append(vv.Arcs, a)
		vv.out[a.From] = append(vv.out[a.From], pos)
		vv.in[a.To] = append(vv.in[a.To], pos)
		if a.Mode == Ballast {
			vv.ballast[PortPair{a.From, a.To}] = pos
		}
	}

	ports := net.Ports()
	for _, i := range ports {
		for _, j := range ports {
			if i == j {
				continue
			}
			nm, ok := net.Distance(i, j)
			if !ok {
				pp := PortPair{i, j}
				b.drop("distance "+pp.String(), &ConfigError{Table: "distance", Key: pp.String()})
				continue
			}
			transit := nm / (v.Spec.Ballast.Speed * 24)
			addArc(ArcVar{
				Arc:         Arc{Vessel: v.ID, From: i, To: j, Mode: Ballast},
				DistanceNM:  nm,
				TransitDays: transit,
				Days:        transit + p.PortDwellDays,
				FuelTonnes:  v.Spec.Ballast.Rate * transit,
			}, fmt.Sprintf("ballast_%s_%d_%d", v.ID, i, j))
		}
	}

	for _, k := range keys {
		if k.o == k.d {
			continue
		}
		nm, ok := net.Distance(k.o, k.d)
		if !ok {
			continue // recorded with the ballast arcs
		}
		if !net.Compliant(v.Type, k.k) || !net.ExportCompatible(k.o, k.k) || !net.ImportCompatible(k.d, k.k) {
			continue
		}
		rev, err := ArcRevenue(net, k.o, k.d, k.k, v.Spec.Capacity)
		if err != nil {
			b.drop(fmt.Sprintf("freight %d", k.k), err)
			continue
		}
		lr, okL := net.LoadRate(k.k)
		ur, okU := net.UnloadRate(k.k)
		if !okL || !okU {
			b.drop(fmt.Sprintf("handling %d", k.k), &DataMiss{Record: "handling_rate", Commodity: k.k})
			continue
		}
		transit := nm / (v.Spec.Laden.Speed * 24)
		handling := v.Spec.Capacity/lr + v.Spec.Capacity/ur
		addArc(ArcVar{
			Arc:          Arc{Vessel: v.ID, From: k.o, To: k.d, Mode: Laden, Commodity: k.k},
			DistanceNM:   nm,
			TransitDays:  transit,
			HandlingDays: handling,
			Days:         transit + handling + p.PortDwellDays,
			FuelTonnes:   v.Spec.Laden.Rate * transit,
			Revenue:      rev,
		}, fmt.Sprintf("laden_%s_%d_%d_%d", v.ID, k.o, k.d, k.k))
	}

	b.addTriggers(vv)
	b.addRoutingConstrs(vv)
	b.addCleaning(vv)
	b.addVoyageBounds(vv)
	return vv
}

// addTriggers links load/unload indicators to the laden arcs leaving/entering a port.
func (b *builder) addTriggers(vv *VesselVars) {
	id := vv.Vessel.ID
	loadArcs := map[PortCommodity][]int{}
	unloadArcs := map[PortCommodity][]int{}
	for _, a := range vv.Arcs {
		if a.Mode != Laden {
			continue
		}
		lk := PortCommodity{a.From, a.Commodity}
		uk := PortCommodity{a.To, a.Commodity}
		loadArcs[lk] = append(loadArcs[lk], a.Index)
		unloadArcs[uk] = append(unloadArcs[uk], a.Index)
	}
	link := func(kind string, trig map[PortCommodity]int, arcs map[PortCommodity][]int) {
		for _, pc := range sortedPortCommodities(arcs) {
			name := fmt.Sprintf("%s_%s_%d_%d", kind, id, pc.Port, pc.Commodity)
			t := b.m.AddVar(name, milp.BINARY, 0, 1, 0)
			trig[pc] = t
			ind := []int{t}
			val := []float64{1}
			for _, a := range arcs[pc] {
				b.constr([]int{t, a}, []float64{1, -1}, milp.GREATER_EQUAL, 0, name+"_lb")
				ind = append(ind, a)
				val = append(val, -1)
			}
			b.constr(ind, val, milp.LESS_EQUAL, 0, name+"_ub")
		}
	}
	link("load", vv.Load, loadArcs)
	link("unload", vv.Unload, unloadArcs)
}

func (b *builder) addRoutingConstrs(vv *VesselVars) {
	v := vv.Vessel
	home := v.HomePort

	for _, p := range b.fm.Net.Ports() {
		var ind []int
		var val []float64
		for _, pos := range vv.in[p] {
			ind = append(ind, vv.Arcs[pos].Index)
			val = append(val, 1)
		}
		for _, pos := range vv.out[p] {
			ind = append(ind, vv.Arcs[pos].Index)
			val = append(val, -1)
		}
		if len(ind) > 0 {
			b.constr(ind, val, milp.EQUAL, 0, fmt.Sprintf("flow_%s_%d", v.ID, p))
		}
	}

	// the voyage leaves home exactly once when the vessel is bought
	ind := []int{vv.Buy}
	val := []float64{-1}
	for _, pos := range vv.out[home] {
		ind = append(ind, vv.Arcs[pos].Index)
		val = append(val, 1)
	}
	b.constr(ind, val, milp.EQUAL, 0, fmt.Sprintf("depart_%s", v.ID))

	// one cargo state per (i,j)
	byPair := map[PortPair][]int{}
	var pairs []PortPair
	for _, a := range vv.Arcs {
		pp := PortPair{a.From, a.To}
		if _, ok := byPair[pp]; !ok {
			pairs = append(pairs, pp)
		}
		byPair[pp] = append(byPair[pp], a.Index)
	}
	for _, pp := range pairs {
		if len(byPair[pp]) < 2 {
			continue
		}
		b.constr(byPair[pp], ones(len(byPair[pp])), milp.LESS_EQUAL, 1, fmt.Sprintf("cargo_%s_%d_%d", v.ID, pp.From, pp.To))
	}

	// ballast in and ballast out at an intermediate port need a port call in between
	for _, p := range b.fm.Net.Ports() {
		if p == home {
			continue
		}
		var ind []int
		var val []float64
		var hasIn, hasOut bool
		for _, pos := range vv.in[p] {
			if vv.Arcs[pos].Mode == Ballast {
				ind = append(ind, vv.Arcs[pos].Index)
				val = append(val, 1)
				hasIn = true
			}
		}
		for _, pos := range vv.out[p] {
			if vv.Arcs[pos].Mode == Ballast {
				ind = append(ind, vv.Arcs[pos].Index)
				val = append(val, 1)
				hasOut = true
			}
		}
		if !hasIn || !hasOut {
			continue
		}
		for _, trig := range []map[PortCommodity]int{vv.Load, vv.Unload} {
			for _, pc := range sortedPortCommodities(trig) {
				if pc.Port == p {
					ind = append(ind, trig[pc])
					val = append(val, -1)
				}
			}
		}
		b.constr(ind, val, milp.LESS_EQUAL, 1, fmt.Sprintf("ballast_chain_%s_%d", v.ID, p))
	}
}

// addCleaning creates the port and at-sea cleaning switches. A commodity pair
// with no cleaning time cannot be switched, so the combination is forbidden.
func (b *builder) addCleaning(vv *VesselVars) {
	net, p := b.fm.Net, b.p
	v := vv.Vessel
	home := v.HomePort

	unloadsAt := map[PortID][]Commodity{}
	loadsAt := map[PortID][]Commodity{}
	for _, pc := range sortedPortCommodities(vv.Unload) {
		unloadsAt[pc.Port] = append(unloadsAt[pc.Port], pc.Commodity)
	}
	for _, pc := range sortedPortCommodities(vv.Load) {
		loadsAt[pc.Port] = append(loadsAt[pc.Port], pc.Commodity)
	}

	for _, port := range net.Ports() {
		if port == home {
			continue
		}
		var tInd []int
		var tVal []float64
		for _, k1 := range unloadsAt[port] {
			for _, k2 := range loadsAt[port] {
				if k1 == k2 {
					continue
				}
				u := vv.Unload[PortCommodity{port, k1}]
				l := vv.Load[PortCommodity{port, k2}]
				base := fmt.Sprintf("%s_%d_%d_%d", v.ID, port, k1, k2)
				days, err := net.CleaningTime(k1, k2)
				if err != nil {
					b.drop("clean "+CommodityPair{k1, k2}.String(), err)
					b.constr([]int{u, l}, []float64{1, 1}, milp.LESS_EQUAL, 1, "noclean_port_"+base)
					continue
				}
				c := b.m.AddVar("portclean_"+base, milp.BINARY, 0, 1, 0)
				vv.PortClean[PortSwitch{port, CommodityPair{k1, k2}}] = c
				b.constr([]int{c, u, l}, []float64{1, -1, -1}, milp.GREATER_EQUAL, -1, "portclean_lb_"+base)
				b.constr([]int{c, u}, []float64{1, -1}, milp.LESS_EQUAL, 0, "portclean_u_"+base)
				b.constr([]int{c, l}, []float64{1, -1}, milp.LESS_EQUAL, 0, "portclean_l_"+base)
				tInd = append(tInd, c)
				tVal = append(tVal, -days)
			}
		}
		if len(tInd) == 0 {
			continue
		}
		t := b.m.AddVar(fmt.Sprintf("portcleantime_%s_%d", v.ID, port), milp.CONTINUOUS, 0, p.MaxVoyageDays, 0)
		vv.PortCleanTime[port] = t
		b.cost(CatOpex, t, v.Spec.Opex)
		b.cost(CatCleaning, t, p.CleaningCostPerDay)
		b.constr(append([]int{t}, tInd...), append([]float64{1}, tVal...), milp.GREATER_EQUAL, 0,
			fmt.Sprintf("portcleantime_%s_%d", v.ID, port))
	}

	for _, a := range vv.Arcs {
		if a.Mode != Ballast || a.From == home || a.To == home {
			continue
		}
		var tInd []int
		var tVal []float64
		for _, k1 := range unloadsAt[a.From] {
			for _, k2 := range loadsAt[a.To] {
				if k1 == k2 {
					continue
				}
				u := vv.Unload[PortCommodity{a.From, k1}]
				l := vv.Load[PortCommodity{a.To, k2}]
				base := fmt.Sprintf("%s_%d_%d_%d_%d", v.ID, a.From, a.To, k1, k2)
				days, err := net.CleaningTime(k1, k2)
				if err != nil {
					b.drop("clean "+CommodityPair{k1, k2}.String(), err)
					b.constr([]int{u, a.Index, l}, []float64{1, 1, 1}, milp.LESS_EQUAL, 2, "noclean_sea_"+base)
					continue
				}
				c := b.m.AddVar("seaclean_"+base, milp.BINARY, 0, 1, 0)
				vv.SeaClean[SeaSwitch{PortPair{a.From, a.To}, CommodityPair{k1, k2}}] = c
				b.constr([]int{c, u, a.Index, l}, []float64{1, -1, -1, -1}, milp.GREATER_EQUAL, -2, "seaclean_lb_"+base)
				for _, term := range []int{u, a.Index, l} {
					b.constr([]int{c, term}, []float64{1, -1}, milp.LESS_EQUAL, 0, "seaclean_ub_"+base)
				}
				tInd = append(tInd, c)
				tVal = append(tVal, -days)
			}
		}
		if len(tInd) == 0 {
			continue
		}
		t := b.m.AddVar(fmt.Sprintf("seacleantime_%s_%d_%d", v.ID, a.From, a.To), milp.CONTINUOUS, 0, p.MaxVoyageDays, 0)
		vv.SeaCleanTime[PortPair{a.From, a.To}] = t
		b.cost(CatCleaning, t, p.CleaningCostPerDay)
		b.constr(append([]int{t}, tInd...), append([]float64{1}, tVal...), milp.GREATER_EQUAL, 0,
			fmt.Sprintf("seacleantime_%s_%d_%d", v.ID, a.From, a.To))
	}
}

// addVoyageBounds caps stops and days; both rows are scaled by buy so an
// unbought vessel has every arc and cleaning time at zero.
func (b *builder) addVoyageBounds(vv *VesselVars) {
	v := vv.Vessel
	stopInd := []int{vv.Buy}
	stopVal := []float64{-float64(b.p.MaxStops)}
	dayInd := []int{vv.Buy}
	dayVal := []float64{-b.p.MaxVoyageDays}
	for _, a := range vv.Arcs {
		stopInd = append(stopInd, a.Index)
		stopVal = append(stopVal, 1)
		dayInd = append(dayInd, a.Index)
		dayVal = append(dayVal, a.Days)
	}
	for _, t := range sortedVarIndices(vv.PortCleanTime) {
		dayInd = append(dayInd, t)
		dayVal = append(dayVal, 1)
	}
	for _, t := range sortedVarIndices(vv.SeaCleanTime) {
		dayInd = append(dayInd, t)
		dayVal = append(dayVal, 1)
	}
	b.constr(stopInd, stopVal, milp.LESS_EQUAL, 0, "stops_"+v.ID)
	b.constr(dayInd, dayVal, milp.LESS_EQUAL, 0, "days_"+v.ID)
}

// VesselByID returns the variables of vessel id.
func (fm *FleetModel) VesselByID(id string) (*VesselVars, bool) {
	for _, vv := range fm.Vessels {
		if vv.Vessel.ID == id {
			return vv, true
		}
	}
	return nil, false
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func sortedPortCommodities[V any](m map[PortCommodity]V) []PortCommodity {
	out := make([]PortCommodity, 0, len(m))
	for pc := range m {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}

func sortedVarIndices[K comparable](m map[K]int) []int {
	out := make([]int, 0, len(m))
	for _, i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
