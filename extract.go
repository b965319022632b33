package fleetmip

import (
	"math"
	"sort"

	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

// CO2 tonnes emitted per tonne of fuel burned.
const co2PerFuelTonne = 3.114

type Leg struct {
	From       PortID    `json:"from"`
	To         PortID    `json:"to"`
	Mode       string    `json:"mode"`
	Commodity  Commodity `json:"commodity,omitempty"`
	DistanceNM float64   `json:"distance_nm"`
	Days       float64   `json:"days"`
	Revenue    float64   `json:"revenue,omitempty"`
}

type CleaningEvent struct {
	Vessel        string    `json:"vessel"`
	AtSea         bool      `json:"at_sea"`
	Port          PortID    `json:"port,omitempty"`
	LegFrom       PortID    `json:"leg_from,omitempty"`
	LegTo         PortID    `json:"leg_to,omitempty"`
	FromCommodity Commodity `json:"from_commodity"`
	ToCommodity   Commodity `json:"to_commodity"`
	Days          float64   `json:"days"`
}

type HandlingEvent struct {
	Port      PortID    `json:"port"`
	Commodity Commodity `json:"commodity"`
	Load      bool      `json:"load"`
}

type VesselPlan struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	HomePort   PortID          `json:"home_port"`
	Route      []PortID        `json:"route"`
	Legs       []Leg           `json:"legs"`
	Handling   []HandlingEvent `json:"handling"`
	Cleanings  []CleaningEvent `json:"cleanings"`
	Days       float64         `json:"days"`
	Stops      int             `json:"stops"`
	DistanceNM float64         `json:"distance_nm"`
	FuelTonnes float64         `json:"fuel_tonnes"`
}

type ObjectiveBreakdown struct {
	Revenue  float64 `json:"revenue"`
	Fuel     float64 `json:"fuel"`
	Opex     float64 `json:"opex"`
	PortFees float64 `json:"port_fees"`
	Handling float64 `json:"handling"`
	Cleaning float64 `json:"cleaning"`
	Capex    float64 `json:"capex"`
	Penalty  float64 `json:"penalty"`
}

// Net is revenue minus every cost category.
func (b ObjectiveBreakdown) Net() float64 {
	return b.Revenue - b.Fuel - b.Opex - b.PortFees - b.Handling - b.Cleaning - b.Capex - b.Penalty
}

// KPIs are the emission indicators of a plan. EEOI is grams CO2 per cargo
// tonne-mile; AER is grams CO2 per deadweight tonne-mile sailed.
type KPIs struct {
	FuelTonnes      float64 `json:"fuel_tonnes"`
	CO2Tonnes       float64 `json:"co2_tonnes"`
	CargoTonneMiles float64 `json:"cargo_tonne_miles"`
	DwtMiles        float64 `json:"dwt_miles"`
	EEOI            float64 `json:"eeoi"`
	AER             float64 `json:"aer"`
}

// Solution is the read-only result bundle of one solve.
type Solution struct {
	Scenario    string             `json:"scenario"`
	RunID       string             `json:"run_id,omitempty"`
	Status      string             `json:"status"`
	Verified    bool               `json:"verified"`
	Provisional bool               `json:"provisional"`
	Objective   float64            `json:"objective"`
	Bound       float64            `json:"bound"`
	Gap         float64            `json:"gap"`
	Breakdown   ObjectiveBreakdown `json:"breakdown"`
	Vessels     []VesselPlan       `json:"vessels"`
	Served      []string           `json:"served"`
	Unserved    []string           `json:"unserved"`
	KPI         KPIs               `json:"kpi"`
	Residual    []Subtour          `json:"residual_subtours,omitempty"`

	Nodes    int     `json:"nodes"`
	LazyCuts int     `json:"lazy_cuts"`
	Time     string  `json:"time"`
	System   SysInfo `json:"system"`
	Comment  string  `json:"comment,omitempty"`
}

// ExtractSolution reads a final assignment of fm. The oracle is re-run on x:
// a plan with a residual subtour is returned with Verified=false.
func ExtractSolution(fm *FleetModel, x []float64) *Solution {
	cand := milp.Candidate{X: x, Obj: fm.Model.Objective(x)}
	sol := &Solution{Scenario: fm.Name, Objective: cand.Obj, Verified: true}

	sol.Breakdown = ObjectiveBreakdown{
		Revenue:  fm.Terms[CatRevenue].Eval(x),
		Fuel:     fm.Terms[CatFuel].Eval(x),
		Opex:     fm.Terms[CatOpex].Eval(x),
		PortFees: fm.Terms[CatPortFees].Eval(x),
		Handling: fm.Terms[CatHandling].Eval(x),
		Cleaning: fm.Terms[CatCleaning].Eval(x),
		Capex:    fm.Terms[CatCapex].Eval(x),
		Penalty:  fm.Terms[CatPenalty].Eval(x),
	}

	for i, l := range fm.Legs {
		if cand.IsSet(fm.Serve[i]) {
			sol.Served = append(sol.Served, l.ID)
		} else {
			sol.Unserved = append(sol.Unserved, l.ID)
		}
	}

	for _, vv := range fm.Vessels {
		if !cand.IsSet(vv.Buy) {
			continue
		}
		if residual := FindSubtours(vv, cand); len(residual) > 0 {
			sol.Verified = false
			sol.Residual = append(sol.Residual, residual...)
		}
		plan := extractVessel(fm, vv, cand)
		sol.KPI.FuelTonnes += plan.FuelTonnes
		for _, l := range plan.Legs {
			if l.Mode == Laden.String() {
				sol.KPI.CargoTonneMiles += vv.Vessel.Spec.Capacity * l.DistanceNM
			}
			sol.KPI.DwtMiles += vv.Vessel.Spec.Capacity * l.DistanceNM
		}
		sol.Vessels = append(sol.Vessels, plan)
	}
	sol.Provisional = !sol.Verified

	sol.KPI.CO2Tonnes = co2PerFuelTonne * sol.KPI.FuelTonnes
	if sol.KPI.CargoTonneMiles > 0 {
		sol.KPI.EEOI = sol.KPI.CO2Tonnes * 1e6 / sol.KPI.CargoTonneMiles
	}
	if sol.KPI.DwtMiles > 0 {
		sol.KPI.AER = sol.KPI.CO2Tonnes * 1e6 / sol.KPI.DwtMiles
	}
	return sol
}

func extractVessel(fm *FleetModel, vv *VesselVars, cand milp.Candidate) VesselPlan {
	v := vv.Vessel
	plan := VesselPlan{ID: v.ID, Name: v.Name, Type: v.Type.String(), HomePort: v.HomePort}

	var active []int
	for pos, a := range vv.Arcs {
		if cand.IsSet(a.Index) {
			active = append(active, pos)
		}
	}
	order := walkOrder(vv, active)
	if len(order) > 0 {
		plan.Route = append(plan.Route, vv.Arcs[order[0]].From)
	}
	for _, pos := range order {
		a := vv.Arcs[pos]
		leg := Leg{
			From:       a.From,
			To:         a.To,
			Mode:       a.Mode.String(),
			DistanceNM: a.DistanceNM,
			Days:       a.Days,
			Revenue:    a.Revenue,
		}
		if a.Mode == Laden {
			leg.Commodity = a.Commodity
		}
		plan.Legs = append(plan.Legs, leg)
		plan.Route = append(plan.Route, a.To)
		plan.Days += a.Days
		plan.DistanceNM += a.DistanceNM
		plan.FuelTonnes += a.FuelTonnes
		plan.Stops++
	}

	for _, pc := range sortedPortCommodities(vv.Load) {
		if cand.IsSet(vv.Load[pc]) {
			plan.Handling = append(plan.Handling, HandlingEvent{Port: pc.Port, Commodity: pc.Commodity, Load: true})
		}
	}
	for _, pc := range sortedPortCommodities(vv.Unload) {
		if cand.IsSet(vv.Unload[pc]) {
			plan.Handling = append(plan.Handling, HandlingEvent{Port: pc.Port, Commodity: pc.Commodity})
		}
	}

	for sw, i := range vv.PortClean {
		if !cand.IsSet(i) {
			continue
		}
		days, _ := fm.Net.CleaningTime(sw.From, sw.To)
		plan.Cleanings = append(plan.Cleanings, CleaningEvent{
			Vessel: v.ID, Port: sw.Port, FromCommodity: sw.CommodityPair.From, ToCommodity: sw.CommodityPair.To, Days: days,
		})
	}
	for sw, i := range vv.SeaClean {
		if !cand.IsSet(i) {
			continue
		}
		days, _ := fm.Net.CleaningTime(sw.CommodityPair.From, sw.CommodityPair.To)
		plan.Cleanings = append(plan.Cleanings, CleaningEvent{
			Vessel: v.ID, AtSea: true, LegFrom: sw.PortPair.From, LegTo: sw.PortPair.To,
			FromCommodity: sw.CommodityPair.From, ToCommodity: sw.CommodityPair.To, Days: days,
		})
	}
	sort.Slice(plan.Cleanings, func(i, j int) bool {
		a, b := plan.Cleanings[i], plan.Cleanings[j]
		if a.AtSea != b.AtSea {
			return !a.AtSea
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if a.LegFrom != b.LegFrom {
			return a.LegFrom < b.LegFrom
		}
		return a.FromCommodity < b.FromCommodity
	})
	for _, t := range sortedVarIndices(vv.PortCleanTime) {
		plan.Days += cand.X[t]
	}
	for _, t := range sortedVarIndices(vv.SeaCleanTime) {
		plan.Days += cand.X[t]
	}
	plan.Days = math.Round(plan.Days*1e6) / 1e6
	return plan
}

// walkOrder arranges the active arcs into a closed walk from the home port
// (Hierholzer). Arcs of residual subtours are appended after the walk.
func walkOrder(vv *VesselVars, active []int) []int {
	out := map[PortID][]int{}
	for _, pos := range active {
		a := vv.Arcs[pos]
		out[a.From] = append(out[a.From], pos)
	}
	used := make(map[int]bool, len(active))

	euler := func(start PortID) []int {
		var circuit []int
		type frame struct {
			port PortID
			via  int
		}
		stack := []frame{{port: start, via: -1}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			next := -1
			for len(out[top.port]) > 0 {
				pos := out[top.port][0]
				out[top.port] = out[top.port][1:]
				if !used[pos] {
					next = pos
					break
				}
			}
			if next >= 0 {
				used[next] = true
				stack = append(stack, frame{port: vv.Arcs[next].To, via: next})
				continue
			}
			stack = stack[:len(stack)-1]
			if top.via >= 0 {
				circuit = append(circuit, top.via)
			}
		}
		for i, j := 0, len(circuit)-1; i < j; i, j = i+1, j-1 {
			circuit[i], circuit[j] = circuit[j], circuit[i]
		}
		return circuit
	}

	order := euler(vv.Vessel.HomePort)
	for _, pos := range active {
		if !used[pos] {
			order = append(order, euler(vv.Arcs[pos].From)...)
		}
	}
	return order
}
