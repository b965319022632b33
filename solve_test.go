package fleetmip

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.solver4all.com/azaryc2s/fleetmip/metrics"
	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

func solveParams() milp.Params {
	p := milp.DefaultParams()
	p.TimeLimit = 30 * time.Second
	p.MIPGap = 0
	return p
}

func TestSolve_TwoPortRoundTrip(t *testing.T) {
	fm, err := CreateFleetModel("two", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, testParams())
	require.NoError(t, err)
	m := metrics.NewSolverMetrics()

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams(), Metrics: m})
	require.NoError(t, err)

	assert.Equal(t, STATUS_OPTIMAL, sol.Status)
	assert.True(t, sol.Verified)
	assert.False(t, sol.Provisional)
	assert.Equal(t, []string{"L1"}, sol.Served)
	assert.Empty(t, sol.Unserved)

	transit := 1200.0 / 288
	laden := 70000 - 25*transit*100 - 1000*(transit+4) - 200 - 500*4
	ballast := -20*transit*100 - 1000*transit - 100
	want := laden + ballast - 1000
	assert.InDelta(t, want, sol.Objective, 1e-4)
	assert.InDelta(t, 70000, sol.Breakdown.Revenue, 1e-6)
	assert.InDelta(t, 1000, sol.Breakdown.Capex, 1e-6)
	assert.InDelta(t, 0, sol.Breakdown.Penalty, 1e-6)
	assert.InDelta(t, sol.Objective, sol.Breakdown.Net(), 1e-4)

	require.Len(t, sol.Vessels, 1)
	plan := sol.Vessels[0]
	assert.Equal(t, []PortID{0, 1, 0}, plan.Route)
	assert.Equal(t, 2, plan.Stops)
	assert.Equal(t, "LADEN", plan.Legs[0].Mode)
	assert.Equal(t, wheat, plan.Legs[0].Commodity)
	assert.Equal(t, "BALLAST", plan.Legs[1].Mode)
	assert.InDelta(t, 2400, plan.DistanceNM, 1e-9)
	assert.Empty(t, plan.Cleanings)

	fuel := 45 * transit
	assert.InDelta(t, fuel, sol.KPI.FuelTonnes, 1e-6)
	assert.InDelta(t, co2PerFuelTonne*fuel, sol.KPI.CO2Tonnes, 1e-6)
	assert.InDelta(t, sol.KPI.CO2Tonnes*1e6/(10000*1200), sol.KPI.EEOI, 1e-6)
	assert.InDelta(t, sol.KPI.CO2Tonnes*1e6/(10000*2400), sol.KPI.AER, 1e-6)
}

func TestSolve_PortCleaningBetweenCommodities(t *testing.T) {
	legs := []DemandLeg{
		{ID: "W", Origin: 0, Dest: 1, Commodity: wheat},
		{ID: "C", Origin: 1, Dest: 2, Commodity: crude},
	}
	fm, err := CreateFleetModel("three", threePortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, legs, testParams())
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"C", "W"}, sol.Served)
	require.Len(t, sol.Vessels, 1)
	plan := sol.Vessels[0]
	assert.Equal(t, []PortID{0, 1, 2, 0}, plan.Route)
	require.Len(t, plan.Cleanings, 1)
	clean := plan.Cleanings[0]
	assert.False(t, clean.AtSea)
	assert.Equal(t, PortID(1), clean.Port)
	assert.Equal(t, wheat, clean.FromCommodity)
	assert.Equal(t, crude, clean.ToCommodity)
	assert.Equal(t, 2.0, clean.Days)

	vv := fm.Vessels[0]
	assert.InDelta(t, 2, sol.Breakdown.Cleaning/fm.Params.CleaningCostPerDay, 1e-6)
	assert.Contains(t, vv.PortCleanTime, PortID(1))
}

// Home sits next to port 1 while the lucrative shuttle runs between 2 and 3,
// so the relaxation without subtour cuts prefers two disconnected cycles.
func TestSolve_EliminatesSubtours(t *testing.T) {
	var compliance [numVesselTypes]CommoditySet
	compliance[Tanker] = NewCommoditySet(wheat)
	all := NewCommoditySet(wheat)
	dist := symmetric([]PortID{0, 1, 2, 3}, 600)
	dist[PortPair{0, 1}] = 100
	dist[PortPair{1, 0}] = 100
	net, err := NewNetwork(NetworkData{
		Ports: []Port{
			{ID: 0, Exports: all, Imports: all},
			{ID: 1, Exports: all, Imports: all},
			{ID: 2, Exports: all, Imports: all},
			{ID: 3, Exports: all, Imports: all},
		},
		Commodities: []CommodityInfo{{Code: wheat, LoadRate: 5000, UnloadRate: 5000}},
		Freight:     map[Commodity]FreightRate{wheat: {ReferenceDistance: 2000, LowRate: 10, HighRate: 20}},
		Distances:   dist,
		Compliance:  compliance,
	})
	require.NoError(t, err)
	legs := []DemandLeg{
		{ID: "X", Origin: 0, Dest: 1, Commodity: wheat},
		{ID: "Y", Origin: 1, Dest: 0, Commodity: wheat},
		{ID: "A", Origin: 2, Dest: 3, Commodity: wheat},
		{ID: "B", Origin: 3, Dest: 2, Commodity: wheat},
	}
	fm, err := CreateFleetModel("shuttle", net, []Vessel{testTanker("TNK-001", 0)}, legs, testParams())
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.True(t, sol.Verified)
	assert.Empty(t, sol.Residual)
	assert.GreaterOrEqual(t, sol.LazyCuts, 1)
	assert.Len(t, sol.Served, 4)
	require.Len(t, sol.Vessels, 1)
	route := sol.Vessels[0].Route
	require.Len(t, route, 7)
	assert.Equal(t, PortID(0), route[0])
	assert.Equal(t, PortID(0), route[len(route)-1])
	assert.Contains(t, route, PortID(2))
	assert.Contains(t, route, PortID(3))
}

func TestSolve_NoProfitableVoyage(t *testing.T) {
	p := testParams()
	p.CapexFactor = 1
	fm, err := CreateFleetModel("idle", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, p)
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Empty(t, sol.Vessels)
	assert.Equal(t, []string{"L1"}, sol.Unserved)
	assert.InDelta(t, -1000, sol.Objective, 1e-6)
	assert.InDelta(t, 1000, sol.Breakdown.Penalty, 1e-6)
}

func TestSolve_CancelledContext(t *testing.T) {
	fm, err := CreateFleetModel("two", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, testParams())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Solve(ctx, fm, SolveOptions{Params: solveParams()})
	assert.ErrorIs(t, err, ErrNoIncumbent)
}

type stubEngine struct {
	res *milp.Result
	err error
}

func (e stubEngine) Optimize(context.Context, *milp.Model, milp.Params) (*milp.Result, error) {
	return e.res, e.err
}

func TestSolve_EngineOutcomes(t *testing.T) {
	build := func() *FleetModel {
		fm, err := CreateFleetModel("two", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, testParams())
		require.NoError(t, err)
		return fm
	}

	_, err := Solve(context.Background(), build(), SolveOptions{Engine: stubEngine{err: milp.ErrLazyRoundsExceeded}})
	assert.ErrorIs(t, err, ErrRepairExhausted)
	assert.ErrorIs(t, err, milp.ErrLazyRoundsExceeded)

	_, err = Solve(context.Background(), build(), SolveOptions{Engine: stubEngine{res: &milp.Result{Status: milp.INFEASIBLE}}})
	assert.ErrorIs(t, err, ErrInfeasibleModel)

	fm := build()
	x := make([]float64, fm.Model.NumVars())
	res := &milp.Result{Status: milp.TIME_LIMIT, X: x, ObjVal: -1000, ObjBound: 500, Gap: 1.5}
	sol, err := Solve(context.Background(), fm, SolveOptions{Engine: stubEngine{res: res}})
	require.NoError(t, err)
	assert.Equal(t, STATUS_TIME_LIMIT, sol.Status)
	assert.True(t, sol.Provisional)
	assert.True(t, sol.Verified)
	assert.Equal(t, 1.5, sol.Gap)
	assert.Equal(t, 500.0, sol.Bound)
}

func TestSolve_ResidualSubtourIsProvisional(t *testing.T) {
	fm := fourPortModel(t)
	cand := candidate(t, fm, PortPair{0, 1}, PortPair{1, 0}, PortPair{2, 3}, PortPair{3, 2})
	res := &milp.Result{Status: milp.OPTIMAL, X: cand.X, ObjVal: fm.Model.Objective(cand.X)}

	sol, err := Solve(context.Background(), fm, SolveOptions{Engine: stubEngine{res: res}})
	require.NoError(t, err)

	assert.False(t, sol.Verified)
	assert.True(t, sol.Provisional)
	require.Len(t, sol.Residual, 1)
	assert.Equal(t, []PortID{2, 3}, sol.Residual[0].Ports)
	require.Len(t, sol.Vessels, 1)
	assert.Equal(t, 4, sol.Vessels[0].Stops)
}

func TestSolve_SeaCleaningBetweenCommodities(t *testing.T) {
	net := seaSwitchNetwork(t, map[CommodityPair]float64{{wheat, crude}: 2})
	fm, err := CreateFleetModel("sea", net, []Vessel{testTanker("TNK-001", 0)}, seaSwitchLegs, testParams())
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Equal(t, STATUS_OPTIMAL, sol.Status)
	assert.ElementsMatch(t, []string{"C", "W"}, sol.Served)
	require.Len(t, sol.Vessels, 1)
	plan := sol.Vessels[0]
	assert.Equal(t, []PortID{0, 1, 2, 3, 0}, plan.Route)
	require.Len(t, plan.Cleanings, 1)
	clean := plan.Cleanings[0]
	assert.True(t, clean.AtSea)
	assert.Equal(t, PortID(1), clean.LegFrom)
	assert.Equal(t, PortID(2), clean.LegTo)
	assert.Equal(t, wheat, clean.FromCommodity)
	assert.Equal(t, crude, clean.ToCommodity)
	assert.Equal(t, 2.0, clean.Days)
	assert.InDelta(t, 200, sol.Breakdown.Cleaning, 1e-6)
	assert.InDelta(t, sol.Objective, sol.Breakdown.Net(), 1e-4)
}

func TestSolve_LimitedSearchReturns(t *testing.T) {
	net := seaSwitchNetwork(t, map[CommodityPair]float64{{wheat, crude}: 2})
	fm, err := CreateFleetModel("sea", net, []Vessel{testTanker("TNK-001", 0)}, seaSwitchLegs, testParams())
	require.NoError(t, err)
	p := solveParams()
	p.NodeLimit = 1
	p.TimeLimit = 2 * time.Second

	type outcome struct {
		sol *Solution
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sol, err := Solve(context.Background(), fm, SolveOptions{Params: p})
		done <- outcome{sol, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			assert.ErrorIs(t, out.err, ErrNoIncumbent)
			return
		}
		assert.Contains(t, []string{STATUS_NODE_LIMIT, STATUS_TIME_LIMIT}, out.sol.Status)
		assert.True(t, out.sol.Provisional)
	case <-time.After(20 * time.Second):
		t.Fatal("solve ignored its node and time limits")
	}
}

func TestSolve_UndefinedSeaCleaningForbidsSwitch(t *testing.T) {
	fm, err := CreateFleetModel("sea", seaSwitchNetwork(t, nil), []Vessel{testTanker("TNK-001", 0)}, seaSwitchLegs, testParams())
	require.NoError(t, err)

	var miss *LookupMiss
	found := false
	for _, e := range fm.Report.Dropped {
		if errors.As(e, &miss) && miss.Table == "cleaning_time" {
			found = true
		}
	}
	assert.True(t, found, "cleaning lookup miss not reported")

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Equal(t, []string{"W"}, sol.Served)
	assert.Equal(t, []string{"C"}, sol.Unserved)
	require.Len(t, sol.Vessels, 1)
	assert.Equal(t, []PortID{0, 1, 0}, sol.Vessels[0].Route)
	assert.Empty(t, sol.Vessels[0].Cleanings)
	assert.InDelta(t, 1000, sol.Breakdown.Penalty, 1e-6)
}

func TestSolve_UndefinedPortCleaningForbidsSwitch(t *testing.T) {
	net := wheatCrudeNetwork(t, []Port{
		{ID: 0, Fee: 100, Exports: NewCommoditySet(wheat)},
		{ID: 1, Fee: 100, Imports: NewCommoditySet(wheat), Exports: NewCommoditySet(crude)},
		{ID: 2, Fee: 100, Imports: NewCommoditySet(crude)},
	}, symmetric([]PortID{0, 1, 2}, 600), nil)
	legs := []DemandLeg{
		{ID: "W", Origin: 0, Dest: 1, Commodity: wheat},
		{ID: "C", Origin: 1, Dest: 2, Commodity: crude},
	}
	fm, err := CreateFleetModel("port", net, []Vessel{testTanker("TNK-001", 0)}, legs, testParams())
	require.NoError(t, err)
	require.NotEmpty(t, fm.Report.Dropped)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Equal(t, []string{"W"}, sol.Served)
	assert.Equal(t, []string{"C"}, sol.Unserved)
	require.Len(t, sol.Vessels, 1)
	assert.Equal(t, []PortID{0, 1, 0}, sol.Vessels[0].Route)
	assert.Empty(t, sol.Vessels[0].Cleanings)
}

func TestSolve_MaxStopsBinds(t *testing.T) {
	legs := []DemandLeg{
		{ID: "W", Origin: 0, Dest: 1, Commodity: wheat},
		{ID: "C", Origin: 1, Dest: 2, Commodity: crude},
	}
	p := testParams()
	p.MaxStops = 2
	fm, err := CreateFleetModel("stops", threePortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, legs, p)
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Equal(t, []string{"W"}, sol.Served)
	assert.Equal(t, []string{"C"}, sol.Unserved)
	require.Len(t, sol.Vessels, 1)
	assert.LessOrEqual(t, sol.Vessels[0].Stops, 2)
	assert.Equal(t, []PortID{0, 1, 0}, sol.Vessels[0].Route)
}

func TestSolve_MaxVoyageDaysBinds(t *testing.T) {
	// the laden leg alone takes 1200/288 days at sea plus 4 days handling
	p := testParams()
	p.MaxVoyageDays = 5
	fm, err := CreateFleetModel("days", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, p)
	require.NoError(t, err)

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Empty(t, sol.Vessels)
	assert.Equal(t, []string{"L1"}, sol.Unserved)
	assert.InDelta(t, -1000, sol.Objective, 1e-6)
}

func TestSolve_NoConsecutiveBallastThroughIdlePort(t *testing.T) {
	legs := []DemandLeg{{ID: "W", Origin: 2, Dest: 0, Commodity: wheat}}
	fm, err := CreateFleetModel("chain", chainNetwork(t), []Vessel{testTanker("TNK-001", 0)}, legs, testParams())
	require.NoError(t, err)

	var cfg *ConfigError
	found := false
	for _, e := range fm.Report.Dropped {
		if errors.As(e, &cfg) && cfg.Table == "distance" {
			found = true
		}
	}
	assert.True(t, found, "missing distance not reported")

	sol, err := Solve(context.Background(), fm, SolveOptions{Params: solveParams()})
	require.NoError(t, err)

	assert.Empty(t, sol.Vessels)
	assert.Equal(t, []string{"W"}, sol.Unserved)
	assert.InDelta(t, -1000, sol.Objective, 1e-6)
}

func TestSolve_NumericFailureIsNotInfeasible(t *testing.T) {
	build := func() *FleetModel {
		fm, err := CreateFleetModel("two", twoPortNetwork(t), []Vessel{testTanker("TNK-001", 0)}, []DemandLeg{wheatLeg}, testParams())
		require.NoError(t, err)
		return fm
	}

	_, err := Solve(context.Background(), build(), SolveOptions{Engine: stubEngine{res: &milp.Result{Status: milp.SUBOPTIMAL, NumericFailures: 1}}})
	assert.ErrorIs(t, err, ErrNoIncumbent)
	assert.NotErrorIs(t, err, ErrInfeasibleModel)

	fm := build()
	x := make([]float64, fm.Model.NumVars())
	res := &milp.Result{Status: milp.SUBOPTIMAL, X: x, ObjVal: -1000, ObjBound: math.Inf(1), Gap: math.Inf(1), NumericFailures: 2}
	sol, err := Solve(context.Background(), fm, SolveOptions{Engine: stubEngine{res: res}})
	require.NoError(t, err)
	assert.Equal(t, STATUS_SUBOPTIMAL, sol.Status)
	assert.True(t, sol.Provisional)
	assert.Equal(t, 1.0, sol.Gap)
	assert.Equal(t, -1000.0, sol.Bound)
}
