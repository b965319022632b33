package fleetmip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	wheat  Commodity = 100199
	crude  Commodity = 270900
	cement Commodity = 252329
)

func testParams() ModelParams {
	return ModelParams{
		FuelPrice:          100,
		HandlingCostPerDay: 500,
		CleaningCostPerDay: 100,
		CapexFactor:        0.001,
		UnservedPenalty:    1000,
		MaxStops:           12,
		MaxVoyageDays:      90,
	}
}

func testTanker(id string, home PortID) Vessel {
	return Vessel{
		ID:       id,
		Name:     "MV " + id,
		Type:     Tanker,
		Price:    1e6,
		HomePort: home,
		Spec: VesselTechSpec{
			Capacity: 10000,
			Ballast:  FuelCurve{Speed: 12, Rate: 20},
			Laden:    FuelCurve{Speed: 12, Rate: 25},
			Opex:     1000,
		},
	}
}

func symmetric(ids []PortID, nm float64) map[PortPair]float64 {
	d := map[PortPair]float64{}
	for _, i := range ids {
		for _, j := range ids {
			if i != j {
				d[PortPair{i, j}] = nm
			}
		}
	}
	return d
}

// twoPortNetwork: home 0 exports wheat, port 1 imports it, 1200 nm apart.
func twoPortNetwork(t *testing.T) *Network {
	t.Helper()
	var compliance [numVesselTypes]CommoditySet
	compliance[Tanker] = NewCommoditySet(wheat)
	net, err := NewNetwork(NetworkData{
		Ports: []Port{
			{ID: 0, Name: "Home", Fee: 100, Exports: NewCommoditySet(wheat)},
			{ID: 1, Name: "Away", Fee: 200, Imports: NewCommoditySet(wheat)},
		},
		Commodities: []CommodityInfo{{Code: wheat, LoadRate: 5000, UnloadRate: 5000}},
		Freight:     map[Commodity]FreightRate{wheat: {ReferenceDistance: 2000, LowRate: 5, HighRate: 15}},
		Distances:   symmetric([]PortID{0, 1}, 1200),
		Compliance:  compliance,
	})
	require.NoError(t, err)
	return net
}

// threePortNetwork: wheat 0->1, crude 1->2, cleaning wheat->crude takes 2 days.
func threePortNetwork(t *testing.T) *Network {
	t.Helper()
	var compliance [numVesselTypes]CommoditySet
	compliance[Tanker] = NewCommoditySet(wheat, crude)
	net, err := NewNetwork(NetworkData{
		Ports: []Port{
			{ID: 0, Fee: 100, Exports: NewCommoditySet(wheat)},
			{ID: 1, Fee: 100, Imports: NewCommoditySet(wheat), Exports: NewCommoditySet(crude)},
			{ID: 2, Fee: 100, Imports: NewCommoditySet(crude)},
		},
		Commodities: []CommodityInfo{
			{Code: wheat, LoadRate: 5000, UnloadRate: 5000},
			{Code: crude, LoadRate: 5000, UnloadRate: 5000},
		},
		Freight: map[Commodity]FreightRate{
			wheat: {ReferenceDistance: 2000, LowRate: 10, HighRate: 20},
			crude: {ReferenceDistance: 2000, LowRate: 10, HighRate: 20},
		},
		Distances:  symmetric([]PortID{0, 1, 2}, 600),
		Cleaning:   map[CommodityPair]float64{{wheat, crude}: 2, {crude, wheat}: 3},
		Compliance: compliance,
	})
	require.NoError(t, err)
	return net
}

// wheatCrudeNetwork builds a tanker network trading wheat and crude at 10-20 $/t.
func wheatCrudeNetwork(t *testing.T, ports []Port, dist map[PortPair]float64, cleaning map[CommodityPair]float64) *Network {
	t.Helper()
	var compliance [numVesselTypes]CommoditySet
	compliance[Tanker] = NewCommoditySet(wheat, crude)
	net, err := NewNetwork(NetworkData{
		Ports: ports,
		Commodities: []CommodityInfo{
			{Code: wheat, LoadRate: 5000, UnloadRate: 5000},
			{Code: crude, LoadRate: 5000, UnloadRate: 5000},
		},
		Freight: map[Commodity]FreightRate{
			wheat: {ReferenceDistance: 2000, LowRate: 10, HighRate: 20},
			crude: {ReferenceDistance: 2000, LowRate: 10, HighRate: 20},
		},
		Distances:  dist,
		Cleaning:   cleaning,
		Compliance: compliance,
	})
	require.NoError(t, err)
	return net
}

// seaSwitchNetwork: wheat 0->1 and crude 2->3, so a vessel serving both must
// clean on the ballast leg 1->2.
func seaSwitchNetwork(t *testing.T, cleaning map[CommodityPair]float64) *Network {
	t.Helper()
	return wheatCrudeNetwork(t, []Port{
		{ID: 0, Fee: 100, Exports: NewCommoditySet(wheat)},
		{ID: 1, Fee: 100, Imports: NewCommoditySet(wheat)},
		{ID: 2, Fee: 100, Exports: NewCommoditySet(crude)},
		{ID: 3, Fee: 100, Imports: NewCommoditySet(crude)},
	}, symmetric([]PortID{0, 1, 2, 3}, 600), cleaning)
}

var seaSwitchLegs = []DemandLeg{
	{ID: "W", Origin: 0, Dest: 1, Commodity: wheat},
	{ID: "C", Origin: 2, Dest: 3, Commodity: crude},
}

// chainNetwork: port 2 exports wheat to home 0, but 0->2 has no distance, so
// reaching 2 takes two ballast legs through the idle port 1.
func chainNetwork(t *testing.T) *Network {
	t.Helper()
	dist := map[PortPair]float64{{0, 1}: 600, {1, 0}: 600, {1, 2}: 600, {2, 1}: 600, {2, 0}: 600}
	return wheatCrudeNetwork(t, []Port{
		{ID: 0, Fee: 100, Imports: NewCommoditySet(wheat)},
		{ID: 1, Fee: 100},
		{ID: 2, Fee: 100, Exports: NewCommoditySet(wheat)},
	}, dist, nil)
}

func arcPos(t *testing.T, vv *VesselVars, from, to PortID, mode ArcMode) int {
	t.Helper()
	for pos, a := range vv.Arcs {
		if a.From == from && a.To == to && a.Mode == mode {
			return pos
		}
	}
	t.Fatalf("no %s arc %d->%d for %s", mode, from, to, vv.Vessel.ID)
	return -1
}
