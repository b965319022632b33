package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"git.solver4all.com/azaryc2s/fleetmip"
)

// commodityPool holds the HS6 codes scenarios draw from, with the vessel
// types allowed to carry each one.
var commodityPool = []struct {
	code  int
	types []string
}{
	{100199, []string{"bulker", "combi"}}, // wheat
	{120190, []string{"bulker", "combi"}}, // soya beans
	{252329, []string{"bulker"}},          // cement
	{260111, []string{"bulker", "combi"}}, // iron ore
	{270900, []string{"tanker", "combi"}}, // crude
	{271012, []string{"tanker"}},          // light oils
}

type genOptions struct {
	name        string
	ports       int
	commodities int
	legs        int
	vessels     int
	detour      float64
}

func main() {
	app := cli.NewApp()
	app.Name = "fleetmip-generator"
	app.Usage = "generate random fleet scenarios"
	app.Flags = []cli.Flag{
		cli.IntSliceFlag{Name: "n", Usage: "List of port counts"},
		cli.IntSliceFlag{Name: "m", Usage: "List of vessels per type"},
		cli.IntFlag{Name: "k", Value: 3, Usage: "Number of commodities per scenario"},
		cli.IntFlag{Name: "legs", Value: 8, Usage: "Number of demand legs per scenario"},
		cli.IntFlag{Name: "count", Value: 1, Usage: "Number of scenarios per combination"},
		cli.Int64Flag{Name: "seed", Usage: "Random seed. 0 uses the clock"},
		cli.Float64Flag{Name: "detour", Value: 1.15, Usage: "Sea route factor over the great circle distance"},
		cli.StringFlag{Name: "name", Value: "fleet", Usage: "Name prefix for the scenarios"},
		cli.StringFlag{Name: "outputDir", Value: ".", Usage: "Output directory"},
	}
	app.Action = func(c *cli.Context) error {
		seed := c.Int64("seed")
		if seed == 0 {
			seed = rand.Int63()
		}
		rnd := rand.New(rand.NewSource(seed))
		ports, vessels := c.IntSlice("n"), c.IntSlice("m")
		if len(ports) == 0 {
			ports = []int{5}
		}
		if len(vessels) == 0 {
			vessels = []int{1}
		}
		for l := 0; l < c.Int("count"); l++ {
			for _, n := range ports {
				for _, m := range vessels {
					opts := genOptions{
						name:        fmt.Sprintf("%s_%d_%d_%d", c.String("name"), n, m, l),
						ports:       n,
						commodities: c.Int("k"),
						legs:        c.Int("legs"),
						vessels:     m,
						detour:      c.Float64("detour"),
					}
					s := generate(rnd, opts)
					s.Comment = fmt.Sprintf("%s scenario Nr. %d with %d ports, %d vessels per type and %d legs", c.String("name"), l, n, m, len(s.Demand))
					if err := writeScenario(c.String("outputDir"), s); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		fleetmip.Log(fleetmip.LvlError, "%v", err)
		os.Exit(1)
	}
}

func generate(rnd *rand.Rand, o genOptions) *fleetmip.Scenario {
	s := &fleetmip.Scenario{Name: o.name, Seed: rnd.Int63()}

	k := o.commodities
	if k < 1 {
		k = 1
	}
	if k > len(commodityPool) {
		k = len(commodityPool)
	}
	picked := rnd.Perm(len(commodityPool))[:k]
	codes := make([]int, 0, k)
	compliance := map[string][]int{}
	for _, i := range picked {
		c := commodityPool[i]
		codes = append(codes, c.code)
		for _, t := range c.types {
			compliance[t] = append(compliance[t], c.code)
		}
		low := 4 + rnd.Float64()*4
		s.Commodities = append(s.Commodities, fleetmip.ScenarioCommodity{
			Code:       fleetmip.Commodity(c.code),
			LoadRate:   float64(4000 + 1000*rnd.Intn(8)),
			UnloadRate: float64(3000 + 1000*rnd.Intn(8)),
			Freight: &fleetmip.ScenarioRate{
				ReferenceDistance: float64(2000 + 500*rnd.Intn(7)),
				LowRate:           math.Round(low*100) / 100,
				HighRate:          math.Round((low+4+rnd.Float64()*8)*100) / 100,
			},
		})
	}
	s.Compliance = compliance

	coords := make([]fleetmip.Port, o.ports)
	for i := 0; i < o.ports; i++ {
		p := fleetmip.ScenarioPort{
			ID:   fleetmip.PortID(i),
			Name: fmt.Sprintf("Port %d", i),
			Lat:  math.Round((-40+rnd.Float64()*100)*1000) / 1000,
			Lon:  math.Round((-60+rnd.Float64()*180)*1000) / 1000,
			Fee:  float64(500 + 100*rnd.Intn(40)),
		}
		for _, code := range codes {
			switch rnd.Intn(3) {
			case 0:
				p.Exports = append(p.Exports, code)
			case 1:
				p.Imports = append(p.Imports, code)
			}
		}
		s.Ports = append(s.Ports, p)
		coords[i] = fleetmip.Port{Lat: p.Lat, Lon: p.Lon}
	}

	dist := fleetmip.CalcDistanceMatrix(coords, o.detour)
	s.Distances.Keys = make([]fleetmip.PortID, o.ports)
	s.Distances.Values = make([][]*float64, o.ports)
	for i := range dist {
		s.Distances.Keys[i] = fleetmip.PortID(i)
		s.Distances.Values[i] = make([]*float64, o.ports)
		for j := range dist[i] {
			if i != j {
				d := dist[i][j]
				s.Distances.Values[i][j] = &d
			}
		}
	}

	s.Cleaning.Keys = make([]fleetmip.Commodity, k)
	s.Cleaning.Values = make([][]*float64, k)
	for i, a := range codes {
		s.Cleaning.Keys[i] = fleetmip.Commodity(a)
		s.Cleaning.Values[i] = make([]*float64, k)
		for j := range codes {
			days := 0.0
			if i != j {
				// roughly one pair in six cannot be cleaned at all
				if rnd.Intn(6) == 0 {
					continue
				}
				days = float64(1 + rnd.Intn(4))
			}
			s.Cleaning.Values[i][j] = &days
		}
	}

	specs := []fleetmip.ScenarioVesselType{
		{Type: "tanker", Price: 4.5e7, Capacity: 50000, Opex: 9000,
			Ballast: fleetmip.ScenarioCurve{Speed: 13, Rate: 24}, Laden: fleetmip.ScenarioCurve{Speed: 12.5, Rate: 30}},
		{Type: "bulker", Price: 3e7, Capacity: 60000, Opex: 7500,
			Ballast: fleetmip.ScenarioCurve{Speed: 13.5, Rate: 22}, Laden: fleetmip.ScenarioCurve{Speed: 12, Rate: 28}},
		{Type: "combi", Price: 5.5e7, Capacity: 45000, Opex: 10000,
			Ballast: fleetmip.ScenarioCurve{Speed: 13, Rate: 25}, Laden: fleetmip.ScenarioCurve{Speed: 12, Rate: 31}},
	}
	for _, vt := range specs {
		if len(compliance[vt.Type]) == 0 {
			continue
		}
		vt.Count = o.vessels
		vt.HomePort = fleetmip.PortID(rnd.Intn(o.ports))
		s.VesselTypes = append(s.VesselTypes, vt)
	}
	if len(s.VesselTypes) == 0 {
		vt := specs[2]
		vt.Count = o.vessels
		s.VesselTypes = append(s.VesselTypes, vt)
	}

	type lane struct {
		o, d fleetmip.PortID
		k    int
	}
	var lanes []lane
	for _, from := range s.Ports {
		for _, to := range s.Ports {
			if from.ID == to.ID {
				continue
			}
			for _, ex := range from.Exports {
				for _, im := range to.Imports {
					if ex == im {
						lanes = append(lanes, lane{from.ID, to.ID, ex})
					}
				}
			}
		}
	}
	for i := 0; i < o.legs && len(lanes) > 0; i++ {
		ln := lanes[rnd.Intn(len(lanes))]
		s.Demand = append(s.Demand, fleetmip.ScenarioLeg{
			ID:          fmt.Sprintf("L%03d", i+1),
			Origin:      ln.o,
			Dest:        ln.d,
			Commodity:   fleetmip.Commodity(ln.k),
			BaseRevenue: float64(50000 * (1 + rnd.Intn(10))),
		})
	}
	return s
}

func writeScenario(dir string, s *fleetmip.Scenario) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", s.Name, err)
	}
	fileName := filepath.Join(dir, s.Name+".yaml")
	if err := os.WriteFile(fileName, out, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", fileName, err)
	}
	fleetmip.Log(fleetmip.LvlInfo, "wrote %s with %d ports and %d legs", fileName, len(s.Ports), len(s.Demand))
	return nil
}
