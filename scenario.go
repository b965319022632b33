package fleetmip

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.solver4all.com/azaryc2s/fleetmip/config"
	"git.solver4all.com/azaryc2s/fleetmip/milp"
)

// Scenario is the YAML scenario file. It is validated and converted to the
// typed Network, catalog and demand legs before anything reaches the model.
type Scenario struct {
	Name        string               `yaml:"name" validate:"required"`
	Comment     string               `yaml:"comment,omitempty"`
	Seed        int64                `yaml:"seed"`
	Ports       []ScenarioPort       `yaml:"ports" validate:"required,min=1,dive"`
	Commodities []ScenarioCommodity  `yaml:"commodities" validate:"dive"`
	Distances   Matrix[PortID]       `yaml:"distances"`
	Cleaning    Matrix[Commodity]    `yaml:"cleaning"`
	Compliance  map[string][]int     `yaml:"compliance"`
	VesselTypes []ScenarioVesselType `yaml:"vessel_types" validate:"required,min=1,dive"`
	Demand      []ScenarioLeg        `yaml:"demand" validate:"dive"`
}

type ScenarioPort struct {
	ID      PortID  `yaml:"id"`
	Name    string  `yaml:"name"`
	Lat     float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	Fee     float64 `yaml:"fee" validate:"gte=0"`
	Exports []int   `yaml:"exports,flow"`
	Imports []int   `yaml:"imports,flow"`
}

type ScenarioCommodity struct {
	Code       Commodity     `yaml:"code" validate:"required"`
	LoadRate   float64       `yaml:"load_rate" validate:"gt=0"`
	UnloadRate float64       `yaml:"unload_rate" validate:"gt=0"`
	Freight    *ScenarioRate `yaml:"freight,omitempty"`
}

type ScenarioRate struct {
	ReferenceDistance float64 `yaml:"reference_distance" validate:"gt=1000"`
	LowRate           float64 `yaml:"low_rate" validate:"gte=0"`
	HighRate          float64 `yaml:"high_rate" validate:"gte=0"`
}

type ScenarioCurve struct {
	Speed float64 `yaml:"speed" validate:"gt=0"`
	Rate  float64 `yaml:"rate" validate:"gte=0"`
}

type ScenarioVesselType struct {
	Type     string        `yaml:"type" validate:"required,oneof=tanker bulker combi"`
	Count    int           `yaml:"count" validate:"gte=0"`
	Price    float64       `yaml:"price" validate:"gte=0"`
	HomePort PortID        `yaml:"home_port"`
	Capacity float64       `yaml:"capacity" validate:"gt=0"`
	Opex     float64       `yaml:"opex" validate:"gte=0"`
	Ballast  ScenarioCurve `yaml:"ballast"`
	Laden    ScenarioCurve `yaml:"laden"`
}

type ScenarioLeg struct {
	ID          string    `yaml:"id" validate:"required"`
	Origin      PortID    `yaml:"origin"`
	Dest        PortID    `yaml:"dest"`
	Commodity   Commodity `yaml:"commodity" validate:"required"`
	BaseRevenue float64   `yaml:"base_revenue" validate:"gte=0"`
}

// Matrix is a square table keyed by Keys on both axes. Null entries are
// missing pairs.
type Matrix[K ~int] struct {
	Keys   []K          `yaml:"keys,flow"`
	Values [][]*float64 `yaml:"values"`
}

func (m Matrix[K]) check(name string) error {
	if len(m.Values) != len(m.Keys) {
		return fmt.Errorf("%s: %d rows for %d keys", name, len(m.Values), len(m.Keys))
	}
	for i, row := range m.Values {
		if len(row) != len(m.Keys) {
			return fmt.Errorf("%s: row %d has %d entries for %d keys", name, i, len(row), len(m.Keys))
		}
	}
	return nil
}

func (m Matrix[K]) each(fn func(a, b K, v float64)) {
	for i, row := range m.Values {
		for j, v := range row {
			if v != nil {
				fn(m.Keys[i], m.Keys[j], *v)
			}
		}
	}
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if err := config.NewValidator().Validate(s); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	if err := s.Distances.check("distances"); err != nil {
		return err
	}
	if err := s.Cleaning.check("cleaning"); err != nil {
		return err
	}
	ports := map[PortID]bool{}
	for _, p := range s.Ports {
		ports[p.ID] = true
	}
	for _, id := range s.Distances.Keys {
		if !ports[id] {
			return fmt.Errorf("distances reference unknown port %d", id)
		}
	}
	for name := range s.Compliance {
		if _, err := ParseVesselType(name); err != nil {
			return fmt.Errorf("compliance: %w", err)
		}
	}
	for _, vt := range s.VesselTypes {
		if !ports[vt.HomePort] {
			return fmt.Errorf("vessel type %s: unknown home port %d", vt.Type, vt.HomePort)
		}
	}
	for _, l := range s.Demand {
		if !ports[l.Origin] || !ports[l.Dest] {
			return fmt.Errorf("leg %s references an unknown port", l.ID)
		}
	}
	return nil
}

func toCommodities(codes []int) []Commodity {
	out := make([]Commodity, len(codes))
	for i, c := range codes {
		out[i] = Commodity(c)
	}
	return out
}

// Network converts the scenario tables into a validated Network.
func (s *Scenario) Network() (*Network, error) {
	d := NetworkData{
		Freight:   map[Commodity]FreightRate{},
		Distances: map[PortPair]float64{},
		Cleaning:  map[CommodityPair]float64{},
	}
	for _, p := range s.Ports {
		d.Ports = append(d.Ports, Port{
			ID:      p.ID,
			Name:    p.Name,
			Lat:     p.Lat,
			Lon:     p.Lon,
			Fee:     p.Fee,
			Exports: NewCommoditySet(toCommodities(p.Exports)...),
			Imports: NewCommoditySet(toCommodities(p.Imports)...),
		})
	}
	for _, c := range s.Commodities {
		d.Commodities = append(d.Commodities, CommodityInfo{Code: c.Code, LoadRate: c.LoadRate, UnloadRate: c.UnloadRate})
		if c.Freight != nil {
			d.Freight[c.Code] = FreightRate{
				ReferenceDistance: c.Freight.ReferenceDistance,
				LowRate:           c.Freight.LowRate,
				HighRate:          c.Freight.HighRate,
			}
		}
	}
	s.Distances.each(func(a, b PortID, v float64) {
		if a != b {
			d.Distances[PortPair{a, b}] = v
		}
	})
	s.Cleaning.each(func(a, b Commodity, v float64) {
		d.Cleaning[CommodityPair{a, b}] = v
	})
	for name, codes := range s.Compliance {
		t, _ := ParseVesselType(name)
		d.Compliance[t] = NewCommoditySet(toCommodities(codes)...)
	}
	return NewNetwork(d)
}

// Catalog builds the vessel catalog from the scenario's vessel types.
func (s *Scenario) Catalog() (map[string]Vessel, error) {
	specs := map[VesselType]TypeSpec{}
	counts := map[VesselType]int{}
	for _, vt := range s.VesselTypes {
		t, err := ParseVesselType(vt.Type)
		if err != nil {
			return nil, err
		}
		if _, dup := specs[t]; dup {
			return nil, fmt.Errorf("vessel type %s listed twice", t)
		}
		specs[t] = TypeSpec{
			Spec: VesselTechSpec{
				Capacity: vt.Capacity,
				Ballast:  FuelCurve{Speed: vt.Ballast.Speed, Rate: vt.Ballast.Rate},
				Laden:    FuelCurve{Speed: vt.Laden.Speed, Rate: vt.Laden.Rate},
				Opex:     vt.Opex,
			},
			Price:    vt.Price,
			HomePort: vt.HomePort,
		}
		counts[t] = vt.Count
	}
	return BuildCatalog(specs, counts, s.Seed)
}

// Legs returns the demand legs, skipping any leg on the phantom commodity.
func (s *Scenario) Legs() []DemandLeg {
	legs := make([]DemandLeg, 0, len(s.Demand))
	for _, l := range s.Demand {
		if l.Commodity == PhantomCommodity {
			Log(LvlDebug, "skipping leg %s on phantom commodity", l.ID)
			continue
		}
		legs = append(legs, DemandLeg{ID: l.ID, Origin: l.Origin, Dest: l.Dest, Commodity: l.Commodity, BaseRevenue: l.BaseRevenue})
	}
	return legs
}

// Build assembles the fleet model of the scenario.
func (s *Scenario) Build(p ModelParams) (*FleetModel, error) {
	net, err := s.Network()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	cat, err := s.Catalog()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return CreateFleetModel(s.Name, net, SortedVessels(cat), s.Legs(), p)
}

// ModelParamsFromConfig maps the economics and voyage sections onto ModelParams.
func ModelParamsFromConfig(cfg *config.Config) ModelParams {
	return ModelParams{
		FuelPrice:            cfg.Economics.FuelPrice,
		HandlingCostPerDay:   cfg.Economics.HandlingCostPerDay,
		CleaningCostPerDay:   cfg.Economics.CleaningCostPerDay,
		CapexFactor:          cfg.Economics.CapexFactor,
		UnservedPenalty:      cfg.Economics.UnservedPenalty,
		UnservedPenaltyShare: cfg.Economics.UnservedPenaltyShare,
		MaxStops:             cfg.Voyage.MaxStops,
		MaxVoyageDays:        cfg.Voyage.MaxVoyageDays,
		PortDwellDays:        cfg.Voyage.PortDwellDays,
	}
}

func EngineParamsFromConfig(cfg *config.Config) milp.Params {
	return milp.Params{
		TimeLimit:     cfg.Solver.TimeLimit,
		MIPGap:        cfg.Solver.MIPGap,
		Threads:       cfg.Solver.Threads,
		NodeLimit:     cfg.Solver.NodeLimit,
		MaxLazyRounds: cfg.Solver.MaxLazyRounds,
	}
}
