package fleetmip

import (
	"fmt"
	"math/rand"
	"sort"
)

// FuelCurve is the consumption at one loading condition.
type FuelCurve struct {
	Speed float64 // knots
	Rate  float64 // tonnes/day
}

type VesselTechSpec struct {
	Capacity float64 // tonnes
	Ballast  FuelCurve
	Laden    FuelCurve
	Opex     float64 // per day
}

// TypeSpec is the catalog template for every vessel of one type.
type TypeSpec struct {
	Spec     VesselTechSpec
	Price    float64
	HomePort PortID
}

type Vessel struct {
	ID       string
	Name     string
	Type     VesselType
	Price    float64
	HomePort PortID
	Spec     VesselTechSpec
}

var typePrefix = [numVesselTypes]string{"TNK", "BLK", "CMB"}

var vesselNames = []string{
	"Aurora", "Borealis", "Calypso", "Delphine", "Eider", "Fjord", "Gannet", "Halcyon",
	"Ibis", "Jade", "Kestrel", "Lodestar", "Meridian", "Nereid", "Osprey", "Pelican",
	"Quill", "Radiant", "Skua", "Tern", "Ulla", "Vega", "Wren", "Zephyr",
}

// BuildCatalog creates counts[t] vessels of every type t. IDs are type-prefixed
// sequence numbers and do not depend on the seed; the seed only picks names.
func BuildCatalog(specs map[VesselType]TypeSpec, counts map[VesselType]int, seed int64) (map[string]Vessel, error) {
	rnd := rand.New(rand.NewSource(seed))
	cat := make(map[string]Vessel)
	for _, t := range VesselTypes() {
		count := counts[t]
		if count == 0 {
			continue
		}
		if count < 0 {
			return nil, fmt.Errorf("negative vessel count %d for %s", count, t)
		}
		ts, ok := specs[t]
		if !ok {
			return nil, fmt.Errorf("no spec for vessel type %s", t)
		}
		if err := checkSpec(ts); err != nil {
			return nil, fmt.Errorf("vessel type %s: %w", t, err)
		}
		for i := 1; i <= count; i++ {
			id := fmt.Sprintf("%s-%03d", typePrefix[t], i)
			cat[id] = Vessel{
				ID:       id,
				Name:     fmt.Sprintf("MV %s %d", vesselNames[rnd.Intn(len(vesselNames))], rnd.Intn(90)+10),
				Type:     t,
				Price:    ts.Price,
				HomePort: ts.HomePort,
				Spec:     ts.Spec,
			}
		}
	}
	for t := range counts {
		if !t.Valid() {
			return nil, fmt.Errorf("invalid vessel type %d", t)
		}
	}
	return cat, nil
}

func checkSpec(ts TypeSpec) error {
	s := ts.Spec
	switch {
	case s.Capacity <= 0:
		return fmt.Errorf("non-positive capacity %v", s.Capacity)
	case s.Ballast.Speed <= 0 || s.Laden.Speed <= 0:
		return fmt.Errorf("non-positive speed")
	case s.Ballast.Rate < 0 || s.Laden.Rate < 0:
		return fmt.Errorf("negative fuel rate")
	case s.Opex < 0 || ts.Price < 0:
		return fmt.Errorf("negative opex or price")
	}
	return nil
}

// SortedVessels returns the catalog ordered by ID.
func SortedVessels(cat map[string]Vessel) []Vessel {
	out := make([]Vessel, 0, len(cat))
	for _, v := range cat {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
