package fleetmip

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type PortID int

// Commodity is an HS6 code.
type Commodity int

// PhantomCommodity is a placeholder code present in the raw compatibility data.
// It is stripped at the ingestion boundary and never reaches the model.
const PhantomCommodity Commodity = 999999

type VesselType int8

const (
	Tanker VesselType = iota
	Bulker
	Combi
	numVesselTypes
)

var vesselTypeNames = [numVesselTypes]string{"tanker", "bulker", "combi"}

func (t VesselType) String() string {
	if t < 0 || t >= numVesselTypes {
		return "VesselType(" + strconv.Itoa(int(t)) + ")"
	}
	return vesselTypeNames[t]
}

func (t VesselType) Valid() bool {
	return t >= 0 && t < numVesselTypes
}

func ParseVesselType(s string) (VesselType, error) {
	for i, n := range vesselTypeNames {
		if strings.EqualFold(s, n) {
			return VesselType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vessel type %q", s)
}

// VesselTypes lists every vessel type in declaration order.
func VesselTypes() []VesselType {
	out := make([]VesselType, numVesselTypes)
	for i := range out {
		out[i] = VesselType(i)
	}
	return out
}

type CommoditySet map[Commodity]struct{}

// NewCommoditySet builds a set, dropping the phantom code.
func NewCommoditySet(codes ...Commodity) CommoditySet {
	s := make(CommoditySet, len(codes))
	for _, k := range codes {
		if k == PhantomCommodity {
			continue
		}
		s[k] = struct{}{}
	}
	return s
}

func (s CommoditySet) Has(k Commodity) bool {
	_, ok := s[k]
	return ok
}

func (s CommoditySet) Sorted() []Commodity {
	out := make([]Commodity, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type Port struct {
	ID      PortID
	Name    string
	Lat     float64
	Lon     float64
	Fee     float64
	Exports CommoditySet
	Imports CommoditySet
}

// CommodityInfo holds handling rates in tonnes/day.
type CommodityInfo struct {
	Code       Commodity
	LoadRate   float64
	UnloadRate float64
}

// FreightRate is a per-tonne rate curve: LowRate up to 1000 nm, HighRate from
// ReferenceDistance on, linear in between.
type FreightRate struct {
	ReferenceDistance float64
	LowRate           float64
	HighRate          float64
}

type PortPair struct {
	From, To PortID
}

func (p PortPair) String() string {
	return fmt.Sprintf("%d->%d", p.From, p.To)
}

type CommodityPair struct {
	From, To Commodity
}

func (p CommodityPair) String() string {
	return fmt.Sprintf("%d->%d", p.From, p.To)
}

// NetworkData is the typed input NewNetwork validates.
type NetworkData struct {
	Ports       []Port
	Commodities []CommodityInfo
	Freight     map[Commodity]FreightRate
	Distances   map[PortPair]float64
	Cleaning    map[CommodityPair]float64
	Compliance  [numVesselTypes]CommoditySet
}

// Network is the immutable lookup structure shared by the revenue builder, the
// model builder and the extractor.
type Network struct {
	ports       map[PortID]Port
	portIDs     []PortID
	commodities map[Commodity]CommodityInfo
	freight     map[Commodity]FreightRate
	distances   map[PortPair]float64
	cleaning    map[CommodityPair]float64
	compliance  [numVesselTypes]CommoditySet
}

// NewNetwork validates d and returns the lookup structure. Malformed data fails fast.
func NewNetwork(d NetworkData) (*Network, error) {
	n := &Network{
		ports:       make(map[PortID]Port, len(d.Ports)),
		commodities: make(map[Commodity]CommodityInfo, len(d.Commodities)),
		freight:     make(map[Commodity]FreightRate, len(d.Freight)),
		distances:   make(map[PortPair]float64, len(d.Distances)),
		cleaning:    make(map[CommodityPair]float64, len(d.Cleaning)),
	}
	for _, p := range d.Ports {
		if _, dup := n.ports[p.ID]; dup {
			return nil, fmt.Errorf("duplicate port id %d", p.ID)
		}
		if p.Fee < 0 {
			return nil, fmt.Errorf("port %d has negative fee %v", p.ID, p.Fee)
		}
		p.Exports = NewCommoditySet(p.Exports.Sorted()...)
		p.Imports = NewCommoditySet(p.Imports.Sorted()...)
		n.ports[p.ID] = p
		n.portIDs = append(n.portIDs, p.ID)
	}
	sort.Slice(n.portIDs, func(i, j int) bool { return n.portIDs[i] < n.portIDs[j] })

	for _, c := range d.Commodities {
		if c.Code == PhantomCommodity {
			continue
		}
		if c.LoadRate <= 0 || c.UnloadRate <= 0 {
			return nil, fmt.Errorf("commodity %d has non-positive handling rate", c.Code)
		}
		n.commodities[c.Code] = c
	}
	for k, f := range d.Freight {
		if f.LowRate < 0 || f.HighRate < 0 {
			return nil, fmt.Errorf("commodity %d has negative freight rate", k)
		}
		if f.ReferenceDistance <= 1000 {
			return nil, fmt.Errorf("commodity %d reference distance %v must exceed 1000 nm", k, f.ReferenceDistance)
		}
		n.freight[k] = f
	}
	for pp, nm := range d.Distances {
		if nm < 0 {
			return nil, fmt.Errorf("negative distance %v for %s", nm, pp)
		}
		if _, ok := n.ports[pp.From]; !ok {
			return nil, fmt.Errorf("distance %s references unknown port %d", pp, pp.From)
		}
		if _, ok := n.ports[pp.To]; !ok {
			return nil, fmt.Errorf("distance %s references unknown port %d", pp, pp.To)
		}
		n.distances[pp] = nm
	}
	for cp, days := range d.Cleaning {
		if days < 0 {
			return nil, fmt.Errorf("negative cleaning time %v for %s", days, cp)
		}
		if cp.From == cp.To {
			continue
		}
		n.cleaning[cp] = days
	}
	for t, set := range d.Compliance {
		n.compliance[t] = NewCommoditySet(set.Sorted()...)
	}
	return n, nil
}

// Ports returns port IDs in ascending order.
func (n *Network) Ports() []PortID {
	return append([]PortID(nil), n.portIDs...)
}

func (n *Network) Port(id PortID) (Port, bool) {
	p, ok := n.ports[id]
	return p, ok
}

func (n *Network) Distance(i, j PortID) (float64, bool) {
	d, ok := n.distances[PortPair{i, j}]
	return d, ok
}

// CleaningTime returns the days needed to switch from k1 to k2. Switching to the
// same commodity is free; an undefined pair is a *LookupMiss.
func (n *Network) CleaningTime(k1, k2 Commodity) (float64, error) {
	if k1 == k2 {
		return 0, nil
	}
	if t, ok := n.cleaning[CommodityPair{k1, k2}]; ok {
		return t, nil
	}
	return 0, &LookupMiss{Table: "cleaning_time", Key: CommodityPair{k1, k2}.String()}
}

func (n *Network) Compliant(t VesselType, k Commodity) bool {
	if !t.Valid() {
		return false
	}
	return n.compliance[t].Has(k)
}

func (n *Network) ExportCompatible(p PortID, k Commodity) bool {
	port, ok := n.ports[p]
	return ok && port.Exports.Has(k)
}

func (n *Network) ImportCompatible(p PortID, k Commodity) bool {
	port, ok := n.ports[p]
	return ok && port.Imports.Has(k)
}

func (n *Network) LoadRate(k Commodity) (float64, bool) {
	c, ok := n.commodities[k]
	return c.LoadRate, ok
}

func (n *Network) UnloadRate(k Commodity) (float64, bool) {
	c, ok := n.commodities[k]
	return c.UnloadRate, ok
}

func (n *Network) FreightRate(k Commodity) (FreightRate, bool) {
	f, ok := n.freight[k]
	return f, ok
}

func (n *Network) PortFee(p PortID) float64 {
	return n.ports[p].Fee
}
