package fleetmip

const lowRateDistance = 1000.0 // nm

// ArcRevenue prices a full cargo of commodity k from origin to dest for a vessel
// of the given capacity.
func ArcRevenue(net *Network, origin, dest PortID, k Commodity, capacity float64) (float64, error) {
	fr, ok := net.FreightRate(k)
	if !ok {
		return 0, &DataMiss{Record: "freight_rate", Commodity: k}
	}
	d, ok := net.Distance(origin, dest)
	if !ok {
		return 0, &ConfigError{Table: "distance", Key: PortPair{origin, dest}.String()}
	}
	return freightRate(fr, d) * capacity, nil
}

func freightRate(fr FreightRate, d float64) float64 {
	switch {
	case d <= lowRateDistance:
		return fr.LowRate
	case d >= fr.ReferenceDistance:
		return fr.HighRate
	}
	return fr.LowRate + (fr.HighRate-fr.LowRate)*(d-lowRateDistance)/(fr.ReferenceDistance-lowRateDistance)
}
