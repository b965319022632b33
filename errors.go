package fleetmip

import (
	"errors"
	"fmt"
)

var (
	ErrInfeasibleModel = errors.New("fleetmip: engine proved the model infeasible")
	ErrRepairExhausted = errors.New("fleetmip: subtour repair exceeded its sanity bound")
	ErrNoIncumbent     = errors.New("fleetmip: engine stopped before finding a feasible assignment")
	ErrEmptyFleet      = errors.New("fleetmip: no vessels to build a model for")
)

// ConfigError reports a static lookup that is missing for an arc or leg the
// builder would otherwise generate. The affected arc is dropped.
type ConfigError struct {
	Table string
	Key   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s has no entry for %s", e.Table, e.Key)
}

// DataMiss reports a per-commodity record absent for a commodity that appears in demand.
type DataMiss struct {
	Record    string
	Commodity Commodity
}

func (e *DataMiss) Error() string {
	return fmt.Sprintf("data miss: no %s record for commodity %d", e.Record, e.Commodity)
}

// LookupMiss is returned by Network lookups for undefined keys.
type LookupMiss struct {
	Table string
	Key   string
}

func (e *LookupMiss) Error() string {
	return fmt.Sprintf("lookup miss: %s[%s]", e.Table, e.Key)
}
