package store

import "time"

// SolveRunModel represents the solve_runs table
type SolveRunModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Scenario    string    `gorm:"column:scenario;index;not null"`
	Status      string    `gorm:"column:status;not null"`
	Objective   float64   `gorm:"column:objective"`
	Bound       float64   `gorm:"column:bound"`
	Gap         float64   `gorm:"column:gap"`
	Verified    bool      `gorm:"column:verified;not null;default:false"`
	Provisional bool      `gorm:"column:provisional;not null;default:false"`
	Served      int       `gorm:"column:served"`
	Unserved    int       `gorm:"column:unserved"`
	Nodes       int       `gorm:"column:nodes"`
	LazyCuts    int       `gorm:"column:lazy_cuts"`
	RuntimeMs   int64     `gorm:"column:runtime_ms"`
	CO2Tonnes   float64   `gorm:"column:co2_tonnes"`
	Payload     string    `gorm:"column:payload;type:text"` // full solution JSON
	CreatedAt   time.Time `gorm:"column:created_at;not null"`

	Routes []VesselRouteModel `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (SolveRunModel) TableName() string {
	return "solve_runs"
}

// VesselRouteModel represents the vessel_routes table
type VesselRouteModel struct {
	ID         int     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string  `gorm:"column:run_id;index;not null"`
	VesselID   string  `gorm:"column:vessel_id;not null"`
	VesselType string  `gorm:"column:vessel_type"`
	Route      string  `gorm:"column:route;type:text"` // JSON array of port ids
	Days       float64 `gorm:"column:days"`
	Stops      int     `gorm:"column:stops"`
	DistanceNM float64 `gorm:"column:distance_nm"`
	FuelTonnes float64 `gorm:"column:fuel_tonnes"`
}

func (VesselRouteModel) TableName() string {
	return "vessel_routes"
}
