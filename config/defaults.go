package config

import "time"

// SetDefaults fills every zero-valued field with its default.
func SetDefaults(cfg *Config) {
	// Solver defaults
	if cfg.Solver.TimeLimit == 0 {
		cfg.Solver.TimeLimit = 5 * time.Minute
	}
	if cfg.Solver.MIPGap == 0 {
		cfg.Solver.MIPGap = 1e-4
	}
	if cfg.Solver.Threads == 0 {
		cfg.Solver.Threads = 1
	}
	if cfg.Solver.MaxLazyRounds == 0 {
		cfg.Solver.MaxLazyRounds = 100000
	}

	// Economics defaults
	if cfg.Economics.FuelPrice == 0 {
		cfg.Economics.FuelPrice = 600 // USD/t VLSFO
	}
	if cfg.Economics.HandlingCostPerDay == 0 {
		cfg.Economics.HandlingCostPerDay = 2500
	}
	if cfg.Economics.CleaningCostPerDay == 0 {
		cfg.Economics.CleaningCostPerDay = 5000
	}
	if cfg.Economics.CapexFactor == 0 {
		cfg.Economics.CapexFactor = 0.0005
	}
	if cfg.Economics.UnservedPenalty == 0 {
		cfg.Economics.UnservedPenalty = 1000
	}

	// Voyage defaults
	if cfg.Voyage.MaxStops == 0 {
		cfg.Voyage.MaxStops = 12
	}
	if cfg.Voyage.MaxVoyageDays == 0 {
		cfg.Voyage.MaxVoyageDays = 90
	}
	if cfg.Voyage.PortDwellDays == 0 {
		cfg.Voyage.PortDwellDays = 1
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "fleetmip.db"
	}
}
