package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"git.solver4all.com/azaryc2s/fleetmip"
)

var ErrRunNotFound = errors.New("solve run not found")

// RunRepository persists solutions in solve_runs and vessel_routes.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun stores sol under a fresh run ID, which is also written to sol.RunID.
func (r *RunRepository) SaveRun(ctx context.Context, sol *fleetmip.Solution, runtime time.Duration) (string, error) {
	if sol.RunID == "" {
		sol.RunID = uuid.NewString()
	}
	payload, err := json.Marshal(sol)
	if err != nil {
		return "", fmt.Errorf("failed to marshal solution: %w", err)
	}

	run := SolveRunModel{
		ID:          sol.RunID,
		Scenario:    sol.Scenario,
		Status:      sol.Status,
		Objective:   sol.Objective,
		Bound:       sol.Bound,
		Gap:         sol.Gap,
		Verified:    sol.Verified,
		Provisional: sol.Provisional,
		Served:      len(sol.Served),
		Unserved:    len(sol.Unserved),
		Nodes:       sol.Nodes,
		LazyCuts:    sol.LazyCuts,
		RuntimeMs:   runtime.Milliseconds(),
		CO2Tonnes:   sol.KPI.CO2Tonnes,
		Payload:     string(payload),
		CreatedAt:   time.Now().UTC(),
	}
	for _, v := range sol.Vessels {
		route, err := json.Marshal(v.Route)
		if err != nil {
			return "", fmt.Errorf("failed to marshal route of %s: %w", v.ID, err)
		}
		run.Routes = append(run.Routes, VesselRouteModel{
			RunID:      sol.RunID,
			VesselID:   v.ID,
			VesselType: v.Type,
			Route:      string(route),
			Days:       v.Days,
			Stops:      v.Stops,
			DistanceNM: v.DistanceNM,
			FuelTonnes: v.FuelTonnes,
		})
	}

	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	return sol.RunID, nil
}

// FindRun loads a stored solution by run ID.
func (r *RunRepository) FindRun(ctx context.Context, id string) (*fleetmip.Solution, error) {
	var model SolveRunModel
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to find run: %w", result.Error)
	}
	var sol fleetmip.Solution
	if err := json.Unmarshal([]byte(model.Payload), &sol); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &sol, nil
}

// ListRuns returns the runs of a scenario, newest first, with their routes.
// An empty scenario lists every run.
func (r *RunRepository) ListRuns(ctx context.Context, scenario string) ([]SolveRunModel, error) {
	var models []SolveRunModel
	q := r.db.WithContext(ctx).Preload("Routes").Order("created_at desc")
	if scenario != "" {
		q = q.Where("scenario = ?", scenario)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return models, nil
}
