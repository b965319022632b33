/* Copyright 2021, Arkadiusz Zarychta, arkadiusz.zarychta@h-brs.de */
/* Copyright 2021, Gurobi Optimization, LLC */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/urfave/cli"

	"git.solver4all.com/azaryc2s/fleetmip"
	"git.solver4all.com/azaryc2s/fleetmip/config"
	"git.solver4all.com/azaryc2s/fleetmip/metrics"
	"git.solver4all.com/azaryc2s/fleetmip/store"
)

func main() {
	app := cli.NewApp()
	app.Name = "fleetmip-solver"
	app.Usage = "build and solve the fleet routing model of a scenario"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "input, i", Value: "scenario.yaml", Usage: "Path to the scenario file"},
		cli.StringFlag{Name: "output, o", Usage: "Path to the result file. Defaults to <input>.solution.json"},
		cli.StringFlag{Name: "config, c", Usage: "Path to the config file (optional, env vars FLEETMIP_* override it)"},
		cli.StringFlag{Name: "log", Usage: "Log level override: error|info|debug|spam"},
		cli.BoolFlag{Name: "no-store", Usage: "Do not persist the run in the database"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fleetmip.Log(fleetmip.LvlError, "%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	fleetmip.InitLoggers(cfg.Logging.Level, cfg.Logging.Format)

	inputF := c.String("input")
	outputF := c.String("output")
	if outputF == "" {
		outputF = strings.TrimSuffix(strings.TrimSuffix(inputF, ".yaml"), ".yml") + ".solution.json"
	}

	scen, err := fleetmip.LoadScenario(inputF)
	if err != nil {
		return fmt.Errorf("at %s: %w", inputF, err)
	}
	fm, err := scen.Build(fleetmip.ModelParamsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("at %s: %w", inputF, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := metrics.NewSolverMetrics()
	params := fleetmip.EngineParamsFromConfig(cfg)
	startTime := time.Now()
	sol, solveErr := fleetmip.Solve(ctx, fm, fleetmip.SolveOptions{Params: params, Metrics: m})
	if solveErr != nil {
		sol = &fleetmip.Solution{Scenario: scen.Name, Status: fleetmip.STATUS_FAILED, Time: time.Since(startTime).String()}
		if errors.Is(solveErr, fleetmip.ErrInfeasibleModel) {
			sol.Status = fleetmip.STATUS_INFEASIBLE
		}
		sol.Comment = solveErr.Error() + ". "
	}
	sol.System = sysInfo()
	sol.Comment += fmt.Sprintf("Solver-Settings: Threads=%d, TimeLimit=%v, MIPGap=%g, Vars=%d, Constrs=%d, Dropped=%d",
		params.Threads, params.TimeLimit, params.MIPGap, fm.Report.Vars, fm.Report.Constrs, len(fm.Report.Dropped))

	if !c.Bool("no-store") {
		if err := storeRun(ctx, cfg, sol, time.Since(startTime)); err != nil {
			fleetmip.Log(fleetmip.LvlError, "storing run of %s: %v", scen.Name, err)
		}
	}
	if err := writeSolution(outputF, sol); err != nil {
		return err
	}
	if cfg.Metrics.File != "" {
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			fleetmip.Log(fleetmip.LvlError, "writing metrics: %v", err)
		}
	}
	if solveErr != nil {
		return solveErr
	}
	fleetmip.Log(fleetmip.LvlInfo, "Found a plan for %s with objective %.2f (%s), %d of %d legs served",
		scen.Name, sol.Objective, sol.Status, len(sol.Served), len(fm.Legs))
	return nil
}

func sysInfo() fleetmip.SysInfo {
	info := fleetmip.SysInfo{}
	if hostStat, err := host.Info(); err == nil {
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPU = cpuStat[0].ModelName
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}
	return info
}

func storeRun(ctx context.Context, cfg *config.Config, sol *fleetmip.Solution, runtime time.Duration) error {
	db, err := store.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close(db)
	id, err := store.NewRunRepository(db).SaveRun(ctx, sol, runtime)
	if err != nil {
		return err
	}
	fleetmip.Log(fleetmip.LvlDebug, "stored run %s", id)
	return nil
}

func writeSolution(fileName string, sol *fleetmip.Solution) error {
	jsonSol, err := json.MarshalIndent(sol, "", "\t")
	if err != nil {
		return fmt.Errorf("at %s: %w", fileName, err)
	}
	jsonSol = []byte(fleetmip.SanitizeJsonArrayLineBreaks(string(jsonSol)))
	if err := os.WriteFile(fileName, jsonSol, 0644); err != nil {
		return fmt.Errorf("at %s: %w", fileName, err)
	}
	return nil
}
