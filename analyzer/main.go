package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"git.solver4all.com/azaryc2s/fleetmip"
)

var header = []string{"Name", "Status", "Verified", "Provisional", "Time", "Objective", "Bound", "Gap",
	"Served", "Unserved", "Vessels", "CO2", "EEOI", "LazyCuts", "Comment"}

func main() {
	if len(os.Args) < 2 {
		fleetmip.Log(fleetmip.LvlError, "No arguments passed! Usage: analyzer <result-dir>")
		os.Exit(1)
	}
	if err := summarize(os.Args[1], os.Stdout); err != nil {
		fleetmip.Log(fleetmip.LvlError, "%v", err)
		os.Exit(1)
	}
}

// summarize writes one CSV row per result file in dirName, ordered by scenario name.
func summarize(dirName string, w io.Writer) error {
	dir, err := os.ReadDir(dirName)
	if err != nil {
		return fmt.Errorf("couldn't open directory %s: %w", dirName, err)
	}
	var sols []fleetmip.Solution
	for _, f := range dir {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dirName, f.Name()))
		if err != nil {
			return fmt.Errorf("couldn't read %s: %w", f.Name(), err)
		}
		var sol fleetmip.Solution
		if err := json.Unmarshal(data, &sol); err != nil {
			fleetmip.Log(fleetmip.LvlInfo, "skipping %s: %v", f.Name(), err)
			continue
		}
		if sol.Status == "" {
			fleetmip.Log(fleetmip.LvlInfo, "No solution in %s", f.Name())
			continue
		}
		sols = append(sols, sol)
	}
	sort.Slice(sols, func(i, j int) bool { return sols[i].Scenario < sols[j].Scenario })

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, sol := range sols {
		cw.Write([]string{
			sol.Scenario,
			sol.Status,
			strconv.FormatBool(sol.Verified),
			strconv.FormatBool(sol.Provisional),
			sol.Time,
			fmt.Sprintf("%.2f", sol.Objective),
			fmt.Sprintf("%.2f", sol.Bound),
			fmt.Sprintf("%.4f", sol.Gap),
			strconv.Itoa(len(sol.Served)),
			strconv.Itoa(len(sol.Unserved)),
			strconv.Itoa(len(sol.Vessels)),
			fmt.Sprintf("%.2f", sol.KPI.CO2Tonnes),
			fmt.Sprintf("%.3f", sol.KPI.EEOI),
			strconv.Itoa(sol.LazyCuts),
			sol.Comment,
		})
	}
	cw.Flush()
	return cw.Error()
}
