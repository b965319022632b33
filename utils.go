package fleetmip

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const earthRadiusNM = 3440.065

// GreatCircleNM is the haversine distance between two coordinates in nautical miles.
func GreatCircleNM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadiusNM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// CalcDistanceMatrix returns the rounded great-circle distance between every
// pair of ports. detour scales sea distance over the great circle.
func CalcDistanceMatrix(ports []Port, detour float64) [][]float64 {
	n := len(ports)
	result := make([][]float64, n)
	for i := range result {
		result[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			d := math.Round(detour * GreatCircleNM(ports[i].Lat, ports[i].Lon, ports[j].Lat, ports[j].Lon))
			result[i][j] = d
			result[j][i] = d
		}
	}
	return result
}

func FormatMatrix(a [][]float64) string {
	var b strings.Builder
	for _, row := range a {
		for _, v := range row {
			fmt.Fprintf(&b, "%g,", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var (
	jsonNumbers  = regexp.MustCompile(`\s*(-?[0-9.eE+-]+),\s+(-?[0-9.eE+-]+)(,)?`)
	jsonBrackets = regexp.MustCompile(`\[((-?[0-9.eE+-]+,)+-?[0-9.eE+-]+)\s+\](,?)(\s+)`)
)

// SanitizeJsonArrayLineBreaks collapses indented numeric arrays onto one line.
func SanitizeJsonArrayLineBreaks(json string) string {
	res := json
	for jsonNumbers.MatchString(res) {
		res = jsonNumbers.ReplaceAllString(res, "$1,$2$3")
	}
	for jsonBrackets.MatchString(res) {
		res = jsonBrackets.ReplaceAllString(res, "[$1]$3$4")
	}
	return res
}
