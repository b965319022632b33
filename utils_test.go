package fleetmip

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGreatCircleNM(t *testing.T) {
	assert.Zero(t, GreatCircleNM(10, 20, 10, 20))
	// one degree of latitude is sixty nautical miles
	assert.InDelta(t, 60, GreatCircleNM(0, 0, 1, 0), 0.1)
	assert.InDelta(t, GreatCircleNM(51.9, 4.1, 54.4, 18.7), GreatCircleNM(54.4, 18.7, 51.9, 4.1), 1e-9)
}

func TestCalcDistanceMatrix(t *testing.T) {
	ports := []Port{{ID: 0, Lat: 0, Lon: 0}, {ID: 1, Lat: 1, Lon: 0}, {ID: 2, Lat: 0, Lon: 1}}

	d := CalcDistanceMatrix(ports, 1.5)

	assert.Len(t, d, 3)
	assert.Zero(t, d[1][1])
	assert.Equal(t, d[0][1], d[1][0])
	assert.Equal(t, 90.0, d[0][1])
	assert.Equal(t, "0,90,90,\n", strings.SplitAfter(FormatMatrix(d), "\n")[0])
}

func TestSanitizeJsonArrayLineBreaks(t *testing.T) {
	in := "{\n  \"route\": [\n    0,\n    1,\n    0\n  ],\n  \"objective\": -12.5\n}"

	out := SanitizeJsonArrayLineBreaks(in)

	assert.Equal(t, "{\n  \"route\": [0,1,0],\n  \"objective\": -12.5\n}", out)
}

func TestLog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitLoggersTo(&buf, "info", "text")
	defer InitLoggers("info", "text")

	Log(LvlInfo, "visible %d", 1)
	Log(LvlDebug, "hidden %d", 2)
	Warn("careful")

	out := buf.String()
	assert.Contains(t, out, "visible 1")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "careful")
}
