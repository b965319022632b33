package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.solver4all.com/azaryc2s/fleetmip"
)

func TestGenerate_ProducesValidScenario(t *testing.T) {
	opts := genOptions{name: "gen", ports: 6, commodities: 3, legs: 10, vessels: 2, detour: 1.15}

	s := generate(rand.New(rand.NewSource(11)), opts)

	require.NoError(t, s.Validate())
	assert.Len(t, s.Ports, 6)
	assert.Len(t, s.Distances.Keys, 6)
	assert.Nil(t, s.Distances.Values[2][2])
	require.NotNil(t, s.Distances.Values[0][1])
	assert.Equal(t, *s.Distances.Values[0][1], *s.Distances.Values[1][0])
	for _, l := range s.Demand {
		assert.NotEqual(t, l.Origin, l.Dest)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := genOptions{name: "gen", ports: 4, commodities: 2, legs: 5, vessels: 1, detour: 1}

	a := generate(rand.New(rand.NewSource(5)), opts)
	b := generate(rand.New(rand.NewSource(5)), opts)

	assert.Equal(t, a, b)
}

func TestWriteScenario_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := generate(rand.New(rand.NewSource(3)), genOptions{name: "rt", ports: 5, commodities: 4, legs: 6, vessels: 1, detour: 1.1})

	require.NoError(t, writeScenario(dir, s))

	_, err := os.Stat(filepath.Join(dir, "rt.yaml"))
	require.NoError(t, err)
	loaded, err := fleetmip.LoadScenario(filepath.Join(dir, "rt.yaml"))
	require.NoError(t, err)
	assert.Equal(t, s.Name, loaded.Name)
	assert.Equal(t, len(s.Demand), len(loaded.Demand))
	_, err = loaded.Network()
	assert.NoError(t, err)
}
