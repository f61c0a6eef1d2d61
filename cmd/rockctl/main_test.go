package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rockctl struct {
	t       *testing.T
	dataDir string
}

func newRockctl(t *testing.T) *rockctl {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SEARCH_ENABLED", "true")
	t.Setenv("CONFIG_FILE", "")
	return &rockctl{t: t, dataDir: t.TempDir()}
}

func (r *rockctl) run(args ...string) (string, error) {
	r.t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{
		"--data-path", r.dataDir,
		"--env-file", filepath.Join(r.dataDir, "missing.env"),
	}, args...))

	err := root.Execute()
	return out.String(), err
}

func (r *rockctl) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	require.NoError(r.t, err, out)
	return out
}

func TestSeed_IsIdempotent(t *testing.T) {
	ctl := newRockctl(t)

	out := ctl.mustRun("seed")
	assert.Contains(t, out, "types: 4 created")
	assert.Contains(t, out, "users: ada@example.com created")
	assert.Contains(t, out, "rocks: 3 created for grace@example.com")

	out = ctl.mustRun("seed")
	assert.Contains(t, out, "types: 0 created")
	assert.Contains(t, out, "users: ada@example.com exists")
	assert.Contains(t, out, "rocks: ada@example.com already owns 3")
}

func TestSeed_RejectsShortPassword(t *testing.T) {
	ctl := newRockctl(t)

	_, err := ctl.run("seed", "--password", "short")

	assert.ErrorContains(t, err, "at least 8 characters")
}

func TestInspect_JSON(t *testing.T) {
	ctl := newRockctl(t)
	ctl.mustRun("seed")

	var report Report
	require.NoError(t, json.Unmarshal([]byte(ctl.mustRun("inspect", "--json")), &report))

	assert.Equal(t, "sqlite", report.Driver)
	assert.Equal(t, 2, report.Counts.Users)
	assert.Equal(t, 4, report.Counts.Types)
	assert.Equal(t, 6, report.Counts.Rocks)

	require.Len(t, report.Owners, 2)
	assert.Equal(t, "Ada Stone", report.Owners[0].Name)
	assert.Equal(t, 3, report.Owners[0].Rocks)
	assert.InDelta(t, 5.4, report.Owners[0].Weight, 0.0001)
	assert.Equal(t, "Grace Marble", report.Owners[1].Name)

	counts := map[string]int{}
	for _, typ := range report.Types {
		counts[typ.Label] = typ.Rocks
	}
	assert.Equal(t, map[string]int{"Igneous": 2, "Sedimentary": 1, "Metamorphic": 2, "Mineral": 1}, counts)
}

func TestInspect_Text(t *testing.T) {
	ctl := newRockctl(t)

	out := ctl.mustRun("inspect")

	assert.Contains(t, out, "Database")
	assert.Contains(t, out, "Rocks By Owner")
	assert.Contains(t, out, "(none)")
}

func TestTypes_AddAndList(t *testing.T) {
	ctl := newRockctl(t)

	out := ctl.mustRun("types", "add", "  fossil ", "petrified wood")
	assert.Contains(t, out, "added type 1 Fossil")
	assert.Contains(t, out, "added type 2 Petrified Wood")

	_, err := ctl.run("types", "add", "FOSSIL")
	assert.ErrorContains(t, err, "already exists")

	out = ctl.mustRun("types", "list")
	assert.Contains(t, out, "Fossil")
	assert.Contains(t, out, "Petrified Wood")
}

func TestReindex(t *testing.T) {
	ctl := newRockctl(t)
	ctl.mustRun("seed")

	out := ctl.mustRun("reindex")

	assert.Contains(t, out, "indexed 6 rocks")
}

func TestVersion(t *testing.T) {
	ctl := newRockctl(t)

	out := ctl.mustRun("version")

	assert.Contains(t, out, "rockctl 1.0.0")
}
