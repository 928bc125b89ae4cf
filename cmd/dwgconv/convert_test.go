package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyuri/dwgconv/internal/model"
	"github.com/stretchr/testify/require"
)

func TestParseRelease(t *testing.T) {
	tests := []struct {
		in   string
		want model.Version
		ok   bool
	}{
		{"R2000", model.AC1015, true},
		{"2000", model.AC1015, true},
		{"ac1009", model.AC1009, true},
		{"r12", model.AC1009, true},
		{"R2018", model.AC1032, true},
		{"R9", model.VersionUnknown, false},
		{"", model.VersionUnknown, false},
	}
	for _, tt := range tests {
		got, ok := parseRelease(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRelease(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestVersionValue(t *testing.T) {
	var v versionValue
	if err := v.Set("R14"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if model.Version(v) != model.AC1014 {
		t.Errorf("version = %v, want AC1014", model.Version(v))
	}
	if v.String() != "R14" {
		t.Errorf("String = %q, want R14", v.String())
	}
	if err := v.Set("R99"); err == nil {
		t.Errorf("Set(R99) succeeded, want error")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plan.dwg", "plan.dxf"},
		{"dir/plan.DWG", "plan.dxf"},
		{"plan.dwg.gz", "plan.dxf"},
		{"a.b.dxf.zst", "a.b.dxf"},
		{"noext", "noext.dxf"},
	}
	for _, tt := range tests {
		if got := outputName(tt.in); got != tt.want {
			t.Errorf("outputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlan(t *testing.T) {
	dir := t.TempDir()

	jobs, err := plan([]string{"a/plan.dwg"}, filepath.Join(dir, "out.dxf"))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	if jobs[0].out != filepath.Join(dir, "out.dxf") {
		t.Errorf("out = %q, want the named file", jobs[0].out)
	}

	outDir := filepath.Join(dir, "converted")
	jobs, err = plan([]string{"a/one.dwg", "b/two.dwg"}, outDir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	if jobs[1].out != filepath.Join(outDir, "two.dxf") {
		t.Errorf("out = %q, want %q", jobs[1].out, filepath.Join(outDir, "two.dxf"))
	}
	if fi, err := os.Stat(outDir); err != nil || !fi.IsDir() {
		t.Errorf("output directory was not created")
	}

	if _, err := plan([]string{"a/x.dwg", "b/x.dwg"}, outDir); err == nil {
		t.Errorf("plan with colliding outputs succeeded, want error")
	}
	if _, err := plan([]string{"a/x.dxf", "a/y.dwg"}, ""); err == nil {
		t.Errorf("plan overwriting its input succeeded, want error")
	}
}
