package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/akhildatla/tribit/pkg/quine"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[search]
strategy = "brute"
workers = 4
limit = 1000000
timeout = "30s"

[log]
verbosity = 2
file = "tribit.log"

[trace]
format = "parquet"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Search{
		Strategy:  "brute",
		Workers:   4,
		Limit:     1000000,
		MaxSteps:  quine.DefaultMaxSteps,
		ChunkSize: quine.DefaultChunkSize,
		Timeout:   "30s",
	}
	if diff := cmp.Diff(want, c.Search); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}
	if c.Log.Verbosity != 2 || *c.Log.LogFile() != "tribit.log" {
		t.Errorf("unexpected log section %+v", c.Log)
	}
	if c.Trace.Format != "parquet" {
		t.Errorf("expected parquet, got %s", c.Trace.Format)
	}
	if d, _ := c.Search.TimeoutDuration(); d != 30*time.Second {
		t.Errorf("expected 30s, got %v", d)
	}
	if c.Path != path {
		t.Errorf("expected path %s, got %s", path, c.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":   "[search\n",
		"unknown":  "[search]\nspeed = 3\n",
		"strategy": "[search]\nstrategy = \"quantum\"\n",
		"timeout":  "[search]\ntimeout = \"soon\"\n",
		"format":   "[trace]\nformat = \"xml\"\n",
		"workers":  "[search]\nworkers = -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFindAndLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[search]\nworkers = 3\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Search.Workers != 3 {
		t.Errorf("expected workers=3, got %d", c.Search.Workers)
	}
}

func TestFindAndLoad_DefaultsWhenMissing(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// A tribit.toml above the temp dir would change the result.
	if c.Path != "" {
		t.Skipf("found %s outside the test directory", c.Path)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}
	if c.Log.LogFile() != nil {
		t.Error("expected nil log file")
	}
}

func TestQuineOptions(t *testing.T) {
	s := Default().Search
	s.Workers = 2
	opts, err := s.QuineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 5 {
		t.Errorf("expected 5 options, got %d", len(opts))
	}

	s.Strategy = "bogus"
	if _, err := s.QuineOptions(); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
