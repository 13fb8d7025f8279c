package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("kpi-graph", pflag.ContinueOnError)
	f.String("seed", "", "")
	f.Int("port", 8080, "")
	f.Int("max-depth", 5, "")
	f.Bool("web", false, "")
	f.Bool("watch", false, "")
	return f
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.MaxDepth != 5 || cfg.BalanceTolerance != 0.01 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.WebMode || cfg.Watch || cfg.Seed != "" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi-graph.toml")
	content := "port = 7000\nmax-depth = 3\nseed = \"file.yaml\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KPI_GRAPH_MAX_DEPTH", "4")
	t.Setenv("KPI_GRAPH_PORT", "7001")

	f := flags()
	if err := f.Parse([]string{"--port", "9090"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path, f)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Flag should win, got port %d", cfg.Port)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("Env should override file, got max-depth %d", cfg.MaxDepth)
	}
	if cfg.Seed != "file.yaml" {
		t.Errorf("File should override default, got seed %q", cfg.Seed)
	}
}

func TestBrokenConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi-graph.toml")
	if err := os.WriteFile(path, []byte("port = = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, nil); err == nil {
		t.Error("Expected error for malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"port", Config{Port: 0, MaxDepth: 5}},
		{"depth", Config{Port: 80, MaxDepth: 0}},
		{"tolerance", Config{Port: 80, MaxDepth: 5, BalanceTolerance: -1}},
		{"watch without seed", Config{Port: 80, MaxDepth: 5, Watch: true}},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}

	ok := Config{Port: 80, MaxDepth: 5, Watch: true, Seed: "edges.yaml"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
