package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Rounds  int           `env:"ELFAROL_TEST_ROUNDS" envDefault:"100"`
	Timeout time.Duration `env:"ELFAROL_TEST_TIMEOUT" envDefault:"100ms"`
	Files   []string      `env:"ELFAROL_TEST_FILES" envSeparator:","`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Rounds != 100 {
		t.Fatalf("expected default rounds 100, got %d", cfg.Rounds)
	}
	if cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("expected default timeout 100ms, got %v", cfg.Timeout)
	}
}

func TestParseEnvReadsSeparatedList(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("ELFAROL_TEST_FILES", "a.yaml,b.yaml")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if len(cfg.Files) != 2 || cfg.Files[0] != "a.yaml" || cfg.Files[1] != "b.yaml" {
		t.Fatalf("unexpected files: %v", cfg.Files)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("ELFAROL_TEST_ROUNDS", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
