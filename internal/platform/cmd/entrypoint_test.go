package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Seed   string `env:"CMD_TEST_SEED" envDefault:"default-seed"`
	Rounds int    `env:"CMD_TEST_ROUNDS" envDefault:"100"`
}

func TestParseConfigReadsEnvThenFlags(t *testing.T) {
	t.Setenv("CMD_TEST_SEED", "env-seed")
	t.Setenv("CMD_TEST_ROUNDS", "25")

	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "seed")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "rounds")

	if err := ParseArgs(fs, []string{"-seed", "flag-seed"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Seed != "flag-seed" {
		t.Fatalf("expected flag value for seed, got %q", cfg.Seed)
	}
	if cfg.Rounds != 25 {
		t.Fatalf("expected env rounds 25, got %d", cfg.Rounds)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceSimulate, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("ELFAROL_OTEL_ENDPOINT", "")
	want := errors.New("run failed")

	err := RunWithTelemetry(context.Background(), ServiceSimulate, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected run error, got %v", err)
	}
}
