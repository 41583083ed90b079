// Package simulate runs attendance game scenarios from YAML files and
// prints a report per game.
package simulate

import (
	"flag"
	"strings"
	"time"

	"github.com/louisbranch/elfarol/internal/platform/cmd"
	"github.com/louisbranch/elfarol/internal/platform/timeouts"
	"github.com/louisbranch/elfarol/internal/simulation/engine"
	"github.com/louisbranch/elfarol/internal/simulation/sandbox"
)

// Config holds simulate command configuration.
type Config struct {
	ScenarioFiles       []string      `env:"ELFAROL_SCENARIO_FILES" envSeparator:","`
	Seed                string        `env:"ELFAROL_SEED"`
	Rounds              int           `env:"ELFAROL_ROUNDS"               envDefault:"0"`
	SandboxTimeout      time.Duration `env:"ELFAROL_SANDBOX_TIMEOUT"      envDefault:"100ms"`
	SandboxInstructions int           `env:"ELFAROL_SANDBOX_INSTRUCTIONS" envDefault:"1000000"`
	DBPath              string        `env:"ELFAROL_DB_PATH"`
	Parallel            int           `env:"ELFAROL_PARALLEL"             envDefault:"4"`
	Verbose             bool          `env:"ELFAROL_VERBOSE"`
	Locale              string        `env:"ELFAROL_LOCALE"               envDefault:"en-US"`
}

// ParseConfig reads the environment, then flags. Positional arguments are
// appended to the scenario files.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		SandboxTimeout:      timeouts.SandboxExecution,
		SandboxInstructions: sandbox.DefaultInstructionLimit,
		Parallel:            engine.DefaultParallelism,
	}
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	var scenarios string
	fs.StringVar(&scenarios, "scenario", "", "comma-separated scenario files")
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "seed for reproducible runs (empty = random)")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "rounds per game (0 = scenario default)")
	fs.DurationVar(&cfg.SandboxTimeout, "sandbox-timeout", cfg.SandboxTimeout, "wall-clock limit per custom agent decision")
	fs.IntVar(&cfg.SandboxInstructions, "sandbox-instructions", cfg.SandboxInstructions, "instruction budget per custom agent decision")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite path for results (empty = no persistence)")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "games simulated concurrently")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log engine activity to stderr")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale of error messages")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.ScenarioFiles = append(cfg.ScenarioFiles, splitList(scenarios)...)
	cfg.ScenarioFiles = append(cfg.ScenarioFiles, fs.Args()...)
	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
