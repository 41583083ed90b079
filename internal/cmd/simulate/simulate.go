package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
	"github.com/louisbranch/elfarol/internal/random"
	"github.com/louisbranch/elfarol/internal/simulation/agent"
	"github.com/louisbranch/elfarol/internal/simulation/engine"
	"github.com/louisbranch/elfarol/internal/simulation/sandbox"
	"github.com/louisbranch/elfarol/internal/simulation/storage/sqlite"
)

const createdBy = "simulate"

// Describe renders err for the terminal, leading with the localized message
// of domain errors.
func Describe(err error, locale string) string {
	if msg, ok := apperrors.UserMessage(err, locale); ok {
		return msg + " (" + err.Error() + ")"
	}
	return err.Error()
}

// run is one scenario registered with the engine.
type run struct {
	scenario Scenario
	gameID   string
	// groups maps agent ids to their group index.
	groups map[string]int
}

// Run executes the simulate command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	scenarios, err := LoadScenarios(cfg.ScenarioFiles)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == "" {
		n, err := random.NewSeed()
		if err != nil {
			return err
		}
		seed = strconv.FormatInt(n, 10)
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		logger = log.New(errOut, "", 0)
	}
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithParallelism(cfg.Parallel),
	}
	if cfg.DBPath != "" {
		store, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				fmt.Fprintf(errOut, "close store: %v\n", err)
			}
		}()
		opts = append(opts, engine.WithStore(store))
	}
	eng := engine.New(opts...)

	runs := make([]run, len(scenarios))
	requests := make([]engine.SimulationRequest, len(scenarios))
	for i, sc := range scenarios {
		r, err := setupScenario(ctx, eng, cfg, sc, seed+":"+strconv.Itoa(i))
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		runs[i] = r
		requests[i] = engine.SimulationRequest{GameID: r.gameID, NumRounds: cfg.Rounds}
	}

	fmt.Fprintf(out, "seed: %s\n", seed)
	results, err := eng.RunSimulations(ctx, requests)
	for i, res := range results {
		if res.GameID == "" {
			continue
		}
		writeReport(out, runs[i], res)
	}
	if err != nil {
		return fmt.Errorf("run simulations: %w", err)
	}
	return nil
}

func setupScenario(ctx context.Context, eng *engine.Engine, cfg Config, sc Scenario, seed string) (run, error) {
	source := random.NewSeeded(seed)
	sb := sandbox.New(
		sandbox.WithTimeout(cfg.SandboxTimeout),
		sandbox.WithInstructionLimit(cfg.SandboxInstructions),
		sandbox.WithRandom(source),
	)
	factory := agent.NewFactory(sb, source)

	snapshot, err := eng.CreateGame(ctx, sc.GameInput(createdBy))
	if err != nil {
		return run{}, err
	}
	r := run{scenario: sc, gameID: snapshot.ID, groups: map[string]int{}}
	exec := &agent.ExecutionContext{Capacity: sc.Capacity}
	for i, group := range sc.Agents {
		agents, err := factory.CreateAgents(group.Count, group.AgentConfig(), exec)
		if err != nil {
			return run{}, fmt.Errorf("agent group %q: %w", group.Name, err)
		}
		for _, a := range agents {
			if err := eng.AddAgentToGame(ctx, snapshot.ID, a); err != nil {
				return run{}, err
			}
			r.groups[a.ID] = i
		}
	}
	return r, nil
}
