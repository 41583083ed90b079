package engine

import (
	"context"
	"time"

	"github.com/louisbranch/elfarol/internal/simulation/game"
	"github.com/louisbranch/elfarol/internal/simulation/stats"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// SimulationResult aggregates one simulation run.
type SimulationResult struct {
	GameID      string
	Status      game.Status
	TotalRounds int
	Rounds      []game.RoundResult
	FinalStats  stats.Stats
	Performance []stats.Performance
	Duration    time.Duration
}

// SimulationRequest names a game to simulate and its round budget.
type SimulationRequest struct {
	GameID    string
	NumRounds int
}

// RunRound plays one round of a Running game. It returns
// game.ErrRoundsExhausted when the round limit was already reached; the
// game is completed in that case.
func (e *Engine) RunRound(ctx context.Context, gameID string) (game.RoundResult, error) {
	var result game.RoundResult
	err := e.withGame(gameID, func(g *game.Game) error {
		res, ok, err := e.executeRound(ctx, g)
		if err != nil {
			return err
		}
		if !ok {
			return game.ErrRoundsExhausted
		}
		result = res
		return nil
	})
	return result, err
}

// RunSimulation plays rounds until the game stops running or the budget is
// spent. Draft games are started first. numRounds <= 0 uses the game's
// round limit, or DefaultRounds for unbounded games. Reaching the round
// limit ends the run without error.
func (e *Engine) RunSimulation(ctx context.Context, gameID string, numRounds int) (SimulationResult, error) {
	ctx, span := tracer.Start(ctx, "engine.RunSimulation", trace.WithAttributes(
		attribute.String("game.id", gameID),
		attribute.Int("game.round_budget", numRounds),
	))
	defer span.End()

	var result SimulationResult
	err := e.withGame(gameID, func(g *game.Game) error {
		var err error
		result, err = e.simulate(ctx, g, numRounds)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(attribute.Int("game.rounds_played", len(result.Rounds)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (e *Engine) simulate(ctx context.Context, g *game.Game, numRounds int) (SimulationResult, error) {
	started := time.Now()
	if g.Status() == game.StatusDraft {
		if err := g.Start(); err != nil {
			return SimulationResult{}, err
		}
		e.logger.Printf("game %s started", g.ID())
		if err := e.recordGame(ctx, g.Snapshot()); err != nil {
			return SimulationResult{}, err
		}
	}

	budget := numRounds
	if budget <= 0 {
		budget = g.Config().NumRounds
	}
	if budget <= 0 {
		budget = DefaultRounds
	}

	rounds := make([]game.RoundResult, 0, budget)
	for len(rounds) < budget && g.Status() == game.StatusRunning {
		if err := ctx.Err(); err != nil {
			return e.partial(ctx, g, rounds, started), err
		}
		res, ok, err := e.executeRound(ctx, g)
		if err != nil {
			return e.partial(ctx, g, rounds, started), err
		}
		if !ok {
			break
		}
		rounds = append(rounds, res)
	}

	result := e.partial(ctx, g, rounds, started)
	e.logger.Printf("game %s simulation finished: status=%s rounds=%d duration=%s", g.ID(), result.Status, len(rounds), result.Duration)
	return result, nil
}

func (e *Engine) partial(ctx context.Context, g *game.Game, rounds []game.RoundResult, started time.Time) SimulationResult {
	final, err := e.statsFor(context.WithoutCancel(ctx), g)
	if err != nil {
		e.logger.Printf("game %s stats from store: %v", g.ID(), err)
		final = gameStats(g)
	}
	return SimulationResult{
		GameID:      g.ID(),
		Status:      g.Status(),
		TotalRounds: g.CurrentRound(),
		Rounds:      rounds,
		FinalStats:  final,
		Performance: stats.AgentPerformance(rounds, g.Config().Capacity),
		Duration:    time.Since(started),
	}
}

// executeRound plays and records one round. The caller holds the game lock.
func (e *Engine) executeRound(ctx context.Context, g *game.Game) (game.RoundResult, bool, error) {
	ctx, span := tracer.Start(ctx, "engine.RunRound", trace.WithAttributes(
		attribute.String("game.id", g.ID()),
		attribute.Int("game.round", g.CurrentRound()+1),
	))
	defer span.End()

	wasRunning := g.Status() == game.StatusRunning
	res, ok, err := g.ExecuteRound(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, ok, err
	}
	if !ok {
		e.logger.Printf("game %s completed: round limit reached", g.ID())
		return res, false, e.recordGame(ctx, g.Snapshot())
	}
	span.SetAttributes(attribute.Int("game.attendance", res.Attendance))

	if err := e.recordRound(ctx, res); err != nil {
		return res, true, err
	}
	if err := e.recordGame(ctx, g.Snapshot()); err != nil {
		return res, true, err
	}
	if wasRunning && g.Status() == game.StatusCompleted {
		e.logger.Printf("game %s completed after round %d", g.ID(), res.Number)
	}
	return res, true, nil
}

// RunSimulations runs several games concurrently, at most the configured
// parallelism at a time. Results keep the order of requests. The first
// failure cancels the remaining runs.
func (e *Engine) RunSimulations(ctx context.Context, requests []SimulationRequest) ([]SimulationResult, error) {
	results := make([]SimulationResult, len(requests))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.parallelism)
	for i, req := range requests {
		group.Go(func() error {
			res, err := e.RunSimulation(groupCtx, req.GameID, req.NumRounds)
			results[i] = res
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
