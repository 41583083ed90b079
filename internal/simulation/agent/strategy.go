package agent

import (
	"context"
	"math"

	"github.com/louisbranch/elfarol/internal/random"
	"github.com/louisbranch/elfarol/internal/simulation/sandbox"
)

type randomStrategy struct {
	random *random.Source
}

func (s *randomStrategy) predict(context.Context, Observation) (bool, error) {
	return s.random.Bool(), nil
}

// thresholdStrategy attends with goProbability while mean attendance stays
// below threshold and with 1-goProbability otherwise.
type thresholdStrategy struct {
	random        *random.Source
	threshold     float64
	goProbability float64
}

func (s *thresholdStrategy) predict(_ context.Context, obs Observation) (bool, error) {
	if len(obs.History) == 0 {
		return s.random.Bool(), nil
	}
	if normalizedMean(obs.History, obs.Capacity) < s.threshold {
		return s.random.Float64() < s.goProbability, nil
	}
	return s.random.Float64() < 1-s.goProbability, nil
}

type movingAverageStrategy struct {
	random     *random.Source
	windowSize int
	threshold  float64
}

func (s *movingAverageStrategy) predict(_ context.Context, obs Observation) (bool, error) {
	if len(obs.History) == 0 {
		return s.random.Bool(), nil
	}
	window := obs.History
	if len(window) > s.windowSize {
		window = window[len(window)-s.windowSize:]
	}
	return normalizedMean(window, obs.Capacity) < s.threshold, nil
}

// adaptiveStrategy nudges its threshold after each bad decision: up when it
// attended an overcrowded round, down when it stayed away from a free one.
type adaptiveStrategy struct {
	random         *random.Source
	initial        float64
	adaptationRate float64

	current      float64
	lastDecision *bool
}

func (s *adaptiveStrategy) predict(_ context.Context, obs Observation) (bool, error) {
	if len(obs.History) == 0 {
		return s.random.Bool(), nil
	}

	if s.lastDecision != nil && len(obs.History) > 1 {
		lastAttendance := obs.History[len(obs.History)-1]
		attended := *s.lastDecision
		good := (attended && lastAttendance <= obs.Capacity) || (!attended && lastAttendance > obs.Capacity)
		switch {
		case good:
		case attended:
			s.current = math.Min(1.0, s.current+s.adaptationRate)
		default:
			s.current = math.Max(0.0, s.current-s.adaptationRate)
		}
	}

	decision := normalizedMean(obs.History, obs.Capacity) < s.current
	s.lastDecision = &decision
	return decision, nil
}

func (s *adaptiveStrategy) reset() {
	s.current = s.initial
	s.lastDecision = nil
}

type humanStrategy struct {
	pending *bool
}

func (s *humanStrategy) set(attend bool) {
	s.pending = &attend
}

func (s *humanStrategy) predict(context.Context, Observation) (bool, error) {
	if s.pending == nil {
		return false, ErrDecisionMissing
	}
	decision := *s.pending
	s.pending = nil
	return decision, nil
}

// customStrategy runs compiled agent code against the round being decided.
type customStrategy struct {
	program *sandbox.Program
	random  *random.Source
	exec    ExecutionContext
}

func (s *customStrategy) predict(ctx context.Context, obs Observation) (bool, error) {
	round := obs.Round
	if round == 0 {
		round = s.exec.RoundNumber
	}
	return s.program.Run(ctx, sandbox.Context{
		History:     obs.History,
		Capacity:    obs.Capacity,
		RoundNumber: round,
		Random:      s.random,
	})
}

func normalizedMean(history []int, capacity int) float64 {
	total := 0
	for _, attendance := range history {
		total += attendance
	}
	return float64(total) / float64(len(history)) / float64(capacity)
}
