package game

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/elfarol/internal/simulation/agent"
)

func TestExecuteRoundRequiresRunning(t *testing.T) {
	g := newTestGame(t, Config{Capacity: 1, NumAgents: 1})
	addAgents(t, g, humans(t, 1))
	if _, _, err := g.ExecuteRound(context.Background()); !errors.Is(err, ErrStatusDisallowsOperation) {
		t.Fatalf("expected ErrStatusDisallowsOperation, got %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, _, err := g.ExecuteRound(context.Background()); !errors.Is(err, ErrStatusDisallowsOperation) {
		t.Fatalf("expected ErrStatusDisallowsOperation, got %v", err)
	}
}

func TestExecuteRoundBenefit(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		rules      BenefitRules
		attend     []bool
		wantTotal  float64
		wantShares []float64
	}{
		{
			name:       "within capacity",
			attend:     []bool{true, false, true},
			wantTotal:  2,
			wantShares: []float64{1, 0, 1},
		},
		{
			name:       "over capacity penalises attendees only",
			attend:     []bool{true, true, true},
			wantTotal:  -3,
			wantShares: []float64{-1, -1, -1},
		},
		{
			name:       "over capacity leaves abstainers at zero",
			capacity:   1,
			attend:     []bool{true, true, false},
			wantTotal:  -2,
			wantShares: []float64{-1, -1, 0},
		},
		{
			name:       "nobody attends",
			attend:     []bool{false, false, false},
			wantTotal:  0,
			wantShares: []float64{0, 0, 0},
		},
		{
			name:       "multipliers",
			rules:      BenefitRules{PositiveMultiplier: 3, NegativeMultiplier: 2},
			attend:     []bool{true, true, false},
			wantTotal:  6,
			wantShares: []float64{3, 3, 0},
		},
		{
			name:       "negative multiplier",
			rules:      BenefitRules{PositiveMultiplier: 3, NegativeMultiplier: 2},
			attend:     []bool{true, true, true},
			wantTotal:  -6,
			wantShares: []float64{-2, -2, -2},
		},
		{
			name: "custom formula",
			rules: BenefitRules{PositiveMultiplier: 5, Formula: func(attendance, capacity int) float64 {
				return float64(capacity*10 - attendance)
			}},
			attend:     []bool{false, true, false},
			wantTotal:  19,
			wantShares: []float64{0, 19, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capacity := tt.capacity
			if capacity == 0 {
				capacity = 2
			}
			agents := humans(t, 3)
			g := startedGame(t, Config{Capacity: capacity, NumAgents: 3, BenefitRules: tt.rules}, agents)
			decide(t, agents, tt.attend...)

			res, ok, err := g.ExecuteRound(context.Background())
			if err != nil || !ok {
				t.Fatalf("execute round: ok=%v err=%v", ok, err)
			}
			if res.TotalBenefit != tt.wantTotal {
				t.Fatalf("total benefit = %v, want %v", res.TotalBenefit, tt.wantTotal)
			}
			for i, d := range res.Decisions {
				if d.AgentID != agents[i].ID || d.Attend != tt.attend[i] {
					t.Fatalf("decision %d out of roster order: %+v", i, d)
				}
				if d.Benefit != tt.wantShares[i] {
					t.Fatalf("decision %d benefit = %v, want %v", i, d.Benefit, tt.wantShares[i])
				}
			}
		})
	}
}

func TestExecuteRoundRecordsResult(t *testing.T) {
	agents := humans(t, 2)
	g := startedGame(t, Config{Capacity: 1, NumAgents: 2}, agents)
	decide(t, agents, true, false)

	res, ok, err := g.ExecuteRound(context.Background())
	if err != nil || !ok {
		t.Fatalf("execute round: ok=%v err=%v", ok, err)
	}
	if res.ID == "" || res.GameID != g.ID() || res.Number != 1 || res.Attendance != 1 || res.Capacity != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.ExecutedAt.Equal(fixedNow) {
		t.Fatalf("expected executed at %v, got %v", fixedNow, res.ExecutedAt)
	}
	state := g.State()
	if state.CurrentRound != 1 || state.LastAttendance == nil || *state.LastAttendance != 1 || *state.LastBenefit != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.AverageAttendance != 1 || state.AgentCount != 2 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestExecuteRoundCompletesAtLimit(t *testing.T) {
	agents := humans(t, 1)
	g := startedGame(t, Config{Capacity: 1, NumAgents: 1, NumRounds: 2}, agents)

	for round := 1; round <= 2; round++ {
		decide(t, agents, true)
		res, ok, err := g.ExecuteRound(context.Background())
		if err != nil || !ok {
			t.Fatalf("round %d: ok=%v err=%v", round, ok, err)
		}
		if res.Number != round {
			t.Fatalf("expected round %d, got %d", round, res.Number)
		}
	}
	if g.Status() != StatusCompleted {
		t.Fatalf("expected completed, got %s", g.Status())
	}
	if _, _, err := g.ExecuteRound(context.Background()); !errors.Is(err, ErrStatusDisallowsOperation) {
		t.Fatalf("expected ErrStatusDisallowsOperation, got %v", err)
	}
}

func TestExecuteRoundReportsExhaustion(t *testing.T) {
	agents := humans(t, 1)
	g := startedGame(t, Config{Capacity: 1, NumAgents: 1, NumRounds: 1}, agents)
	g.currentRound = 1

	_, ok, err := g.ExecuteRound(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected exhausted status")
	}
	if g.Status() != StatusCompleted {
		t.Fatalf("expected completed, got %s", g.Status())
	}
}

func TestExecuteRoundFailureLeavesGameUnchanged(t *testing.T) {
	agents := humans(t, 2)
	g := startedGame(t, Config{Capacity: 2, NumAgents: 2}, agents)
	if err := agents[0].SetDecision(true); err != nil {
		t.Fatalf("set decision: %v", err)
	}

	_, ok, err := g.ExecuteRound(context.Background())
	if !errors.Is(err, agent.ErrDecisionMissing) {
		t.Fatalf("expected agent.ErrDecisionMissing, got %v", err)
	}
	if ok {
		t.Fatal("expected failed round")
	}
	if g.CurrentRound() != 0 || len(g.AttendanceHistory()) != 0 || g.TotalBenefit() != 0 {
		t.Fatalf("expected unchanged game, got round %d", g.CurrentRound())
	}
	if g.Status() != StatusRunning {
		t.Fatalf("expected running, got %s", g.Status())
	}
}

func TestExecuteRoundTruncatesHistoryButNotTotal(t *testing.T) {
	agents := humans(t, 2)
	g := startedGame(t, Config{Capacity: 1, NumAgents: 2, MaxHistoryInMemory: 2}, agents)

	plays := [][]bool{{true, true}, {true, false}, {false, false}, {true, true}}
	total := 0.0
	for _, attend := range plays {
		decide(t, agents, attend...)
		res, _, err := g.ExecuteRound(context.Background())
		if err != nil {
			t.Fatalf("execute round: %v", err)
		}
		total += res.TotalBenefit
	}

	attendance := g.AttendanceHistory()
	benefit := g.BenefitHistory()
	if len(attendance) != 2 || len(benefit) != 2 {
		t.Fatalf("expected 2 retained entries, got %d and %d", len(attendance), len(benefit))
	}
	if attendance[0] != 0 || attendance[1] != 2 {
		t.Fatalf("expected most recent attendance [0 2], got %v", attendance)
	}
	if g.TotalBenefit() != total || total != -2+1+0-2 {
		t.Fatalf("expected untruncated total %v, got %v", total, g.TotalBenefit())
	}
	if g.CurrentRound() != 4 {
		t.Fatalf("expected round 4, got %d", g.CurrentRound())
	}
}

func TestAgentsOnlySeePriorRounds(t *testing.T) {
	f := newFactory("prior")
	a, err := f.CreateAgent(agent.Config{Kind: agent.KindCustom, Code: `#history == roundNumber - 1 or error("saw current round")`}, &agent.ExecutionContext{Capacity: 1})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	g := startedGame(t, Config{Capacity: 1, NumAgents: 1, NumRounds: 4}, []*agent.Agent{a})
	for round := 1; round <= 4; round++ {
		if _, _, err := g.ExecuteRound(context.Background()); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
	}
}

func TestAttendanceStaysWithinPopulation(t *testing.T) {
	f := newFactory("population")
	var agents []*agent.Agent
	for _, strategy := range []agent.Strategy{agent.StrategyRandom, agent.StrategyThreshold, agent.StrategyMovingAverage, agent.StrategyAdaptive} {
		group, err := f.CreateAgents(5, agent.Config{Kind: agent.KindBuiltIn, Strategy: strategy}, nil)
		if err != nil {
			t.Fatalf("create agents: %v", err)
		}
		agents = append(agents, group...)
	}
	g := startedGame(t, Config{Capacity: 12, NumAgents: len(agents), NumRounds: 50}, agents)
	for {
		res, ok, err := g.ExecuteRound(context.Background())
		if err != nil {
			t.Fatalf("execute round: %v", err)
		}
		if !ok {
			t.Fatal("unexpected exhaustion before completion")
		}
		if res.Attendance < 0 || res.Attendance > len(agents) {
			t.Fatalf("round %d attendance %d out of range", res.Number, res.Attendance)
		}
		if g.Status() == StatusCompleted {
			break
		}
	}
	if g.CurrentRound() != 50 {
		t.Fatalf("expected 50 rounds, got %d", g.CurrentRound())
	}
}

func TestExecuteRoundHonoursCancelledContext(t *testing.T) {
	agents := humans(t, 1)
	g := startedGame(t, Config{Capacity: 1, NumAgents: 1}, agents)
	decide(t, agents, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.ExecuteRound(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if g.CurrentRound() != 0 {
		t.Fatalf("expected no round, got %d", g.CurrentRound())
	}
}
