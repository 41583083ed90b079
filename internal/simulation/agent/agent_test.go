package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/louisbranch/elfarol/internal/random"
	"github.com/louisbranch/elfarol/internal/simulation/sandbox"
)

func newTestFactory(seed string) *Factory {
	source := random.NewSeeded(seed)
	n := 0
	return NewFactory(sandbox.New(sandbox.WithRandom(source)), source, WithIDGenerator(func() (string, error) {
		n++
		return fmt.Sprintf("agent-%d", n), nil
	}))
}

func mustCreate(t *testing.T, f *Factory, cfg Config) *Agent {
	t.Helper()
	a, err := f.CreateAgent(cfg, nil)
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return a
}

func TestRandomAgentFollowsBool(t *testing.T) {
	a := mustCreate(t, newTestFactory("random"), Config{Kind: KindBuiltIn})
	if a.Strategy != StrategyRandom {
		t.Fatalf("expected default strategy random, got %s", a.Strategy)
	}
	mirror := random.NewSeeded("random")
	for i := 0; i < 50; i++ {
		got, err := a.Predict(context.Background(), Observation{History: []int{1, 2}, Capacity: 3})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if want := mirror.Bool(); got != want {
			t.Fatalf("draw %d: got %v, want %v", i, got, want)
		}
	}
}

func TestMovingAverageAttendsBelowThreshold(t *testing.T) {
	a := mustCreate(t, newTestFactory("ma"), Config{
		Kind:       KindBuiltIn,
		Strategy:   StrategyMovingAverage,
		Parameters: map[string]any{"windowSize": 5, "threshold": 0.5},
	})
	got, err := a.Predict(context.Background(), Observation{History: []int{10, 20, 30}, Capacity: 100})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !got {
		t.Fatal("expected agent to attend at normalized average 0.2")
	}
}

func TestMovingAverageUsesWindowOnly(t *testing.T) {
	a := mustCreate(t, newTestFactory("ma-window"), Config{
		Kind:       KindBuiltIn,
		Strategy:   StrategyMovingAverage,
		Parameters: map[string]any{"windowSize": 2, "threshold": 0.5},
	})
	tests := []struct {
		history []int
		want    bool
	}{
		{history: []int{100, 100, 10, 20}, want: true},
		{history: []int{0, 0, 60, 70}, want: false},
	}
	for _, tt := range tests {
		got, err := a.Predict(context.Background(), Observation{History: tt.history, Capacity: 100})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if got != tt.want {
			t.Fatalf("history %v: got %v, want %v", tt.history, got, tt.want)
		}
	}
}

func TestMovingAverageLargestWindow(t *testing.T) {
	a := mustCreate(t, newTestFactory("ma-largest"), Config{
		Kind:       KindBuiltIn,
		Strategy:   StrategyMovingAverage,
		Parameters: map[string]any{"windowSize": float64(MaxWindowSize), "threshold": 0.5},
	})
	got, err := a.Predict(context.Background(), Observation{History: []int{10, 20, 30}, Capacity: 100})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !got {
		t.Fatal("expected agent to attend at normalized average 0.2")
	}
}

func TestThresholdEmptyHistoryMatchesBool(t *testing.T) {
	a := mustCreate(t, newTestFactory("threshold"), Config{Kind: KindBuiltIn, Strategy: StrategyThreshold})
	mirror := random.NewSeeded("threshold")
	for i := 0; i < 1000; i++ {
		got, err := a.Predict(context.Background(), Observation{Capacity: 60})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if want := mirror.Bool(); got != want {
			t.Fatalf("trial %d: got %v, want %v", i, got, want)
		}
	}
}

func TestThresholdUsesGoProbability(t *testing.T) {
	tests := []struct {
		name    string
		history []int
		want    bool
	}{
		{name: "below threshold always attends", history: []int{10}, want: true},
		{name: "above threshold never attends", history: []int{90}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustCreate(t, newTestFactory(tt.name), Config{
				Kind:       KindBuiltIn,
				Strategy:   StrategyThreshold,
				Parameters: map[string]any{"threshold": "0.5", "goProbability": json.Number("1")},
			})
			for i := 0; i < 20; i++ {
				got, err := a.Predict(context.Background(), Observation{History: tt.history, Capacity: 100})
				if err != nil {
					t.Fatalf("predict: %v", err)
				}
				if got != tt.want {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAdaptiveRaisesThresholdAfterBadAttend(t *testing.T) {
	a := mustCreate(t, newTestFactory("adaptive"), Config{
		Kind:       KindBuiltIn,
		Strategy:   StrategyAdaptive,
		Parameters: map[string]any{"initialThreshold": 0.6, "adaptationRate": 0.1},
	})

	attend, err := a.Predict(context.Background(), Observation{History: []int{10}, Capacity: 100})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !attend {
		t.Fatal("expected first decision to attend")
	}

	if _, err := a.Predict(context.Background(), Observation{History: []int{10, 150}, Capacity: 100}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	threshold, ok := a.Threshold()
	if !ok {
		t.Fatal("expected adaptive threshold")
	}
	if threshold < 0.7-1e-9 || threshold > 0.7+1e-9 {
		t.Fatalf("expected threshold 0.7, got %v", threshold)
	}

	a.Reset()
	if threshold, _ := a.Threshold(); threshold != 0.6 {
		t.Fatalf("expected reset threshold 0.6, got %v", threshold)
	}
}

func TestAdaptiveThresholdClamps(t *testing.T) {
	tests := []struct {
		name      string
		initial   float64
		history   []int
		wantFirst bool
		want      float64
	}{
		{name: "bad attend clamps at one", initial: 0.95, history: []int{10, 150}, wantFirst: true, want: 1.0},
		{name: "bad abstain clamps at zero", initial: 0.05, history: []int{90, 10}, wantFirst: false, want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustCreate(t, newTestFactory(tt.name), Config{
				Kind:       KindBuiltIn,
				Strategy:   StrategyAdaptive,
				Parameters: map[string]any{"initialThreshold": tt.initial, "adaptationRate": 0.1},
			})
			first, err := a.Predict(context.Background(), Observation{History: tt.history[:1], Capacity: 100})
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if first != tt.wantFirst {
				t.Fatalf("first decision = %v, want %v", first, tt.wantFirst)
			}
			if _, err := a.Predict(context.Background(), Observation{History: tt.history, Capacity: 100}); err != nil {
				t.Fatalf("predict: %v", err)
			}
			if got, _ := a.Threshold(); got != tt.want {
				t.Fatalf("threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdaptiveKeepsThresholdAfterGoodDecision(t *testing.T) {
	a := mustCreate(t, newTestFactory("adaptive-good"), Config{Kind: KindBuiltIn, Strategy: StrategyAdaptive})
	if _, err := a.Predict(context.Background(), Observation{History: []int{10}, Capacity: 100}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if _, err := a.Predict(context.Background(), Observation{History: []int{10, 50}, Capacity: 100}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got, _ := a.Threshold(); got != DefaultInitialThreshold {
		t.Fatalf("expected threshold %v, got %v", DefaultInitialThreshold, got)
	}
}

func TestHumanAgentConsumesDecision(t *testing.T) {
	a := mustCreate(t, newTestFactory("human"), Config{Name: "Ana", Kind: KindHuman, UserID: "user-1", ExternalUserID: "tg-1"})
	if a.UserID != "user-1" || a.ExternalUserID != "tg-1" {
		t.Fatalf("expected user identifiers to be kept, got %q %q", a.UserID, a.ExternalUserID)
	}

	if _, err := a.Predict(context.Background(), Observation{Capacity: 1}); !errors.Is(err, ErrDecisionMissing) {
		t.Fatalf("expected ErrDecisionMissing, got %v", err)
	}
	if err := a.SetDecision(true); err != nil {
		t.Fatalf("set decision: %v", err)
	}
	if !a.HasDecision() {
		t.Fatal("expected pending decision")
	}
	got, err := a.Predict(context.Background(), Observation{Capacity: 1})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !got {
		t.Fatal("expected the pending decision")
	}
	if a.HasDecision() {
		t.Fatal("expected decision to be consumed")
	}
}

func TestSetDecisionRejectsNonHuman(t *testing.T) {
	a := mustCreate(t, newTestFactory("nonhuman"), Config{Kind: KindBuiltIn})
	if err := a.SetDecision(true); !errors.Is(err, ErrNotHuman) {
		t.Fatalf("expected ErrNotHuman, got %v", err)
	}
	if a.HasDecision() {
		t.Fatal("expected no pending decision")
	}
}

func TestCustomAgent(t *testing.T) {
	f := newTestFactory("custom")
	a, err := f.CreateAgent(Config{Kind: KindCustom, Code: "#history == 0 or last(history) <= capacity"}, &ExecutionContext{Capacity: 5})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if a.Strategy != StrategyCustom || a.Kind != KindCustom {
		t.Fatalf("unexpected agent %+v", a)
	}

	tests := []struct {
		history []int
		want    bool
	}{
		{history: nil, want: true},
		{history: []int{3}, want: true},
		{history: []int{3, 8}, want: false},
	}
	for _, tt := range tests {
		got, err := a.Predict(context.Background(), Observation{History: tt.history, Capacity: 5, Round: len(tt.history) + 1})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if got != tt.want {
			t.Fatalf("history %v: got %v, want %v", tt.history, got, tt.want)
		}
	}
}

func TestCustomAgentSeesRoundNumber(t *testing.T) {
	f := newTestFactory("custom-round")
	a, err := f.CreateAgent(Config{Kind: KindCustom, Code: "roundNumber == 3"}, &ExecutionContext{Capacity: 5, RoundNumber: 1})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	got, err := a.Predict(context.Background(), Observation{History: []int{1, 2}, Capacity: 5, Round: 3})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !got {
		t.Fatal("expected the observed round number")
	}
}

func TestCustomAgentErrorsPropagate(t *testing.T) {
	f := newTestFactory("custom-error")
	a, err := f.CreateAgent(Config{Kind: KindCustom, Code: `error("nope")`}, &ExecutionContext{Capacity: 5})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if _, err := a.Predict(context.Background(), Observation{Capacity: 5}); !errors.Is(err, sandbox.ErrExecution) {
		t.Fatalf("expected sandbox.ErrExecution, got %v", err)
	}
}

func TestCreateAgentErrors(t *testing.T) {
	f := newTestFactory("errors")
	exec := &ExecutionContext{Capacity: 5}
	tests := []struct {
		name string
		cfg  Config
		exec *ExecutionContext
		want error
	}{
		{name: "unknown kind", cfg: Config{Kind: "robot"}, want: ErrInvalidKind},
		{name: "unknown strategy", cfg: Config{Kind: KindBuiltIn, Strategy: "genetic"}, want: ErrInvalidStrategy},
		{name: "custom without code", cfg: Config{Kind: KindCustom}, exec: exec, want: ErrCustomCodeMissing},
		{name: "custom without context", cfg: Config{Kind: KindCustom, Code: "true"}, want: ErrCustomContextMissing},
		{name: "custom requiring modules", cfg: Config{Kind: KindCustom, Code: `require("os")`}, exec: exec, want: sandbox.ErrInvalidCode},
		{name: "non numeric parameter", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyThreshold, Parameters: map[string]any{"threshold": "high"}}, want: ErrInvalidParameter},
		{name: "unsupported parameter type", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyAdaptive, Parameters: map[string]any{"adaptationRate": true}}, want: ErrInvalidParameter},
		{name: "fractional window", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyMovingAverage, Parameters: map[string]any{"windowSize": 2.5}}, want: ErrInvalidParameter},
		{name: "oversized window", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyMovingAverage, Parameters: map[string]any{"windowSize": 1e20}}, want: ErrInvalidParameter},
		{name: "infinite window", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyMovingAverage, Parameters: map[string]any{"windowSize": math.Inf(1)}}, want: ErrInvalidParameter},
		{name: "probability out of range", cfg: Config{Kind: KindBuiltIn, Strategy: StrategyThreshold, Parameters: map[string]any{"goProbability": 1.5}}, want: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.CreateAgent(tt.cfg, tt.exec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateAgentResolvesDefaults(t *testing.T) {
	f := newTestFactory("defaults")
	tests := []struct {
		strategy Strategy
		want     map[string]float64
	}{
		{strategy: StrategyThreshold, want: map[string]float64{ParamThreshold: 1.0, ParamGoProbability: 0.8}},
		{strategy: StrategyMovingAverage, want: map[string]float64{ParamWindowSize: 5, ParamThreshold: 0.6}},
		{strategy: StrategyAdaptive, want: map[string]float64{ParamInitialThreshold: 0.6, ParamAdaptationRate: 0.1}},
	}
	for _, tt := range tests {
		a := mustCreate(t, f, Config{Kind: KindBuiltIn, Strategy: tt.strategy})
		for name, want := range tt.want {
			if got := a.Parameters[name]; got != want {
				t.Fatalf("%s %s = %v, want %v", tt.strategy, name, got, want)
			}
		}
	}
}

func TestCreateAgentsNamesAndIDs(t *testing.T) {
	f := NewFactory(nil, random.NewSeeded("many"))
	tests := []struct {
		name  string
		first string
		last  string
	}{
		{name: "Bar goer", first: "Bar goer 1", last: "Bar goer 3"},
		{name: "", first: "Agent 1", last: "Agent 3"},
	}
	for _, tt := range tests {
		agents, err := f.CreateAgents(3, Config{Name: tt.name, Kind: KindBuiltIn}, nil)
		if err != nil {
			t.Fatalf("create agents: %v", err)
		}
		if len(agents) != 3 {
			t.Fatalf("expected 3 agents, got %d", len(agents))
		}
		if agents[0].Name != tt.first || agents[2].Name != tt.last {
			t.Fatalf("unexpected names %q, %q", agents[0].Name, agents[2].Name)
		}
		seen := map[string]bool{}
		for _, a := range agents {
			if a.ID == "" || seen[a.ID] {
				t.Fatalf("expected unique ids, got %q", a.ID)
			}
			seen[a.ID] = true
		}
	}
}

func TestCreateAgentsStopsAtFirstError(t *testing.T) {
	f := newTestFactory("many-error")
	_, err := f.CreateAgents(2, Config{Kind: KindCustom, Code: "true"}, nil)
	if !errors.Is(err, ErrCustomContextMissing) {
		t.Fatalf("expected ErrCustomContextMissing, got %v", err)
	}
}
