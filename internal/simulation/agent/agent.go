// Package agent defines the decision makers of an attendance game.
//
// Every agent answers one question per round: attend or abstain. The answer
// comes from one of a closed set of strategies: random, threshold, moving
// average, adaptive, human, or custom sandboxed code.
package agent

import (
	"context"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
)

// Kind describes who controls an agent.
type Kind string

const (
	// KindBuiltIn is an agent driven by a built-in strategy.
	KindBuiltIn Kind = "built_in"
	// KindCustom is an agent driven by user supplied code.
	KindCustom Kind = "custom"
	// KindHuman is an agent whose decisions are supplied externally.
	KindHuman Kind = "human"
)

// Strategy names the decision rule of an agent.
type Strategy string

const (
	StrategyRandom        Strategy = "random"
	StrategyThreshold     Strategy = "threshold"
	StrategyMovingAverage Strategy = "moving_average"
	StrategyAdaptive      Strategy = "adaptive"
	StrategyHuman         Strategy = "human"
	StrategyCustom        Strategy = "custom"
)

var (
	// ErrInvalidKind indicates an unknown agent kind.
	ErrInvalidKind = apperrors.New(apperrors.CodeAgentInvalidType, "agent type is not supported")
	// ErrInvalidStrategy indicates an unknown built-in strategy.
	ErrInvalidStrategy = apperrors.New(apperrors.CodeAgentInvalidStrategy, "built-in strategy is not supported")
	// ErrInvalidParameter indicates a strategy parameter that is not numeric or out of range.
	ErrInvalidParameter = apperrors.New(apperrors.CodeAgentInvalidParameter, "agent parameter is invalid")
	// ErrCustomCodeMissing indicates a custom agent without code.
	ErrCustomCodeMissing = apperrors.New(apperrors.CodeAgentCustomCodeMissing, "custom agent requires code")
	// ErrCustomContextMissing indicates a custom agent created without an execution context.
	ErrCustomContextMissing = apperrors.New(apperrors.CodeAgentCustomContextMissing, "custom agent requires an execution context")
	// ErrNotHuman indicates a human-only operation on another kind of agent.
	ErrNotHuman = apperrors.New(apperrors.CodeAgentNotHuman, "agent is not human controlled")
	// ErrDecisionMissing indicates a human agent was asked to predict without a pending decision.
	ErrDecisionMissing = apperrors.New(apperrors.CodeAgentDecisionMissing, "human agent decision not set")
)

// Observation is what an agent sees before deciding a round.
type Observation struct {
	// History holds attendance of earlier rounds, oldest first. It never
	// includes the round being decided.
	History  []int
	Capacity int
	// Round is the 1-indexed number of the round being decided.
	Round int
}

type predictor interface {
	predict(ctx context.Context, obs Observation) (bool, error)
}

// Agent is one member of a game's roster.
type Agent struct {
	ID       string
	Name     string
	Kind     Kind
	Strategy Strategy
	// Parameters holds the resolved numeric parameters of built-in strategies.
	Parameters map[string]float64
	// Code is the source of a custom agent.
	Code string
	// UserID and ExternalUserID identify the controller of a human agent.
	UserID         string
	ExternalUserID string

	impl predictor
}

// Predict decides whether the agent attends the observed round.
func (a *Agent) Predict(ctx context.Context, obs Observation) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.impl.predict(ctx, obs)
}

// Reset restores the initial state of adaptive agents. Other agents are unaffected.
func (a *Agent) Reset() {
	if adaptive, ok := a.impl.(*adaptiveStrategy); ok {
		adaptive.reset()
	}
}

// Threshold reports the current threshold of an adaptive agent.
func (a *Agent) Threshold() (float64, bool) {
	adaptive, ok := a.impl.(*adaptiveStrategy)
	if !ok {
		return 0, false
	}
	return adaptive.current, true
}

// SetDecision records the pending decision of a human agent.
func (a *Agent) SetDecision(attend bool) error {
	human, ok := a.impl.(*humanStrategy)
	if !ok {
		return ErrNotHuman
	}
	human.set(attend)
	return nil
}

// HasDecision reports whether a human agent has a pending decision.
func (a *Agent) HasDecision() bool {
	human, ok := a.impl.(*humanStrategy)
	return ok && human.pending != nil
}
