package game

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/elfarol/internal/simulation/agent"
)

// Decision is one agent's choice in a round.
type Decision struct {
	AgentID   string
	AgentName string
	Attend    bool
	// Benefit is the round benefit split among attendees; abstainers get 0.
	Benefit float64
}

// RoundResult records one executed round.
type RoundResult struct {
	ID           string
	GameID       string
	Number       int
	Attendance   int
	Capacity     int
	TotalBenefit float64
	Decisions    []Decision
	ExecutedAt   time.Time
}

// ExecuteRound plays the next round of a Running game.
//
// It returns false with a nil error when the round limit was already
// reached; the game is completed in that case. Agents decide in roster
// order and only see attendance of earlier rounds. If any agent fails, the
// round is discarded and the game is left as it was.
func (g *Game) ExecuteRound(ctx context.Context) (RoundResult, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.requireStatus("execute round", StatusRunning); err != nil {
		return RoundResult{}, false, err
	}
	if g.roundsExhausted() {
		g.setStatus(StatusCompleted)
		return RoundResult{}, false, nil
	}

	number := g.currentRound + 1
	obs := agent.Observation{
		History:  g.AttendanceHistory(),
		Capacity: g.config.Capacity,
		Round:    number,
	}

	decisions := make([]Decision, 0, len(g.agents))
	attendance := 0
	for _, a := range g.agents {
		if err := ctx.Err(); err != nil {
			return RoundResult{}, false, err
		}
		attend, err := a.Predict(ctx, obs)
		if err != nil {
			return RoundResult{}, false, fmt.Errorf("round %d: agent %s: %w", number, a.ID, err)
		}
		if attend {
			attendance++
		}
		decisions = append(decisions, Decision{AgentID: a.ID, AgentName: a.Name, Attend: attend})
	}

	roundID, err := g.idGen()
	if err != nil {
		return RoundResult{}, false, fmt.Errorf("generate round id: %w", err)
	}

	total := g.calculateBenefit(attendance)
	if attendance > 0 {
		share := total / float64(attendance)
		for i := range decisions {
			if decisions[i].Attend {
				decisions[i].Benefit = share
			}
		}
	}

	g.currentRound = number
	g.attendance = append(g.attendance, attendance)
	g.benefit = append(g.benefit, total)
	g.totalBenefit += total
	if limit := g.config.MaxHistoryInMemory; limit > 0 && len(g.attendance) > limit {
		g.attendance = append([]int(nil), g.attendance[len(g.attendance)-limit:]...)
		g.benefit = append([]float64(nil), g.benefit[len(g.benefit)-limit:]...)
	}
	g.touch()
	if g.roundsExhausted() {
		g.setStatus(StatusCompleted)
	}

	return RoundResult{
		ID:           roundID,
		GameID:       g.id,
		Number:       number,
		Attendance:   attendance,
		Capacity:     g.config.Capacity,
		TotalBenefit: total,
		Decisions:    decisions,
		ExecutedAt:   g.updatedAt,
	}, true, nil
}

func (g *Game) roundsExhausted() bool {
	return g.config.NumRounds > 0 && g.currentRound >= g.config.NumRounds
}

// calculateBenefit applies the configured formula, or the multipliers:
// attendance*positive within capacity and -attendance*negative above it.
func (g *Game) calculateBenefit(attendance int) float64 {
	rules := g.config.BenefitRules
	if rules.Formula != nil {
		return rules.Formula(attendance, g.config.Capacity)
	}
	if attendance <= g.config.Capacity {
		return float64(attendance) * multiplier(rules.PositiveMultiplier)
	}
	return -float64(attendance) * multiplier(rules.NegativeMultiplier)
}

func multiplier(m float64) float64 {
	if m == 0 {
		return 1
	}
	return m
}
