package engine

import (
	"context"
	"fmt"

	"github.com/louisbranch/elfarol/internal/simulation/game"
	"github.com/louisbranch/elfarol/internal/simulation/stats"
	"github.com/louisbranch/elfarol/internal/simulation/storage"
)

// recordGame stores the snapshot when a store is configured.
func (e *Engine) recordGame(ctx context.Context, snapshot game.Snapshot) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.PutGame(ctx, gameRecord(snapshot)); err != nil {
		e.logger.Printf("game %s: record snapshot: %v", snapshot.ID, err)
		return fmt.Errorf("record game: %w", err)
	}
	return nil
}

// recordRound appends the round when a store is configured.
func (e *Engine) recordRound(ctx context.Context, result game.RoundResult) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.AppendRound(ctx, roundRecord(result)); err != nil {
		e.logger.Printf("game %s: record round %d: %v", result.GameID, result.Number, err)
		return fmt.Errorf("record round %d: %w", result.Number, err)
	}
	return nil
}

func gameRecord(s game.Snapshot) storage.GameRecord {
	return storage.GameRecord{
		ID:                 s.ID,
		Name:               s.Name,
		Description:        s.Description,
		CreatedBy:          s.CreatedBy,
		Status:             string(s.Status),
		Capacity:           s.Config.Capacity,
		NumAgents:          s.Config.NumAgents,
		NumRounds:          s.Config.NumRounds,
		MaxHistoryInMemory: s.Config.MaxHistoryInMemory,
		PositiveMultiplier: effectiveMultiplier(s.Config.BenefitRules.PositiveMultiplier),
		NegativeMultiplier: effectiveMultiplier(s.Config.BenefitRules.NegativeMultiplier),
		CurrentRound:       s.CurrentRound,
		TotalBenefit:       s.TotalBenefit,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func effectiveMultiplier(m float64) float64 {
	if m == 0 {
		return 1
	}
	return m
}

func roundRecord(r game.RoundResult) storage.RoundRecord {
	decisions := make([]storage.DecisionRecord, len(r.Decisions))
	for i, d := range r.Decisions {
		decisions[i] = storage.DecisionRecord{
			AgentID:   d.AgentID,
			AgentName: d.AgentName,
			Attend:    d.Attend,
			Benefit:   d.Benefit,
		}
	}
	return storage.RoundRecord{
		ID:           r.ID,
		GameID:       r.GameID,
		RoundNumber:  r.Number,
		Attendance:   r.Attendance,
		Capacity:     r.Capacity,
		TotalBenefit: r.TotalBenefit,
		Decisions:    decisions,
		ExecutedAt:   r.ExecutedAt,
	}
}

func statsInput(record storage.GameRecord, rounds []storage.RoundRecord) stats.Input {
	in := stats.Input{
		GameID:     record.ID,
		Attendance: make([]int, len(rounds)),
		Benefit:    make([]float64, len(rounds)),
		Capacity:   record.Capacity,
		NumAgents:  record.NumAgents,
	}
	for i, r := range rounds {
		in.Attendance[i] = r.Attendance
		in.Benefit[i] = r.TotalBenefit
	}
	return in
}
