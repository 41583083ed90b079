// Package stats derives aggregate measures from a game's history.
package stats

import (
	"math"
	"strings"

	"github.com/louisbranch/elfarol/internal/simulation/game"
)

// Input is everything the calculator needs. It can be rebuilt from
// persisted rounds alone.
type Input struct {
	GameID     string
	Attendance []int
	Benefit    []float64
	Capacity   int
	NumAgents  int
}

// Stats summarises a history.
type Stats struct {
	GameID               string
	TotalRounds          int
	TotalBenefit         float64
	AverageBenefit       float64
	AverageAttendance    float64
	AttendanceVariance   float64
	AttendanceStdDev     float64
	OptimalBenefit       float64
	MinBenefit           float64
	Efficiency           float64
	RoundsWithinCapacity int
	RoundsOverCapacity   int
	AttendanceHistory    []int
	BenefitHistory       []float64
}

// Calculate computes Stats. An empty history yields the zero Stats.
//
// Efficiency places the total benefit between the worst case, every agent
// attending every round, and the best case, capacity attendance every round:
// (total - min) / (optimal - min). It is 0 when the two bounds coincide.
func Calculate(in Input) Stats {
	rounds := len(in.Attendance)
	if rounds == 0 {
		return Stats{GameID: in.GameID, AttendanceHistory: []int{}, BenefitHistory: []float64{}}
	}

	var totalBenefit float64
	for _, b := range in.Benefit {
		totalBenefit += b
	}
	totalAttendance := 0
	within := 0
	for _, a := range in.Attendance {
		totalAttendance += a
		if a <= in.Capacity {
			within++
		}
	}

	n := float64(rounds)
	avgAttendance := float64(totalAttendance) / n
	var variance float64
	for _, a := range in.Attendance {
		diff := float64(a) - avgAttendance
		variance += diff * diff
	}
	variance /= n

	optimal := float64(in.Capacity) * n
	minBenefit := -float64(in.NumAgents) * n
	var efficiency float64
	if optimal != minBenefit {
		efficiency = (totalBenefit - minBenefit) / (optimal - minBenefit)
	}

	return Stats{
		GameID:               in.GameID,
		TotalRounds:          rounds,
		TotalBenefit:         totalBenefit,
		AverageBenefit:       totalBenefit / n,
		AverageAttendance:    avgAttendance,
		AttendanceVariance:   variance,
		AttendanceStdDev:     math.Sqrt(variance),
		OptimalBenefit:       optimal,
		MinBenefit:           minBenefit,
		Efficiency:           efficiency,
		RoundsWithinCapacity: within,
		RoundsOverCapacity:   rounds - within,
		AttendanceHistory:    append([]int(nil), in.Attendance...),
		BenefitHistory:       append([]float64(nil), in.Benefit...),
	}
}

// Performance summarises one agent across rounds.
type Performance struct {
	AgentID        string
	AgentName      string
	TotalRounds    int
	GoCount        int
	NoGoCount      int
	TotalBenefit   float64
	AverageBenefit float64
	// WinRate is the fraction of good decisions: attending a round within
	// capacity or staying away from an overcrowded one.
	WinRate float64
	// Pattern lists decisions in round order, G for go and N for no-go.
	Pattern string
}

// AgentPerformance aggregates per-agent outcomes in first-seen order.
// Rounds without a recorded capacity are judged against capacity.
func AgentPerformance(rounds []game.RoundResult, capacity int) []Performance {
	index := map[string]int{}
	var out []Performance
	patterns := map[string]*strings.Builder{}
	wins := map[string]int{}

	for _, r := range rounds {
		limit := r.Capacity
		if limit == 0 {
			limit = capacity
		}
		for _, d := range r.Decisions {
			i, ok := index[d.AgentID]
			if !ok {
				i = len(out)
				index[d.AgentID] = i
				out = append(out, Performance{AgentID: d.AgentID, AgentName: d.AgentName})
				patterns[d.AgentID] = &strings.Builder{}
			}
			p := &out[i]
			p.TotalRounds++
			p.TotalBenefit += d.Benefit
			if d.Attend {
				p.GoCount++
				patterns[d.AgentID].WriteByte('G')
			} else {
				p.NoGoCount++
				patterns[d.AgentID].WriteByte('N')
			}
			if d.Attend == (r.Attendance <= limit) {
				wins[d.AgentID]++
			}
		}
	}

	for i := range out {
		p := &out[i]
		p.AverageBenefit = p.TotalBenefit / float64(p.TotalRounds)
		p.WinRate = float64(wins[p.AgentID]) / float64(p.TotalRounds)
		p.Pattern = patterns[p.AgentID].String()
	}
	return out
}
