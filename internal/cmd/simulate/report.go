package simulate

import (
	"io"
	"time"

	"github.com/louisbranch/elfarol/internal/simulation/engine"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// groupSummary aggregates the performance of one agent group.
type groupSummary struct {
	name         string
	agents       int
	decisions    int
	goCount      int
	totalBenefit float64
	winRates     float64
}

func (g groupSummary) goRate() float64 {
	if g.decisions == 0 {
		return 0
	}
	return float64(g.goCount) / float64(g.decisions)
}

func (g groupSummary) averageBenefit() float64 {
	if g.agents == 0 {
		return 0
	}
	return g.totalBenefit / float64(g.agents)
}

func (g groupSummary) winRate() float64 {
	if g.agents == 0 {
		return 0
	}
	return g.winRates / float64(g.agents)
}

func summarizeGroups(r run, res engine.SimulationResult) []groupSummary {
	groups := make([]groupSummary, len(r.scenario.Agents))
	for i, g := range r.scenario.Agents {
		groups[i].name = g.Name
	}
	for _, p := range res.Performance {
		i, ok := r.groups[p.AgentID]
		if !ok {
			continue
		}
		groups[i].agents++
		groups[i].decisions += p.TotalRounds
		groups[i].goCount += p.GoCount
		groups[i].totalBenefit += p.TotalBenefit
		groups[i].winRates += p.WinRate
	}
	return groups
}

func writeReport(out io.Writer, r run, res engine.SimulationResult) {
	p := message.NewPrinter(language.English)
	st := res.FinalStats

	p.Fprintf(out, "\n== %s (%s) ==\n", r.scenario.Name, res.GameID)
	p.Fprintf(out, "status:      %s after %d rounds (%d this run, %v)\n", res.Status, res.TotalRounds, len(res.Rounds), res.Duration.Round(time.Millisecond))
	p.Fprintf(out, "capacity:    %d of %d agents\n", r.scenario.Capacity, r.scenario.NumAgents)
	p.Fprintf(out, "attendance:  mean %.2f, stddev %.2f\n", st.AverageAttendance, st.AttendanceStdDev)
	p.Fprintf(out, "benefit:     total %.2f, mean %.2f per round\n", st.TotalBenefit, st.AverageBenefit)
	p.Fprintf(out, "efficiency:  %.1f%%\n", st.Efficiency*100)
	p.Fprintf(out, "rounds:      %d within capacity, %d over\n", st.RoundsWithinCapacity, st.RoundsOverCapacity)
	for _, g := range summarizeGroups(r, res) {
		p.Fprintf(out, "  %-20s %4d agents  go %5.1f%%  win %5.1f%%  benefit %.2f per agent\n",
			g.name, g.agents, g.goRate()*100, g.winRate()*100, g.averageBenefit())
	}
}
