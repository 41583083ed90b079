package simulate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/louisbranch/elfarol/internal/simulation/agent"
	"github.com/louisbranch/elfarol/internal/simulation/game"
	"gopkg.in/yaml.v3"
)

// Scenario is one game described in a scenario file.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Capacity    int    `yaml:"capacity"`
	// NumAgents defaults to the sum of the group counts.
	NumAgents  int          `yaml:"num_agents"`
	Rounds     int          `yaml:"rounds"`
	Benefit    Benefit      `yaml:"benefit"`
	MaxHistory int          `yaml:"max_history"`
	Agents     []AgentGroup `yaml:"agents"`
}

// Benefit holds the benefit multipliers. Zero means 1.
type Benefit struct {
	Positive float64 `yaml:"positive"`
	Negative float64 `yaml:"negative"`
}

// AgentGroup describes Count agents sharing one configuration.
type AgentGroup struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Strategy   string         `yaml:"strategy"`
	Count      int            `yaml:"count"`
	Parameters map[string]any `yaml:"parameters"`
	Code       string         `yaml:"code"`
}

// scenarioFile accepts either a single scenario or a list under
// "scenarios".
type scenarioFile struct {
	Scenario  `yaml:",inline"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads every file in order.
func LoadScenarios(paths []string) ([]Scenario, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one scenario file is required")
	}
	var out []Scenario
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scenario %s: %w", path, err)
		}
		scenarios, err := ParseScenarios(data)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", path, err)
		}
		out = append(out, scenarios...)
	}
	return out, nil
}

// ParseScenarios decodes and validates a scenario document.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	scenarios := file.Scenarios
	if len(scenarios) == 0 {
		scenarios = []Scenario{file.Scenario}
	}
	for i := range scenarios {
		if err := scenarios[i].normalize(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
	}
	return scenarios, nil
}

func (s *Scenario) normalize() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Agents) == 0 {
		return errors.New("at least one agent group is required")
	}
	total := 0
	for i := range s.Agents {
		g := &s.Agents[i]
		if g.Count == 0 {
			g.Count = 1
		}
		if g.Count < 0 {
			return fmt.Errorf("agent group %d: count must be positive", i+1)
		}
		if g.Type == "" {
			g.Type = string(agent.KindBuiltIn)
		}
		if agent.Kind(g.Type) == agent.KindHuman {
			return fmt.Errorf("agent group %d: human agents cannot play unattended", i+1)
		}
		if g.Name == "" {
			g.Name = fmt.Sprintf("Group %d", i+1)
		}
		total += g.Count
	}
	if s.NumAgents == 0 {
		s.NumAgents = total
	}
	if s.NumAgents != total {
		return fmt.Errorf("num_agents %d does not match %d agents in groups", s.NumAgents, total)
	}
	return nil
}

// GameInput converts the scenario to a game description.
func (s Scenario) GameInput(createdBy string) game.CreateInput {
	return game.CreateInput{
		Name:        s.Name,
		Description: s.Description,
		CreatedBy:   createdBy,
		Config: game.Config{
			Capacity:  s.Capacity,
			NumAgents: s.NumAgents,
			NumRounds: s.Rounds,
			BenefitRules: game.BenefitRules{
				PositiveMultiplier: s.Benefit.Positive,
				NegativeMultiplier: s.Benefit.Negative,
			},
			MaxHistoryInMemory: s.MaxHistory,
		},
	}
}

// AgentConfig converts the group to an agent description.
func (g AgentGroup) AgentConfig() agent.Config {
	return agent.Config{
		Name:       g.Name,
		Kind:       agent.Kind(g.Type),
		Strategy:   agent.Strategy(g.Strategy),
		Parameters: g.Parameters,
		Code:       g.Code,
	}
}
