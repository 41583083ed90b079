// Package game owns one attendance game: its roster, status, round counter,
// and attendance and benefit histories.
//
// A Game is not safe for concurrent use. Callers serialise operations on a
// game, typically with one lock per game identifier.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
	"github.com/louisbranch/elfarol/internal/platform/id"
	"github.com/louisbranch/elfarol/internal/simulation/agent"
)

var (
	// ErrEmptyName indicates a missing game name.
	ErrEmptyName = apperrors.New(apperrors.CodeGameNameEmpty, "game name is required")
	// ErrInvalidCapacity indicates a capacity that is not positive.
	ErrInvalidCapacity = apperrors.New(apperrors.CodeGameInvalidCapacity, "capacity must be positive")
	// ErrInvalidAgentCount indicates a population size that is not positive.
	ErrInvalidAgentCount = apperrors.New(apperrors.CodeGameInvalidAgentCount, "number of agents must be positive")
	// ErrInvalidRounds indicates a negative round limit.
	ErrInvalidRounds = apperrors.New(apperrors.CodeGameInvalidRounds, "number of rounds must not be negative")
	// ErrInvalidHistoryLimit indicates a negative history retention limit.
	ErrInvalidHistoryLimit = apperrors.New(apperrors.CodeGameInvalidHistoryLimit, "history limit must not be negative")
	// ErrInvalidStatusTransition indicates a disallowed status change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeGameInvalidStatusTransition, "game status transition is not allowed")
	// ErrStatusDisallowsOperation indicates an operation the current status does not permit.
	ErrStatusDisallowsOperation = apperrors.New(apperrors.CodeGameStatusDisallowsOp, "game status does not allow this operation")
	// ErrRosterFull indicates the roster already holds NumAgents agents.
	ErrRosterFull = apperrors.New(apperrors.CodeGameRosterFull, "game already has its maximum number of agents")
	// ErrRosterIncomplete indicates a start attempt without exactly NumAgents agents.
	ErrRosterIncomplete = apperrors.New(apperrors.CodeGameRosterIncomplete, "game must have exactly its configured number of agents")
	// ErrRoundsExhausted indicates the round limit was already reached.
	ErrRoundsExhausted = apperrors.New(apperrors.CodeGameRoundsExhausted, "game has reached its maximum number of rounds")
	// ErrAgentNotFound indicates an unknown agent identifier.
	ErrAgentNotFound = apperrors.New(apperrors.CodeAgentNotFound, "agent not found")
)

// BenefitFormula computes the total benefit of a round.
type BenefitFormula func(attendance, capacity int) float64

// BenefitRules configures how a round's total benefit is computed. Zero
// multipliers mean 1. A Formula replaces the multipliers entirely.
type BenefitRules struct {
	PositiveMultiplier float64
	NegativeMultiplier float64
	Formula            BenefitFormula
}

// Config is the immutable configuration of a game.
type Config struct {
	Capacity  int
	NumAgents int
	// NumRounds limits the rounds a game plays. Zero means unbounded.
	NumRounds    int
	BenefitRules BenefitRules
	// MaxHistoryInMemory keeps only the most recent entries of the
	// histories. Zero keeps everything.
	MaxHistoryInMemory int
}

// CreateInput describes a game to create.
type CreateInput struct {
	Name        string
	Description string
	CreatedBy   string
	Config      Config
}

// Game is one simulation instance.
type Game struct {
	id          string
	name        string
	description string
	createdBy   string
	config      Config

	status       Status
	agents       []*agent.Agent
	currentRound int
	attendance   []int
	benefit      []float64
	totalBenefit float64

	createdAt time.Time
	updatedAt time.Time

	now   func() time.Time
	idGen func() (string, error)
}

// New validates input and creates a Draft game.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (*Game, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := validateConfig(input.Config); err != nil {
		return nil, err
	}

	gameID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate game id: %w", err)
	}

	createdAt := now().UTC()
	return &Game{
		id:          gameID,
		name:        name,
		description: strings.TrimSpace(input.Description),
		createdBy:   strings.TrimSpace(input.CreatedBy),
		config:      input.Config,
		status:      StatusDraft,
		createdAt:   createdAt,
		updatedAt:   createdAt,
		now:         now,
		idGen:       idGenerator,
	}, nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Capacity <= 0:
		return ErrInvalidCapacity
	case cfg.NumAgents <= 0:
		return ErrInvalidAgentCount
	case cfg.NumRounds < 0:
		return ErrInvalidRounds
	case cfg.MaxHistoryInMemory < 0:
		return ErrInvalidHistoryLimit
	}
	return nil
}

func (g *Game) ID() string          { return g.id }
func (g *Game) Name() string        { return g.name }
func (g *Game) Description() string { return g.description }
func (g *Game) CreatedBy() string   { return g.createdBy }
func (g *Game) Config() Config      { return g.config }
func (g *Game) Status() Status      { return g.status }
func (g *Game) CurrentRound() int   { return g.currentRound }

// TotalBenefit is the sum of every round's benefit, including rounds
// dropped from the in-memory history.
func (g *Game) TotalBenefit() float64 { return g.totalBenefit }

func (g *Game) CreatedAt() time.Time { return g.createdAt }
func (g *Game) UpdatedAt() time.Time { return g.updatedAt }

// Agents returns the roster in evaluation order.
func (g *Game) Agents() []*agent.Agent {
	out := make([]*agent.Agent, len(g.agents))
	copy(out, g.agents)
	return out
}

// Agent looks up a roster member by identifier.
func (g *Game) Agent(agentID string) (*agent.Agent, error) {
	for _, a := range g.agents {
		if a.ID == agentID {
			return a, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeAgentNotFound, "agent not found", map[string]string{"agent_id": agentID})
}

// AttendanceHistory returns the retained attendance history, oldest first.
func (g *Game) AttendanceHistory() []int {
	out := make([]int, len(g.attendance))
	copy(out, g.attendance)
	return out
}

// BenefitHistory returns the retained benefit history, parallel to AttendanceHistory.
func (g *Game) BenefitHistory() []float64 {
	out := make([]float64, len(g.benefit))
	copy(out, g.benefit)
	return out
}

// AddAgent appends an agent to a Draft game's roster.
func (g *Game) AddAgent(a *agent.Agent) error {
	if a == nil {
		return errors.New("agent is required")
	}
	if err := g.requireStatus("add agent", StatusDraft); err != nil {
		return err
	}
	if len(g.agents) >= g.config.NumAgents {
		return apperrors.WithMetadata(apperrors.CodeGameRosterFull, "game already has its maximum number of agents", map[string]string{
			"num_agents": fmt.Sprint(g.config.NumAgents),
		})
	}
	g.agents = append(g.agents, a)
	g.touch()
	return nil
}

// RemoveAgent removes an agent from a Draft game's roster.
func (g *Game) RemoveAgent(agentID string) error {
	if err := g.requireStatus("remove agent", StatusDraft); err != nil {
		return err
	}
	for i, a := range g.agents {
		if a.ID == agentID {
			g.agents = append(g.agents[:i], g.agents[i+1:]...)
			g.touch()
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeAgentNotFound, "agent not found", map[string]string{"agent_id": agentID})
}

// State is a read-only summary of a game.
type State struct {
	GameID            string
	Status            Status
	CurrentRound      int
	TotalBenefit      float64
	AverageAttendance float64
	AgentCount        int
	// LastAttendance and LastBenefit are nil before the first round.
	LastAttendance *int
	LastBenefit    *float64
}

// State summarises the game. AverageAttendance covers the retained history.
func (g *Game) State() State {
	s := State{
		GameID:       g.id,
		Status:       g.status,
		CurrentRound: g.currentRound,
		TotalBenefit: g.totalBenefit,
		AgentCount:   len(g.agents),
	}
	if n := len(g.attendance); n > 0 {
		total := 0
		for _, a := range g.attendance {
			total += a
		}
		s.AverageAttendance = float64(total) / float64(n)
		lastAttendance := g.attendance[n-1]
		lastBenefit := g.benefit[n-1]
		s.LastAttendance = &lastAttendance
		s.LastBenefit = &lastBenefit
	}
	return s
}

// Snapshot is the persistable projection of a game.
type Snapshot struct {
	ID           string
	Name         string
	Description  string
	CreatedBy    string
	Status       Status
	Config       Config
	AgentCount   int
	CurrentRound int
	TotalBenefit float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot captures the game's persistable fields.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:           g.id,
		Name:         g.name,
		Description:  g.description,
		CreatedBy:    g.createdBy,
		Status:       g.status,
		Config:       g.config,
		AgentCount:   len(g.agents),
		CurrentRound: g.currentRound,
		TotalBenefit: g.totalBenefit,
		CreatedAt:    g.createdAt,
		UpdatedAt:    g.updatedAt,
	}
}

func (g *Game) touch() {
	g.updatedAt = g.now().UTC()
}
