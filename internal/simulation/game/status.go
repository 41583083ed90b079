package game

import (
	"strconv"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
)

// Status describes the lifecycle of a game.
type Status string

const (
	// StatusDraft accepts roster changes and waits to start.
	StatusDraft Status = "draft"
	// StatusRunning plays rounds.
	StatusRunning Status = "running"
	// StatusPaused holds a running game.
	StatusPaused Status = "paused"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a stored status label.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(value); s {
	case StatusDraft, StatusRunning, StatusPaused, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

// Start moves a Draft game with a complete roster to Running.
func (g *Game) Start() error {
	if err := g.transition(StatusRunning, StatusDraft); err != nil {
		return err
	}
	if len(g.agents) != g.config.NumAgents {
		return apperrors.WithMetadata(apperrors.CodeGameRosterIncomplete, "game must have exactly its configured number of agents", map[string]string{
			"num_agents": strconv.Itoa(g.config.NumAgents),
			"roster":     strconv.Itoa(len(g.agents)),
		})
	}
	g.setStatus(StatusRunning)
	return nil
}

// Pause holds a Running game.
func (g *Game) Pause() error {
	if err := g.transition(StatusPaused, StatusRunning); err != nil {
		return err
	}
	g.setStatus(StatusPaused)
	return nil
}

// Resume continues a Paused game.
func (g *Game) Resume() error {
	if err := g.transition(StatusRunning, StatusPaused); err != nil {
		return err
	}
	g.setStatus(StatusRunning)
	return nil
}

// Complete forces the game into Completed. Completing a completed game is a no-op.
func (g *Game) Complete() error {
	return g.terminate(StatusCompleted)
}

// Cancel forces the game into Cancelled. Cancelling a cancelled game is a no-op.
func (g *Game) Cancel() error {
	return g.terminate(StatusCancelled)
}

func (g *Game) terminate(to Status) error {
	if g.status == to {
		return nil
	}
	if g.status.Terminal() {
		return g.transitionError(to)
	}
	g.setStatus(to)
	return nil
}

func (g *Game) transition(to, from Status) error {
	if g.status != from {
		return g.transitionError(to)
	}
	return nil
}

func (g *Game) transitionError(to Status) error {
	return apperrors.WithMetadata(apperrors.CodeGameInvalidStatusTransition, "game status transition is not allowed", map[string]string{
		"from": string(g.status),
		"to":   string(to),
	})
}

func (g *Game) requireStatus(operation string, allowed Status) error {
	if g.status != allowed {
		return apperrors.WithMetadata(apperrors.CodeGameStatusDisallowsOp, "game status does not allow this operation", map[string]string{
			"operation": operation,
			"status":    string(g.status),
		})
	}
	return nil
}

func (g *Game) setStatus(s Status) {
	g.status = s
	g.touch()
}
