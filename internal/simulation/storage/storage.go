// Package storage defines persistence contracts for simulation state.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// GameRecord stores the persistable fields of one game.
type GameRecord struct {
	ID                 string
	Name               string
	Description        string
	CreatedBy          string
	Status             string
	Capacity           int
	NumAgents          int
	NumRounds          int
	MaxHistoryInMemory int
	PositiveMultiplier float64
	NegativeMultiplier float64
	CurrentRound       int
	TotalBenefit       float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DecisionRecord stores one agent decision within a round.
type DecisionRecord struct {
	AgentID   string
	AgentName string
	Attend    bool
	Benefit   float64
}

// RoundRecord stores one executed round with its decisions.
type RoundRecord struct {
	ID           string
	GameID       string
	RoundNumber  int
	Attendance   int
	Capacity     int
	TotalBenefit float64
	Decisions    []DecisionRecord
	ExecutedAt   time.Time
}

// GameStore persists game records.
type GameStore interface {
	// PutGame inserts or replaces a game record.
	PutGame(ctx context.Context, game GameRecord) error
	GetGame(ctx context.Context, gameID string) (GameRecord, error)
	// ListGames returns games ordered by creation time.
	ListGames(ctx context.Context) ([]GameRecord, error)
	// DeleteGame removes a game and its rounds.
	DeleteGame(ctx context.Context, gameID string) error
}

// RoundStore persists round records.
type RoundStore interface {
	// AppendRound stores a round and its decisions atomically. A second
	// round with the same game and number returns ErrAlreadyExists.
	AppendRound(ctx context.Context, round RoundRecord) error
	// ListRounds returns a game's rounds in round order.
	ListRounds(ctx context.Context, gameID string) ([]RoundRecord, error)
}

// Store persists all simulation state.
type Store interface {
	GameStore
	RoundStore
}
