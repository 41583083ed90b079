// Package engine holds games by identifier and drives their lifecycle and
// simulation runs.
//
// Operations on one game are serialised by a per-game lock, so distinct
// games can be advanced in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
	"github.com/louisbranch/elfarol/internal/platform/id"
	"github.com/louisbranch/elfarol/internal/platform/pagination"
	"github.com/louisbranch/elfarol/internal/simulation/agent"
	"github.com/louisbranch/elfarol/internal/simulation/game"
	"github.com/louisbranch/elfarol/internal/simulation/stats"
	"github.com/louisbranch/elfarol/internal/simulation/storage"
	"go.opentelemetry.io/otel"
)

// DefaultRounds is the simulation budget for games without a round limit.
const DefaultRounds = 100

// DefaultParallelism bounds how many games RunSimulations advances at once.
const DefaultParallelism = 4

var historyLimits = pagination.LimitConfig{Default: DefaultRounds, Max: 1000}

// ErrGameNotFound indicates an unknown game identifier.
var ErrGameNotFound = apperrors.New(apperrors.CodeGameNotFound, "game not found")

var tracer = otel.Tracer("elfarol.engine")

// Engine is a registry of games.
type Engine struct {
	mu    sync.RWMutex
	games map[string]*entry

	store       storage.Store
	logger      *log.Logger
	now         func() time.Time
	idGen       func() (string, error)
	parallelism int
}

type entry struct {
	mu   sync.Mutex
	game *game.Game
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records game snapshots and rounds, and serves statistics of
// games no longer held in memory.
func WithStore(store storage.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source of created games.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides game and round identifier generation.
func WithIDGenerator(idGen func() (string, error)) Option {
	return func(e *Engine) {
		if idGen != nil {
			e.idGen = idGen
		}
	}
}

// WithParallelism bounds how many games RunSimulations advances at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// New builds an empty Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		games:       map[string]*entry{},
		logger:      log.New(io.Discard, "", 0),
		now:         time.Now,
		idGen:       id.NewID,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func notFound(gameID string) error {
	return apperrors.WithMetadata(apperrors.CodeGameNotFound, "game not found", map[string]string{"game_id": gameID})
}

func deletedRound(ent *entry) int {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.game.CurrentRound()
}

func (e *Engine) lookup(gameID string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.games[gameID]
	if !ok {
		return nil, notFound(gameID)
	}
	return ent, nil
}

// withGame runs fn holding the game's lock.
func (e *Engine) withGame(gameID string, fn func(g *game.Game) error) error {
	ent, err := e.lookup(gameID)
	if err != nil {
		return err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return fn(ent.game)
}

// CreateGame registers a new Draft game.
func (e *Engine) CreateGame(ctx context.Context, input game.CreateInput) (game.Snapshot, error) {
	g, err := game.New(input, e.now, e.idGen)
	if err != nil {
		return game.Snapshot{}, err
	}

	e.mu.Lock()
	e.games[g.ID()] = &entry{game: g}
	e.mu.Unlock()

	snapshot := g.Snapshot()
	e.logger.Printf("game %s created: %q capacity=%d agents=%d rounds=%d", snapshot.ID, snapshot.Name, snapshot.Config.Capacity, snapshot.Config.NumAgents, snapshot.Config.NumRounds)
	if err := e.recordGame(ctx, snapshot); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// Game returns a snapshot of a registered game.
func (e *Engine) Game(_ context.Context, gameID string) (game.Snapshot, error) {
	var snapshot game.Snapshot
	err := e.withGame(gameID, func(g *game.Game) error {
		snapshot = g.Snapshot()
		return nil
	})
	return snapshot, err
}

// ListGames returns snapshots of registered games, oldest first.
func (e *Engine) ListGames(_ context.Context) []game.Snapshot {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.games))
	for _, ent := range e.games {
		entries = append(entries, ent)
	}
	e.mu.RUnlock()

	snapshots := make([]game.Snapshot, 0, len(entries))
	for _, ent := range entries {
		ent.mu.Lock()
		snapshots = append(snapshots, ent.game.Snapshot())
		ent.mu.Unlock()
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
		}
		return snapshots[i].ID < snapshots[j].ID
	})
	return snapshots
}

// DeleteGame removes a game from the registry and from the store.
func (e *Engine) DeleteGame(ctx context.Context, gameID string) error {
	e.mu.Lock()
	ent, ok := e.games[gameID]
	delete(e.games, gameID)
	e.mu.Unlock()
	if !ok {
		return notFound(gameID)
	}
	e.logger.Printf("game %s deleted at round %d", gameID, deletedRound(ent))

	if e.store == nil {
		return nil
	}
	if err := e.store.DeleteGame(ctx, gameID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Printf("game %s: delete record: %v", gameID, err)
		return fmt.Errorf("delete game record: %w", err)
	}
	return nil
}

// AddAgentToGame appends an agent to a Draft game's roster.
func (e *Engine) AddAgentToGame(ctx context.Context, gameID string, a *agent.Agent) error {
	return e.mutate(ctx, gameID, func(g *game.Game) error { return g.AddAgent(a) })
}

// RemoveAgentFromGame removes an agent from a Draft game's roster.
func (e *Engine) RemoveAgentFromGame(ctx context.Context, gameID, agentID string) error {
	return e.mutate(ctx, gameID, func(g *game.Game) error { return g.RemoveAgent(agentID) })
}

// StartGame moves a Draft game to Running.
func (e *Engine) StartGame(ctx context.Context, gameID string) error {
	return e.transition(ctx, gameID, "started", (*game.Game).Start)
}

// PauseGame holds a Running game.
func (e *Engine) PauseGame(ctx context.Context, gameID string) error {
	return e.transition(ctx, gameID, "paused", (*game.Game).Pause)
}

// ResumeGame continues a Paused game.
func (e *Engine) ResumeGame(ctx context.Context, gameID string) error {
	return e.transition(ctx, gameID, "resumed", (*game.Game).Resume)
}

// CompleteGame forces a game into Completed.
func (e *Engine) CompleteGame(ctx context.Context, gameID string) error {
	return e.transition(ctx, gameID, "completed", (*game.Game).Complete)
}

// CancelGame forces a game into Cancelled.
func (e *Engine) CancelGame(ctx context.Context, gameID string) error {
	return e.transition(ctx, gameID, "cancelled", (*game.Game).Cancel)
}

func (e *Engine) transition(ctx context.Context, gameID, verb string, fn func(*game.Game) error) error {
	return e.mutate(ctx, gameID, func(g *game.Game) error {
		if err := fn(g); err != nil {
			return err
		}
		e.logger.Printf("game %s %s at round %d", g.ID(), verb, g.CurrentRound())
		return nil
	})
}

func (e *Engine) mutate(ctx context.Context, gameID string, fn func(*game.Game) error) error {
	return e.withGame(gameID, func(g *game.Game) error {
		if err := fn(g); err != nil {
			return err
		}
		return e.recordGame(ctx, g.Snapshot())
	})
}

// SetHumanDecision records the pending decision of a human agent.
func (e *Engine) SetHumanDecision(_ context.Context, gameID, agentID string, attend bool) error {
	return e.withGame(gameID, func(g *game.Game) error {
		a, err := g.Agent(agentID)
		if err != nil {
			return err
		}
		return a.SetDecision(attend)
	})
}

// State returns the summary of a registered game.
func (e *Engine) State(_ context.Context, gameID string) (game.State, error) {
	var state game.State
	err := e.withGame(gameID, func(g *game.Game) error {
		state = g.State()
		return nil
	})
	return state, err
}

// Stats computes statistics of a game. With a store configured, games not
// held in memory and games whose history was truncated by
// MaxHistoryInMemory are computed from every stored round. Without a store
// a truncated game only reports its retained rounds.
func (e *Engine) Stats(ctx context.Context, gameID string) (stats.Stats, error) {
	var result stats.Stats
	err := e.withGame(gameID, func(g *game.Game) error {
		var err error
		result, err = e.statsFor(ctx, g)
		return err
	})
	if err == nil || !errors.Is(err, ErrGameNotFound) || e.store == nil {
		return result, err
	}

	record, rounds, err := e.loadStored(ctx, gameID)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Calculate(statsInput(record, rounds)), nil
}

// HistoryEntry is one round of a game's history.
type HistoryEntry struct {
	RoundNumber int
	Attendance  int
	Benefit     float64
	Capacity    int
	Overcrowded bool
	ExecutedAt  time.Time
}

// HistoryPage is a window over a game's history.
type HistoryPage struct {
	GameID  string
	Entries []HistoryEntry
	Total   int
	Limit   int
	Offset  int
}

// History pages through a game's attendance and benefit history. In-memory
// games serve their retained history, numbered from the oldest retained
// round; other games are served from the store.
func (e *Engine) History(ctx context.Context, gameID string, limit, offset int) (HistoryPage, error) {
	limit = pagination.ClampLimit(limit, historyLimits)
	if offset < 0 {
		offset = 0
	}
	page := HistoryPage{GameID: gameID, Limit: limit, Offset: offset}

	var entries []HistoryEntry
	err := e.withGame(gameID, func(g *game.Game) error {
		attendance := g.AttendanceHistory()
		benefit := g.BenefitHistory()
		capacity := g.Config().Capacity
		first := g.CurrentRound() - len(attendance) + 1
		entries = make([]HistoryEntry, len(attendance))
		for i := range attendance {
			entries[i] = HistoryEntry{
				RoundNumber: first + i,
				Attendance:  attendance[i],
				Benefit:     benefit[i],
				Capacity:    capacity,
				Overcrowded: attendance[i] > capacity,
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGameNotFound) || e.store == nil {
			return HistoryPage{}, err
		}
		_, rounds, loadErr := e.loadStored(ctx, gameID)
		if loadErr != nil {
			return HistoryPage{}, loadErr
		}
		entries = make([]HistoryEntry, len(rounds))
		for i, r := range rounds {
			entries[i] = HistoryEntry{
				RoundNumber: r.RoundNumber,
				Attendance:  r.Attendance,
				Benefit:     r.TotalBenefit,
				Capacity:    r.Capacity,
				Overcrowded: r.Attendance > r.Capacity,
				ExecutedAt:  r.ExecutedAt,
			}
		}
	}

	page.Total = len(entries)
	start, end := pagination.Window(len(entries), offset, limit)
	page.Entries = entries[start:end]
	return page, nil
}

func (e *Engine) loadStored(ctx context.Context, gameID string) (storage.GameRecord, []storage.RoundRecord, error) {
	record, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.GameRecord{}, nil, notFound(gameID)
		}
		return storage.GameRecord{}, nil, fmt.Errorf("load game record: %w", err)
	}
	rounds, err := e.store.ListRounds(ctx, gameID)
	if err != nil {
		return storage.GameRecord{}, nil, fmt.Errorf("load rounds: %w", err)
	}
	return record, rounds, nil
}

// statsFor computes the stats of a held game. The caller holds the game lock.
func (e *Engine) statsFor(ctx context.Context, g *game.Game) (stats.Stats, error) {
	if e.store == nil || len(g.AttendanceHistory()) >= g.CurrentRound() {
		return gameStats(g), nil
	}
	record, rounds, err := e.loadStored(ctx, g.ID())
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Calculate(statsInput(record, rounds)), nil
}

func gameStats(g *game.Game) stats.Stats {
	return stats.Calculate(stats.Input{
		GameID:     g.ID(),
		Attendance: g.AttendanceHistory(),
		Benefit:    g.BenefitHistory(),
		Capacity:   g.Config().Capacity,
		NumAgents:  g.Config().NumAgents,
	})
}
