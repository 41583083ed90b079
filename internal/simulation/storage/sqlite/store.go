// Package sqlite provides a SQLite-backed simulation storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/elfarol/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/elfarol/internal/simulation/storage"
	"github.com/louisbranch/elfarol/internal/simulation/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists games and rounds in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutGame inserts or replaces one game record.
func (s *Store) PutGame(ctx context.Context, game storage.GameRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	gameID := strings.TrimSpace(game.ID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(game.Name) == "" {
		return fmt.Errorf("game name is required")
	}
	createdAt := game.CreatedAt.UTC()
	updatedAt := game.UpdatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO games (
		   id, name, description, created_by, status,
		   capacity, num_agents, num_rounds, max_history_in_memory,
		   positive_multiplier, negative_multiplier,
		   current_round, total_benefit, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   status = excluded.status,
		   current_round = excluded.current_round,
		   total_benefit = excluded.total_benefit,
		   updated_at = excluded.updated_at`,
		gameID,
		strings.TrimSpace(game.Name),
		strings.TrimSpace(game.Description),
		strings.TrimSpace(game.CreatedBy),
		game.Status,
		game.Capacity,
		game.NumAgents,
		game.NumRounds,
		game.MaxHistoryInMemory,
		game.PositiveMultiplier,
		game.NegativeMultiplier,
		game.CurrentRound,
		game.TotalBenefit,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put game: %w", err)
	}
	return nil
}

const gameColumns = `id, name, description, created_by, status,
		        capacity, num_agents, num_rounds, max_history_in_memory,
		        positive_multiplier, negative_multiplier,
		        current_round, total_benefit, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (storage.GameRecord, error) {
	var game storage.GameRecord
	var createdAt, updatedAt int64
	if err := row.Scan(
		&game.ID,
		&game.Name,
		&game.Description,
		&game.CreatedBy,
		&game.Status,
		&game.Capacity,
		&game.NumAgents,
		&game.NumRounds,
		&game.MaxHistoryInMemory,
		&game.PositiveMultiplier,
		&game.NegativeMultiplier,
		&game.CurrentRound,
		&game.TotalBenefit,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.GameRecord{}, err
	}
	game.CreatedAt = fromMillis(createdAt)
	game.UpdatedAt = fromMillis(updatedAt)
	return game, nil
}

// GetGame returns one game by ID.
func (s *Store) GetGame(ctx context.Context, gameID string) (storage.GameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GameRecord{}, err
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return storage.GameRecord{}, fmt.Errorf("game id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, gameID)
	game, err := scanGame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GameRecord{}, storage.ErrNotFound
		}
		return storage.GameRecord{}, fmt.Errorf("get game: %w", err)
	}
	return game, nil
}

// ListGames returns all games ordered by creation time.
func (s *Store) ListGames(ctx context.Context) ([]storage.GameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []storage.GameRecord
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("list games: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// DeleteGame removes a game with its rounds and decisions.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE round_id IN (SELECT id FROM rounds WHERE game_id = ?)`, gameID); err != nil {
			return fmt.Errorf("delete decisions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE game_id = ?`, gameID); err != nil {
			return fmt.Errorf("delete rounds: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, gameID)
		if err != nil {
			return fmt.Errorf("delete game: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete game: %w", err)
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// AppendRound stores a round and its decisions in one transaction.
func (s *Store) AppendRound(ctx context.Context, round storage.RoundRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	roundID := strings.TrimSpace(round.ID)
	gameID := strings.TrimSpace(round.GameID)
	if roundID == "" {
		return fmt.Errorf("round id is required")
	}
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	if round.RoundNumber <= 0 {
		return fmt.Errorf("round number must be greater than zero")
	}
	executedAt := round.ExecutedAt.UTC()
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, gameID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("append round: %w", err)
		}

		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO rounds (id, game_id, round_number, attendance, capacity, total_benefit, executed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			roundID,
			gameID,
			round.RoundNumber,
			round.Attendance,
			round.Capacity,
			round.TotalBenefit,
			toMillis(executedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("append round: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO decisions (round_id, position, agent_id, agent_name, attend, benefit) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare decisions: %w", err)
		}
		defer stmt.Close()
		for i, d := range round.Decisions {
			if _, err := stmt.ExecContext(ctx, roundID, i, d.AgentID, d.AgentName, boolToInt(d.Attend), d.Benefit); err != nil {
				return fmt.Errorf("append decision %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListRounds returns a game's rounds with decisions in round order.
func (s *Store) ListRounds(ctx context.Context, gameID string) ([]storage.RoundRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, game_id, round_number, attendance, capacity, total_benefit, executed_at
		   FROM rounds
		  WHERE game_id = ?
		  ORDER BY round_number ASC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	var rounds []storage.RoundRecord
	index := map[string]int{}
	for rows.Next() {
		var round storage.RoundRecord
		var executedAt int64
		if err := rows.Scan(
			&round.ID,
			&round.GameID,
			&round.RoundNumber,
			&round.Attendance,
			&round.Capacity,
			&round.TotalBenefit,
			&executedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list rounds: %w", err)
		}
		round.ExecutedAt = fromMillis(executedAt)
		index[round.ID] = len(rounds)
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	rows.Close()

	if len(rounds) == 0 {
		return rounds, nil
	}

	decisionRows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT d.round_id, d.agent_id, d.agent_name, d.attend, d.benefit
		   FROM decisions d
		   JOIN rounds r ON r.id = d.round_id
		  WHERE r.game_id = ?
		  ORDER BY r.round_number ASC, d.position ASC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer decisionRows.Close()
	for decisionRows.Next() {
		var roundID string
		var d storage.DecisionRecord
		var attend int
		if err := decisionRows.Scan(&roundID, &d.AgentID, &d.AgentName, &attend, &d.Benefit); err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		d.Attend = attend != 0
		if i, ok := index[roundID]; ok {
			rounds[i].Decisions = append(rounds[i].Decisions, d)
		}
	}
	if err := decisionRows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return rounds, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
