package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memevault-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const gameColumns = `id, code, name, creator, participants, status, phase_end_time, created_at`

// CascadeResult counts the rows removed with a game
type CascadeResult struct {
	Images int64 `json:"images"`
	Memes  int64 `json:"memes"`
	Votes  int64 `json:"votes"`
}

// GameRepository handles database operations for games
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var game models.Game
	var status string
	err := row.Scan(
		&game.ID, &game.Code, &game.Name, &game.Creator, &game.Participants,
		&status, &game.PhaseEndTime, &game.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	game.Status = models.GameStatus(status)
	return &game, nil
}

func collectGames(rows pgx.Rows) ([]*models.Game, error) {
	defer rows.Close()
	games := []*models.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

// Create creates a new game. A taken code yields ErrConflict.
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		game.ID, game.Code, game.Name, game.Creator, game.Participants,
		string(game.Status), game.PhaseEndTime, game.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("game code %s: %w", game.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetByID retrieves a game by ID
func (r *GameRepository) GetByID(ctx context.Context, id string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	game, err := scanGame(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "game")
	}
	return game, nil
}

// GetByCode retrieves a game by its join code
func (r *GameRepository) GetByCode(ctx context.Context, code string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE code = $1`
	game, err := scanGame(r.db.QueryRow(ctx, query, code))
	if err != nil {
		return nil, notFound(err, "game")
	}
	return game, nil
}

// CodeExists checks if a code is used by a live game
func (r *GameRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM games WHERE code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// AddParticipant appends name in a single conditional write. added is false
// when the game is not collecting or already has the name; the current row
// is returned either way.
func (r *GameRepository) AddParticipant(ctx context.Context, id, name string) (*models.Game, bool, error) {
	query := `
		UPDATE games
		SET participants = array_append(participants, $2)
		WHERE id = $1 AND status = 'collecting' AND NOT ($2 = ANY(participants))
		RETURNING ` + gameColumns
	game, err := scanGame(r.db.QueryRow(ctx, query, id, name))
	if err == nil {
		return game, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to add participant: %w", err)
	}
	game, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return game, false, nil
}

// AdvanceStatus moves a game from one status to another. ErrConflict means
// the game was no longer in from.
func (r *GameRepository) AdvanceStatus(ctx context.Context, id string, from, to models.GameStatus, phaseEnd time.Time) (*models.Game, error) {
	query := `
		UPDATE games
		SET status = $3, phase_end_time = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + gameColumns
	game, err := scanGame(r.db.QueryRow(ctx, query, id, string(from), string(to), phaseEnd))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %s not in %s: %w", id, from, ErrConflict)
		}
		return nil, fmt.Errorf("failed to advance game: %w", err)
	}
	return game, nil
}

// SetStatus overwrites the status unconditionally
func (r *GameRepository) SetStatus(ctx context.Context, id string, status models.GameStatus, phaseEnd time.Time) (*models.Game, error) {
	query := `
		UPDATE games
		SET status = $2, phase_end_time = $3
		WHERE id = $1
		RETURNING ` + gameColumns
	game, err := scanGame(r.db.QueryRow(ctx, query, id, string(status), phaseEnd))
	if err != nil {
		return nil, notFound(err, "game")
	}
	return game, nil
}

// List returns all games, newest first
func (r *GameRepository) List(ctx context.Context) ([]*models.Game, error) {
	rows, err := r.db.Query(ctx, `SELECT `+gameColumns+` FROM games ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return collectGames(rows)
}

// CountByStatus groups games by status
func (r *GameRepository) CountByStatus(ctx context.Context) (map[models.GameStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM games GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count games: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.GameStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan game count: %w", err)
		}
		counts[models.GameStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game counts: %w", err)
	}
	return counts, nil
}

// CountSince counts games created at or after since
func (r *GameRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

// ListCompletedBefore returns completed games created before cutoff
func (r *GameRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'completed' AND created_at < $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired games: %w", err)
	}
	return collectGames(rows)
}

// ListPhaseExpired returns unfinished games whose deadline is before now
func (r *GameRepository) ListPhaseExpired(ctx context.Context, now time.Time) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status <> 'completed' AND phase_end_time < $1
		ORDER BY phase_end_time
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list games past deadline: %w", err)
	}
	return collectGames(rows)
}

// Stats counts a game's images, memes, and votes
func (r *GameRepository) Stats(ctx context.Context, id string) (models.GameStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM images WHERE game_id = $1),
			(SELECT COUNT(*) FROM memes WHERE game_id = $1),
			(SELECT COUNT(*) FROM votes WHERE game_id = $1)
	`
	var stats models.GameStats
	if err := r.db.QueryRow(ctx, query, id).Scan(&stats.ImageCount, &stats.MemeCount, &stats.VoteCount); err != nil {
		return stats, fmt.Errorf("failed to count game content: %w", err)
	}
	return stats, nil
}

// DeleteCascade removes a game with its images, memes, and votes in one
// transaction
func (r *GameRepository) DeleteCascade(ctx context.Context, id string) (CascadeResult, error) {
	var result CascadeResult
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE game_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		result.Votes = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM memes WHERE game_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete memes: %w", err)
		}
		result.Memes = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM images WHERE game_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		result.Images = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete game: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}
	return result, nil
}
