package repository

import (
	"context"
	"fmt"
	"time"

	"memevault-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteRepository handles database operations for votes
type VoteRepository struct {
	db *pgxpool.Pool
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *pgxpool.Pool) *VoteRepository {
	return &VoteRepository{db: db}
}

// Insert stores a vote unless the same origin already voted for the meme in
// the same scope, in which case ErrConflict is returned and nothing is written
func (r *VoteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (id, meme_id, game_id, voter, vote_type, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		vote.ID, vote.MemeID, vote.GameID, vote.Voter, vote.VoteType, vote.IPAddress, vote.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vote on meme %s: %w", vote.MemeID, ErrConflict)
	}
	return nil
}

// CountByMeme returns vote counts per meme within a game
func (r *VoteRepository) CountByMeme(ctx context.Context, gameID string) (map[string]int, error) {
	query := `SELECT meme_id, COUNT(*) FROM votes WHERE game_id = $1 GROUP BY meme_id`
	rows, err := r.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var memeID string
		var n int
		if err := rows.Scan(&memeID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[memeID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote counts: %w", err)
	}
	return counts, nil
}

// CountSince counts votes cast at or after since; the zero time counts every
// vote
func (r *VoteRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

// Score partitions the standalone votes of a meme into up and down
func (r *VoteRepository) Score(ctx context.Context, memeID string) (up, down int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE vote_type IS TRUE),
			COUNT(*) FILTER (WHERE vote_type IS FALSE)
		FROM votes
		WHERE meme_id = $1 AND game_id IS NULL
	`
	if err := r.db.QueryRow(ctx, query, memeID).Scan(&up, &down); err != nil {
		return 0, 0, fmt.Errorf("failed to score meme: %w", err)
	}
	return up, down, nil
}
