package memory

import (
	"context"
	"fmt"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
)

// GameRepository stores games in memory
type GameRepository struct {
	db *DB
}

func (r *GameRepository) find(id string) (int, *models.Game) {
	for i, g := range r.db.games {
		if g.ID == id {
			return i, g
		}
	}
	return -1, nil
}

// Create creates a new game
func (r *GameRepository) Create(_ context.Context, game *models.Game) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Code == game.Code {
			return fmt.Errorf("game code %s: %w", game.Code, repository.ErrConflict)
		}
	}
	r.db.games = append(r.db.games, cloneGame(game))
	return nil
}

// GetByID retrieves a game by ID
func (r *GameRepository) GetByID(_ context.Context, id string) (*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, g := r.find(id)
	if g == nil {
		return nil, fmt.Errorf("game: %w", repository.ErrNotFound)
	}
	return cloneGame(g), nil
}

// GetByCode retrieves a game by join code
func (r *GameRepository) GetByCode(_ context.Context, code string) (*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Code == code {
			return cloneGame(g), nil
		}
	}
	return nil, fmt.Errorf("game: %w", repository.ErrNotFound)
}

// CodeExists checks if a code is used by a live game
func (r *GameRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// AddParticipant appends name when the game is collecting and lacks it
func (r *GameRepository) AddParticipant(_ context.Context, id, name string) (*models.Game, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, g := r.find(id)
	if g == nil {
		return nil, false, fmt.Errorf("game: %w", repository.ErrNotFound)
	}
	if g.Status != models.StatusCollecting || g.HasParticipant(name) {
		return cloneGame(g), false, nil
	}
	g.Participants = append(g.Participants, name)
	return cloneGame(g), true, nil
}

// AdvanceStatus moves a game from one status to another
func (r *GameRepository) AdvanceStatus(_ context.Context, id string, from, to models.GameStatus, phaseEnd time.Time) (*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, g := r.find(id)
	if g == nil || g.Status != from {
		return nil, fmt.Errorf("game %s not in %s: %w", id, from, repository.ErrConflict)
	}
	g.Status = to
	g.PhaseEndTime = phaseEnd
	return cloneGame(g), nil
}

// SetStatus overwrites the status unconditionally
func (r *GameRepository) SetStatus(_ context.Context, id string, status models.GameStatus, phaseEnd time.Time) (*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, g := r.find(id)
	if g == nil {
		return nil, fmt.Errorf("game: %w", repository.ErrNotFound)
	}
	g.Status = status
	g.PhaseEndTime = phaseEnd
	return cloneGame(g), nil
}

// List returns all games, newest first
func (r *GameRepository) List(_ context.Context) ([]*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	games := make([]*models.Game, 0, len(r.db.games))
	for _, g := range r.db.games {
		games = append(games, cloneGame(g))
	}
	newestFirst(games, func(g *models.Game) int64 { return g.CreatedAt.UnixNano() })
	return games, nil
}

// CountByStatus groups games by status
func (r *GameRepository) CountByStatus(_ context.Context) (map[models.GameStatus]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[models.GameStatus]int)
	for _, g := range r.db.games {
		counts[g.Status]++
	}
	return counts, nil
}

// CountSince counts games created at or after since
func (r *GameRepository) CountSince(_ context.Context, since time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, g := range r.db.games {
		if !g.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ListCompletedBefore returns completed games created before cutoff
func (r *GameRepository) ListCompletedBefore(_ context.Context, cutoff time.Time) ([]*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var games []*models.Game
	for _, g := range r.db.games {
		if g.Status == models.StatusCompleted && g.CreatedAt.Before(cutoff) {
			games = append(games, cloneGame(g))
		}
	}
	return games, nil
}

// ListPhaseExpired returns unfinished games whose deadline is before now
func (r *GameRepository) ListPhaseExpired(_ context.Context, now time.Time) ([]*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var games []*models.Game
	for _, g := range r.db.games {
		if g.Status != models.StatusCompleted && g.PhaseEndTime.Before(now) {
			games = append(games, cloneGame(g))
		}
	}
	return games, nil
}

// Stats counts a game's images, memes, and votes
func (r *GameRepository) Stats(_ context.Context, id string) (models.GameStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var stats models.GameStats
	for _, i := range r.db.images {
		if i.GameID != nil && *i.GameID == id {
			stats.ImageCount++
		}
	}
	for _, m := range r.db.memes {
		if m.GameID != nil && *m.GameID == id {
			stats.MemeCount++
		}
	}
	for _, v := range r.db.votes {
		if v.GameID != nil && *v.GameID == id {
			stats.VoteCount++
		}
	}
	return stats, nil
}

// DeleteCascade removes a game with its images, memes, and votes
func (r *GameRepository) DeleteCascade(_ context.Context, id string) (repository.CascadeResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	idx, g := r.find(id)
	if g == nil {
		return repository.CascadeResult{}, fmt.Errorf("game %s: %w", id, repository.ErrNotFound)
	}
	var result repository.CascadeResult
	owned := func(gameID *string) bool { return gameID != nil && *gameID == id }

	votes := r.db.votes[:0]
	for _, v := range r.db.votes {
		if owned(v.GameID) {
			result.Votes++
			continue
		}
		votes = append(votes, v)
	}
	r.db.votes = votes

	memes := r.db.memes[:0]
	for _, m := range r.db.memes {
		if owned(m.GameID) {
			result.Memes++
			continue
		}
		memes = append(memes, m)
	}
	r.db.memes = memes

	images := r.db.images[:0]
	for _, i := range r.db.images {
		if owned(i.GameID) {
			result.Images++
			continue
		}
		images = append(images, i)
	}
	r.db.images = images

	r.db.games = append(r.db.games[:idx], r.db.games[idx+1:]...)
	return result, nil
}
