package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength      = 6
	codeChars       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 10

	// EventGameUpdated is published after a join or phase change
	EventGameUpdated = "game_updated"
)

var phaseActions = map[models.GameStatus]string{
	models.StatusCollecting: "Images can only be uploaded during the collecting phase",
	models.StatusCreating:   "Memes can only be created during the creating phase",
	models.StatusVoting:     "Votes can only be cast during the voting phase",
}

// GameOptions tune the session lifecycle
type GameOptions struct {
	PhaseDuration         time.Duration
	EnforceCreatorAdvance bool
	Notifier              Notifier
}

// GameService owns the game state machine
type GameService struct {
	games          GameRepository
	notifier       Notifier
	phaseDuration  time.Duration
	enforceCreator bool
	now            func() time.Time
}

// NewGameService creates a new game service
func NewGameService(games GameRepository, opts GameOptions) *GameService {
	if opts.PhaseDuration <= 0 {
		opts.PhaseDuration = 10 * time.Minute
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	return &GameService{
		games:          games,
		notifier:       opts.Notifier,
		phaseDuration:  opts.PhaseDuration,
		enforceCreator: opts.EnforceCreatorAdvance,
		now:            time.Now,
	}
}

// generateCode generates a random 6-character code
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", err
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}

// CreateGame starts a new game in the collecting phase with the creator as
// its only participant
func (s *GameService) CreateGame(ctx context.Context, name, creatorName string) (*models.Game, error) {
	name, err := models.ValidateGameName(name)
	if err != nil {
		return nil, invalidInput(err)
	}
	creatorName, err = models.ValidatePlayerName("creatorName", creatorName)
	if err != nil {
		return nil, invalidInput(err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, storageFailure("generate game code", err)
		}
		exists, err := s.games.CodeExists(ctx, code)
		if err != nil {
			return nil, storageFailure("check code existence", err)
		}
		if exists {
			continue
		}

		now := s.now().UTC()
		game := &models.Game{
			ID:           uuid.New().String(),
			Code:         code,
			Name:         name,
			Creator:      creatorName,
			Participants: []string{creatorName},
			Status:       models.StatusCollecting,
			PhaseEndTime: now.Add(s.phaseDuration),
			CreatedAt:    now,
		}
		if err := s.games.Create(ctx, game); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				log.Warn().Str("code", code).Msg("Game code taken concurrently, retrying")
				continue
			}
			return nil, storageFailure("create game", err)
		}

		log.Info().
			Str("game_id", game.ID).
			Str("code", game.Code).
			Str("creator", creatorName).
			Msg("Game created")
		return game, nil
	}
	return nil, storageFailure("generate game code", fmt.Errorf("no unique code after %d attempts", maxCodeAttempts))
}

// JoinGame adds playerName to the game with the given code. Joining twice
// is a no-op.
func (s *GameService) JoinGame(ctx context.Context, code, playerName string) (*models.Game, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, validation("code", "code is required")
	}
	playerName, err := models.ValidatePlayerName("playerName", playerName)
	if err != nil {
		return nil, invalidInput(err)
	}

	game, err := s.games.GetByCode(ctx, code)
	if err != nil {
		return nil, lookupFailure("game", err)
	}
	if game.Status != models.StatusCollecting {
		return nil, invalidState("This game can no longer be joined")
	}

	updated, added, err := s.games.AddParticipant(ctx, game.ID, playerName)
	if err != nil {
		return nil, lookupFailure("game", err)
	}
	if !added && !updated.HasParticipant(playerName) {
		// the phase moved on between the read and the append
		return nil, invalidState("This game can no longer be joined")
	}
	if added {
		log.Info().Str("game_id", game.ID).Str("player", playerName).Msg("Player joined game")
		s.notifier.Publish(updated.ID, EventGameUpdated, updated)
	}
	return updated, nil
}

// GetGame returns a game by ID
func (s *GameService) GetGame(ctx context.Context, id string) (*models.Game, error) {
	game, err := s.games.GetByID(ctx, id)
	if err != nil {
		return nil, lookupFailure("game", err)
	}
	return game, nil
}

// ListGames returns every game, newest first
func (s *GameService) ListGames(ctx context.Context) ([]*models.Game, error) {
	games, err := s.games.List(ctx)
	if err != nil {
		return nil, storageFailure("list games", err)
	}
	return games, nil
}

// AdvancePhase moves the game to the next phase and resets its deadline.
// actor is the caller's display name; it only matters when creator-only
// advancing is enforced.
func (s *GameService) AdvancePhase(ctx context.Context, id, actor string) (*models.Game, error) {
	game, err := s.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.enforceCreator && strings.TrimSpace(actor) != game.Creator {
		return nil, forbidden("Only the game creator can change the phase")
	}
	return s.advance(ctx, game)
}

func (s *GameService) advance(ctx context.Context, game *models.Game) (*models.Game, error) {
	next, ok := game.Status.Next()
	if !ok {
		return nil, invalidState("Game is already completed")
	}

	updated, err := s.games.AdvanceStatus(ctx, game.ID, game.Status, next, s.now().UTC().Add(s.phaseDuration))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalidState("Game phase changed concurrently, reload and try again")
		}
		return nil, storageFailure("advance phase", err)
	}

	log.Info().
		Str("game_id", game.ID).
		Str("from", string(game.Status)).
		Str("to", string(next)).
		Msg("Game phase advanced")
	s.notifier.Publish(updated.ID, EventGameUpdated, updated)
	return updated, nil
}

// AssertPhase fails with InvalidState unless the game is in required
func AssertPhase(game *models.Game, required models.GameStatus) error {
	if game.Status == required {
		return nil
	}
	if msg, ok := phaseActions[required]; ok {
		return invalidState("%s", msg)
	}
	return invalidState("Game must be %s but is %s", required, game.Status)
}

// requirePhase loads a game and guards the phase in one step
func (s *GameService) requirePhase(ctx context.Context, id string, required models.GameStatus) (*models.Game, error) {
	game, err := s.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertPhase(game, required); err != nil {
		return nil, err
	}
	return game, nil
}

// SetStatus is the admin override; it may move a game to any phase
func (s *GameService) SetStatus(ctx context.Context, id string, status models.GameStatus) (*models.Game, error) {
	if !status.Valid() {
		return nil, validation("status", "Invalid status")
	}
	updated, err := s.games.SetStatus(ctx, id, status, s.now().UTC().Add(s.phaseDuration))
	if err != nil {
		return nil, lookupFailure("game", err)
	}
	log.Info().Str("game_id", id).Str("status", string(status)).Msg("Game status overridden")
	s.notifier.Publish(updated.ID, EventGameUpdated, updated)
	return updated, nil
}

// ListGamesWithStats returns every game with its row counts
func (s *GameService) ListGamesWithStats(ctx context.Context) ([]*models.GameWithStats, error) {
	games, err := s.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*models.GameWithStats, 0, len(games))
	for _, g := range games {
		stats, err := s.games.Stats(ctx, g.ID)
		if err != nil {
			return nil, storageFailure("count game content", err)
		}
		result = append(result, &models.GameWithStats{Game: g, Stats: stats})
	}
	return result, nil
}

// AdvanceExpired advances every unfinished game whose deadline passed and
// returns how many moved. A game that fails is logged and skipped.
func (s *GameService) AdvanceExpired(ctx context.Context) (int, error) {
	games, err := s.games.ListPhaseExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storageFailure("list expired phases", err)
	}
	advanced := 0
	for _, g := range games {
		if _, err := s.advance(ctx, g); err != nil {
			if !errors.Is(err, ErrInvalidState) {
				log.Error().Err(err).Str("game_id", g.ID).Msg("Failed to auto-advance game")
			}
			continue
		}
		advanced++
	}
	return advanced, nil
}
