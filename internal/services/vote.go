package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const EventVoteCast = "vote_cast"

// VoteService records votes and ranks results
type VoteService struct {
	games    *GameService
	images   ImageRepository
	memes    MemeRepository
	votes    VoteRepository
	notifier Notifier
	now      func() time.Time
}

// NewVoteService creates a new vote service
func NewVoteService(games *GameService, images ImageRepository, memes MemeRepository, votes VoteRepository) *VoteService {
	return &VoteService{
		games:    games,
		images:   images,
		memes:    memes,
		votes:    votes,
		notifier: games.notifier,
		now:      time.Now,
	}
}

// CastVote records voter's vote for a meme in a voting game. One vote per
// origin address, meme, and game; the storage layer rejects the repeat.
func (s *VoteService) CastVote(ctx context.Context, gameID, memeID, voter, ip string) (*models.Vote, error) {
	if _, err := s.games.requirePhase(ctx, gameID, models.StatusVoting); err != nil {
		return nil, err
	}
	voter, err := models.ValidateVoterName(voter)
	if err != nil {
		return nil, invalidInput(err)
	}
	meme, err := s.memes.GetByID(ctx, memeID)
	if err != nil {
		return nil, lookupFailure("meme", err)
	}
	if meme.GameID == nil || *meme.GameID != gameID {
		return nil, notFound("meme")
	}

	vote := &models.Vote{
		ID:        uuid.New().String(),
		MemeID:    memeID,
		GameID:    &gameID,
		Voter:     voter,
		IPAddress: ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.insert(ctx, vote); err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Str("meme_id", memeID).Str("voter", voter).Msg("Vote cast")
	s.notifier.Publish(gameID, EventVoteCast, map[string]string{"memeId": memeID})
	return vote, nil
}

func (s *VoteService) insert(ctx context.Context, vote *models.Vote) error {
	if err := s.votes.Insert(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return duplicate("You have already voted for this meme")
		}
		return storageFailure("save vote", err)
	}
	return nil
}

// TallyResults ranks a game's memes by vote count, highest first. Memes
// without votes are included with zero. Ties go to the earlier meme, then
// the lower ID.
func (s *VoteService) TallyResults(ctx context.Context, gameID string) ([]*models.MemeResult, error) {
	memes, err := s.memes.List(ctx, &gameID)
	if err != nil {
		return nil, storageFailure("list memes", err)
	}
	counts, err := s.votes.CountByMeme(ctx, gameID)
	if err != nil {
		return nil, storageFailure("count votes", err)
	}

	results := make([]*models.MemeResult, 0, len(memes))
	for _, m := range memes {
		results = append(results, &models.MemeResult{Meme: m, Votes: counts[m.ID]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if !a.Meme.CreatedAt.Equal(b.Meme.CreatedAt) {
			return a.Meme.CreatedAt.Before(b.Meme.CreatedAt)
		}
		return a.Meme.ID < b.Meme.ID
	})
	return results, nil
}

// CastLegacyVote records an up or down vote on a standalone meme
func (s *VoteService) CastLegacyVote(ctx context.Context, memeID string, upvote bool, ip string) (*models.Vote, error) {
	meme, err := s.memes.GetByID(ctx, memeID)
	if err != nil {
		return nil, lookupFailure("meme", err)
	}
	if meme.GameID != nil {
		return nil, notFound("meme")
	}

	vote := &models.Vote{
		ID:        uuid.New().String(),
		MemeID:    memeID,
		VoteType:  &upvote,
		IPAddress: ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.insert(ctx, vote); err != nil {
		return nil, err
	}
	return vote, nil
}

// MemeScore tallies the up and down votes of a standalone meme
func (s *VoteService) MemeScore(ctx context.Context, memeID string) (*models.MemeScore, error) {
	if _, err := s.memes.GetByID(ctx, memeID); err != nil {
		return nil, lookupFailure("meme", err)
	}
	up, down, err := s.votes.Score(ctx, memeID)
	if err != nil {
		return nil, storageFailure("count votes", err)
	}
	return &models.MemeScore{MemeID: memeID, Upvotes: up, Downvotes: down, Total: up + down}, nil
}
