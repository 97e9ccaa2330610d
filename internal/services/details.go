package services

import (
	"context"

	"memevault-backend/internal/models"
)

// MemeVotes is a meme with its vote count in a game
type MemeVotes struct {
	*models.MemeWithImage
	VoteCount int `json:"voteCount"`
}

// GameDetails is the moderation view of one game
type GameDetails struct {
	Game       *models.Game    `json:"game"`
	Images     []*models.Image `json:"images"`
	Memes      []*MemeVotes    `json:"memes"`
	TotalVotes int             `json:"totalVotes"`
}

// GameDetails collects a game's images and memes with per-meme vote counts
func (s *VoteService) GameDetails(ctx context.Context, id string) (*GameDetails, error) {
	game, err := s.games.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	imgs, err := s.images.List(ctx, &id)
	if err != nil {
		return nil, storageFailure("list images", err)
	}
	memes, err := s.memes.List(ctx, &id)
	if err != nil {
		return nil, storageFailure("list memes", err)
	}
	counts, err := s.votes.CountByMeme(ctx, id)
	if err != nil {
		return nil, storageFailure("count votes", err)
	}

	details := &GameDetails{Game: game, Images: imgs, Memes: make([]*MemeVotes, 0, len(memes))}
	for _, m := range memes {
		details.Memes = append(details.Memes, &MemeVotes{MemeWithImage: m, VoteCount: counts[m.ID]})
		details.TotalVotes += counts[m.ID]
	}
	return details, nil
}
