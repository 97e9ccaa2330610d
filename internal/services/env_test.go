package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository/memory"
	"memevault-backend/internal/storage"

	"github.com/stretchr/testify/require"
)

type published struct {
	gameID    string
	eventType string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(gameID, eventType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{gameID: gameID, eventType: eventType})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.eventType)
	}
	return out
}

type testEnv struct {
	db       *memory.DB
	blobs    *storage.LocalStore
	notifier *recordingNotifier
	games    *GameService
	content  *ContentService
	votes    *VoteService
	audit    *AuditService
	sweeper  *Sweeper
	identity *IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memory.New()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	games := NewGameService(db.Games(), GameOptions{PhaseDuration: 10 * time.Minute, Notifier: notifier})
	audit := NewAuditService(db.Audit())
	return &testEnv{
		db:       db,
		blobs:    blobs,
		notifier: notifier,
		games:    games,
		content:  NewContentService(games, db.Images(), db.Memes(), blobs),
		votes:    NewVoteService(games, db.Images(), db.Memes(), db.Votes()),
		audit:    audit,
		sweeper:  NewSweeper(db.Games(), db.Images(), blobs, audit, SweeperOptions{GameRetentionDays: 30}),
		identity: NewIdentityService(db.Users(), audit, "test-secret", time.Hour),
	}
}

func (e *testEnv) upload(t *testing.T, gameID *string, name string) *models.Image {
	t.Helper()
	img, err := e.content.UploadImage(context.Background(), UploadInput{
		GameID:    gameID,
		Filename:  name,
		Size:      4,
		Body:      strings.NewReader("data"),
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return img
}

func (e *testEnv) advanceTo(t *testing.T, game *models.Game, status models.GameStatus) *models.Game {
	t.Helper()
	for game.Status != status {
		var err error
		game, err = e.games.AdvancePhase(context.Background(), game.ID, "")
		require.NoError(t, err)
	}
	return game
}
