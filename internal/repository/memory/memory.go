// Package memory is an in-process implementation of the repositories, used
// when no database is configured and in tests.
package memory

import (
	"sort"
	"sync"

	"memevault-backend/internal/models"
)

// DB holds every table behind one mutex so cascades stay atomic.
type DB struct {
	mu     sync.Mutex
	games  []*models.Game
	images []*models.Image
	memes  []*models.Meme
	votes  []*models.Vote
	users  []*models.User
	audit  []*models.AuditLog
}

// New returns an empty store
func New() *DB {
	return &DB{}
}

// Games returns the game repository view
func (db *DB) Games() *GameRepository { return &GameRepository{db: db} }

// Images returns the image repository view
func (db *DB) Images() *ImageRepository { return &ImageRepository{db: db} }

// Memes returns the meme repository view
func (db *DB) Memes() *MemeRepository { return &MemeRepository{db: db} }

// Votes returns the vote repository view
func (db *DB) Votes() *VoteRepository { return &VoteRepository{db: db} }

// Users returns the user repository view
func (db *DB) Users() *UserRepository { return &UserRepository{db: db} }

// Audit returns the audit repository view
func (db *DB) Audit() *AuditRepository { return &AuditRepository{db: db} }

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Participants = append([]string(nil), g.Participants...)
	return &c
}

func cloneImage(i *models.Image) *models.Image {
	c := *i
	return &c
}

func cloneMeme(m *models.Meme) *models.Meme {
	c := *m
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func sameGame(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func newestFirst[T any](items []T, createdAt func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]) > createdAt(items[j])
	})
}
