package models

import "time"

// GameStatus is the phase a game is in
type GameStatus string

const (
	StatusCollecting GameStatus = "collecting"
	StatusCreating   GameStatus = "creating"
	StatusVoting     GameStatus = "voting"
	StatusCompleted  GameStatus = "completed"
)

var phaseOrder = []GameStatus{StatusCollecting, StatusCreating, StatusVoting, StatusCompleted}

// Valid reports whether s is one of the four phases.
func (s GameStatus) Valid() bool {
	for _, p := range phaseOrder {
		if p == s {
			return true
		}
	}
	return false
}

// Next returns the phase after s. ok is false for completed and unknown values.
func (s GameStatus) Next() (GameStatus, bool) {
	for i, p := range phaseOrder {
		if p == s && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Game represents a party game session
type Game struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Creator      string     `json:"creator"`
	Participants []string   `json:"participants"`
	Status       GameStatus `json:"status"`
	PhaseEndTime time.Time  `json:"phaseEndTime"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// HasParticipant reports whether name already joined.
func (g *Game) HasParticipant(name string) bool {
	for _, p := range g.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// GameStats counts a game's dependent rows
type GameStats struct {
	ImageCount int `json:"imageCount"`
	MemeCount  int `json:"memeCount"`
	VoteCount  int `json:"voteCount"`
}

// GameWithStats is a game plus its row counts
type GameWithStats struct {
	*Game
	Stats GameStats `json:"stats"`
}

// Image represents an uploaded picture. GameID is nil in standalone mode.
type Image struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImagePath string    `json:"imagePath"`
	IPAddress string    `json:"-"`
	GameID    *string   `json:"gameId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meme is a captioned derivative of one image
type Meme struct {
	ID         string    `json:"id"`
	ImageID    string    `json:"imageId"`
	TopText    string    `json:"topText"`
	BottomText string    `json:"bottomText"`
	FontType   string    `json:"fontType"`
	Creator    string    `json:"creator"`
	IPAddress  string    `json:"-"`
	GameID     *string   `json:"gameId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MemeWithImage is a meme with its source image joined
type MemeWithImage struct {
	*Meme
	Image *Image `json:"image,omitempty"`
}

// Vote is one endorsement of a meme. Game votes carry Voter, standalone
// votes carry VoteType.
type Vote struct {
	ID        string    `json:"id"`
	MemeID    string    `json:"memeId"`
	GameID    *string   `json:"gameId,omitempty"`
	Voter     string    `json:"voter,omitempty"`
	VoteType  *bool     `json:"voteType,omitempty"`
	IPAddress string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemeResult is one ranked entry of a game's results
type MemeResult struct {
	Meme  *MemeWithImage `json:"meme"`
	Votes int            `json:"votes"`
}

// MemeScore is the up/down tally of a standalone meme
type MemeScore struct {
	MemeID    string `json:"memeId"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	Total     int    `json:"total"`
}

// Role is an admin surface role
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account of the admin surface
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// AuditLog is one durable security or administrative event
type AuditLog struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"userId,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent"`
	Timestamp time.Time      `json:"timestamp"`
}
