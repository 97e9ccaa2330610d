package services

import (
	"context"
	"time"

	"memevault-backend/internal/models"
)

// recentWindow is how far back the dashboard's recent activity reaches
const recentWindow = 7 * 24 * time.Hour

// DashboardOverview holds lifetime totals
type DashboardOverview struct {
	TotalGames     int `json:"totalGames"`
	ActiveGames    int `json:"activeGames"`
	CompletedGames int `json:"completedGames"`
	TotalUsers     int `json:"totalUsers"`
	ActiveUsers    int `json:"activeUsers"`
	TotalImages    int `json:"totalImages"`
	TotalMemes     int `json:"totalMemes"`
	TotalVotes     int `json:"totalVotes"`
}

// RecentActivity counts what happened inside the recent window
type RecentActivity struct {
	Since  time.Time `json:"since"`
	Games  int       `json:"games"`
	Memes  int       `json:"memes"`
	Votes  int       `json:"votes"`
	Logins int       `json:"logins"`
}

// Dashboard is the admin landing summary
type Dashboard struct {
	Overview       DashboardOverview         `json:"overview"`
	GamesByStatus  map[models.GameStatus]int `json:"gamesByStatus"`
	RecentActivity RecentActivity            `json:"recentActivity"`
}

// DashboardService aggregates counts across every table
type DashboardService struct {
	games  GameRepository
	images ImageRepository
	memes  MemeRepository
	votes  VoteRepository
	users  UserRepository
	audit  AuditRepository
	now    func() time.Time
}

// DashboardRepos groups the repositories the dashboard reads
type DashboardRepos struct {
	Games  GameRepository
	Images ImageRepository
	Memes  MemeRepository
	Votes  VoteRepository
	Users  UserRepository
	Audit  AuditRepository
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repos DashboardRepos) *DashboardService {
	return &DashboardService{
		games:  repos.Games,
		images: repos.Images,
		memes:  repos.Memes,
		votes:  repos.Votes,
		users:  repos.Users,
		audit:  repos.Audit,
		now:    time.Now,
	}
}

// Summary collects lifetime totals and the last seven days of activity
func (s *DashboardService) Summary(ctx context.Context) (*Dashboard, error) {
	byStatus, err := s.games.CountByStatus(ctx)
	if err != nil {
		return nil, storageFailure("count games", err)
	}
	d := &Dashboard{GamesByStatus: byStatus}
	for status, n := range byStatus {
		d.Overview.TotalGames += n
		if status == models.StatusCompleted {
			d.Overview.CompletedGames += n
		} else {
			d.Overview.ActiveGames += n
		}
	}

	if d.Overview.TotalUsers, d.Overview.ActiveUsers, err = s.users.CountActive(ctx); err != nil {
		return nil, storageFailure("count users", err)
	}
	if d.Overview.TotalImages, err = s.images.Count(ctx); err != nil {
		return nil, storageFailure("count images", err)
	}
	if d.Overview.TotalMemes, err = s.memes.CountSince(ctx, time.Time{}); err != nil {
		return nil, storageFailure("count memes", err)
	}
	if d.Overview.TotalVotes, err = s.votes.CountSince(ctx, time.Time{}); err != nil {
		return nil, storageFailure("count votes", err)
	}

	now := s.now().UTC()
	since := now.Add(-recentWindow)
	d.RecentActivity.Since = since
	if d.RecentActivity.Games, err = s.games.CountSince(ctx, since); err != nil {
		return nil, storageFailure("count games", err)
	}
	if d.RecentActivity.Memes, err = s.memes.CountSince(ctx, since); err != nil {
		return nil, storageFailure("count memes", err)
	}
	if d.RecentActivity.Votes, err = s.votes.CountSince(ctx, since); err != nil {
		return nil, storageFailure("count votes", err)
	}
	actions, err := s.audit.CountByAction(ctx, since, now)
	if err != nil {
		return nil, storageFailure("count audit logs", err)
	}
	d.RecentActivity.Logins = actions[ActionLoginSuccess]
	return d, nil
}
