package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
)

// UserRepository stores users in memory
type UserRepository struct {
	db *DB
}

func (r *UserRepository) find(id string) (int, *models.User) {
	for i, u := range r.db.users {
		if u.ID == id {
			return i, u
		}
	}
	return -1, nil
}

// Create creates a new user
func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == user.Username {
			return fmt.Errorf("username %s: %w", user.Username, repository.ErrConflict)
		}
	}
	r.db.users = append(r.db.users, cloneUser(user))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, u := r.find(id); u != nil {
		return cloneUser(u), nil
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

// List returns all users ordered by creation
func (r *UserRepository) List(_ context.Context) ([]*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make([]*models.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		users = append(users, cloneUser(u))
	}
	return users, nil
}

func (r *UserRepository) update(id string, fn func(u *models.User)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, u := r.find(id)
	if u == nil {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	fn(u)
	return nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = hash })
}

// SetActive enables or disables a user
func (r *UserRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(u *models.User) { u.Active = active })
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) { u.LastLogin = &at })
}

// Delete deletes a user by ID
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	idx, u := r.find(id)
	if u == nil {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	r.db.users = append(r.db.users[:idx], r.db.users[idx+1:]...)
	return nil
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(_ context.Context, role models.Role) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, u := range r.db.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// CountActive returns the number of users and how many of them are active
func (r *UserRepository) CountActive(_ context.Context) (total, active int, err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Active {
			active++
		}
	}
	return len(r.db.users), active, nil
}

// AuditRepository stores audit entries in memory
type AuditRepository struct {
	db *DB
}

// Insert appends an audit entry
func (r *AuditRepository) Insert(_ context.Context, entry *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *entry
	r.db.audit = append(r.db.audit, &c)
	return nil
}

// List returns entries newest first with the total count
func (r *AuditRepository) List(_ context.Context, limit, offset int) ([]*models.AuditLog, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entries := append([]*models.AuditLog{}, r.db.audit...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

// CountByAction groups entries between start and end by action
func (r *AuditRepository) CountByAction(_ context.Context, start, end time.Time) (map[string]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stats := make(map[string]int)
	for _, e := range r.db.audit {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			stats[e.Action]++
		}
	}
	return stats, nil
}

// DeleteBefore removes entries older than cutoff
func (r *AuditRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.audit[:0]
	var deleted int64
	for _, e := range r.db.audit {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.db.audit = kept
	return deleted, nil
}
