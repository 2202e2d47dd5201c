// Package adapters holds the in-memory repository implementations used for
// development and as simple storage backends.
package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/almawell/alma/domain/entities"
)

// MemoryUserRepository is an in-memory implementation of UserRepository
type MemoryUserRepository struct {
	mu        sync.RWMutex
	users     map[string]*entities.User // id -> user
	emails    map[string]*entities.User // email -> user
	passwords map[string]string         // email -> password
}

// NewMemoryUserRepository creates a new in-memory user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:     make(map[string]*entities.User),
		emails:    make(map[string]*entities.User),
		passwords: make(map[string]string),
	}
}

// Create implements UserRepository
func (m *MemoryUserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.emails[user.Email]; exists {
		return errors.New("user with this email already exists")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	userCopy := *user
	m.users[user.ID] = &userCopy
	m.emails[user.Email] = &userCopy
	return nil
}

// GetByEmail implements UserRepository
func (m *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.emails[email]
	if !exists {
		return nil, errors.New("user not found")
	}
	userCopy := *user
	return &userCopy, nil
}

// ValidateCredentials checks an email and password pair
func (m *MemoryUserRepository) ValidateCredentials(ctx context.Context, email, password string) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, exists := m.passwords[email]
	if !exists || stored != password {
		return nil, errors.New("invalid credentials")
	}
	user, exists := m.emails[email]
	if !exists {
		return nil, errors.New("user not found")
	}
	userCopy := *user
	return &userCopy, nil
}

// RegisterPassword sets up credentials for an email
func (m *MemoryUserRepository) RegisterPassword(email, password string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[email] = password
	return nil
}

// MemoryProfileRepository is an in-memory implementation of ProfileRepository
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*entities.Profile // user id -> profile
}

// NewMemoryProfileRepository creates a new in-memory profile repository
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[string]*entities.Profile),
	}
}

// Set stores or replaces a user's profile
func (m *MemoryProfileRepository) Set(profile entities.Profile) error {
	if profile.UserID == "" {
		return errors.New("user ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = &profile
	return nil
}

// GetByUserID implements ProfileRepository
func (m *MemoryProfileRepository) GetByUserID(ctx context.Context, userID string) (*entities.Profile, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[userID]
	if !exists {
		return nil, errors.New("profile not found")
	}
	profileCopy := *profile
	return &profileCopy, nil
}

// MemorySessionRepository is an in-memory implementation of SessionRepository
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string][]*entities.SessionRecord // user id -> records
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string][]*entities.SessionRecord),
	}
}

// Save implements SessionRepository
func (m *MemorySessionRepository) Save(ctx context.Context, record *entities.SessionRecord) error {
	if record == nil {
		return errors.New("session record cannot be nil")
	}
	if !record.Finalized() {
		return errors.New("session record must be finalized before saving")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[record.UserID] = append(m.sessions[record.UserID], record)
	return nil
}

// ListByUser implements SessionRepository, most recent first
func (m *MemorySessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := append([]*entities.SessionRecord(nil), m.sessions[userID]...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
