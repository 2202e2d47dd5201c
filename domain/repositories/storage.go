package repositories

import (
	"context"

	"github.com/almawell/alma/domain/entities"
)

// SessionRepository is the persistence collaborator the session core hands a
// finalized record to. On failure the record stays intact for a caller-level
// retry; the core itself never retries.
type SessionRepository interface {
	Save(ctx context.Context, record *entities.SessionRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error)
}

// ProfileRepository supplies the optional personalization for greetings and
// prompts. A missing profile changes text content only.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*entities.Profile, error)
}

// UserRepository defines data access methods for user accounts
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	ValidateCredentials(ctx context.Context, email, password string) (*entities.User, error)
}
