package entities

import (
	"errors"
	"time"
)

// User represents an account that owns sessions and tasks
type User struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Profile carries the optional personalization the session core reads: the
// name the assistant calls the user, and the assistant's own name. Absence of
// either changes greeting text only, never control flow.
type Profile struct {
	UserID        string `json:"user_id" bson:"user_id"`
	Nickname      string `json:"nickname" bson:"nickname"`
	AssistantName string `json:"assistant_name" bson:"assistant_name"`
}

func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
