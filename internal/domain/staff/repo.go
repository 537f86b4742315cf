package staff

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	// Create keeps a preset ID, otherwise assigns a new one.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
