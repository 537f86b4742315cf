package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, name string, roles []string) (string, time.Time, error)
}

var validate = validator.New()

type Service struct {
	users  UserRepository
	tokens TokenIssuer
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// CreateUser hashes password with bcrypt and stores the user.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.FullName = strings.TrimSpace(u.FullName)
	if err := validate.Var(u.Email, "required,email"); err != nil {
		return apperr.Validation("a valid email is required")
	}
	if u.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	if !auth.ValidRole(u.Role) {
		return apperr.Validation("unknown role %q", u.Role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	u.PasswordHash = hash
	return s.users.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.users.SetActive(ctx, id, active)
}

// Authenticate checks the credentials and signs a token whose subject is
// the user id. Unknown, inactive and mismatched accounts all fail with
// auth.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.Active {
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	token, exp, err := s.tokens.Issue(u.ID.String(), u.FullName, []string{u.Role})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// EnsureUser creates u unless a user with the same id already exists.
// Seeding uses it to keep the development admin stable across runs.
func (s *Service) EnsureUser(ctx context.Context, u *User, password string) (bool, error) {
	if u.ID != uuid.Nil {
		if _, err := s.users.GetByID(ctx, u.ID); err == nil {
			return false, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return false, err
		}
	}
	if err := s.CreateUser(ctx, u, password); err != nil {
		return false, err
	}
	return true, nil
}
