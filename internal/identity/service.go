package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nazeru/storefront-go/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type Service struct {
	repo   Repository
	tokens *TokenManager
	log    *logrus.Entry
}

func NewService(repo Repository, tokens *TokenManager, log *logrus.Entry) *Service {
	return &Service{repo: repo, tokens: tokens, log: log}
}

// Register creates a customer account and returns it with a fresh
// bearer token. Role elevation is out of band; nothing here mints
// admins.
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, "", domain.Invalidf("a valid email is required")
	case len(password) < 6:
		return nil, "", domain.Invalidf("password must be at least 6 characters")
	case len(strings.TrimSpace(name)) < 2:
		return nil, "", domain.Invalidf("name must be at least 2 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         RoleCustomer,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", domain.Invalidf("user already exists with this email")
		}
		return nil, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, token, nil
}

// Login deliberately reports the same opaque error for an unknown email
// and a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			return nil, "", domain.Unauthorized("invalid credentials")
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", domain.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	return user, token, nil
}

// Verify resolves a capability back to its profile.
func (s *Service) Verify(ctx context.Context, caller Capability) (*User, error) {
	user, err := s.repo.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			return nil, domain.NotFoundf("user not found")
		}
		return nil, err
	}
	return user, nil
}
