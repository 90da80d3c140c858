package identity_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/storefront-go/internal/domain"
	"github.com/nazeru/storefront-go/internal/identity"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

type memUsers struct {
	byEmail map[string]*identity.User
	byID    map[uuid.UUID]*identity.User
}

func newMemUsers() *memUsers {
	return &memUsers{
		byEmail: make(map[string]*identity.User),
		byID:    make(map[uuid.UUID]*identity.User),
	}
}

func (r *memUsers) Create(ctx context.Context, u *identity.User) error {
	email := strings.ToLower(u.Email)
	if _, exists := r.byEmail[email]; exists {
		return identity.ErrDuplicateEmail
	}
	cp := *u
	r.byEmail[email] = &cp
	r.byID[u.ID] = &cp
	return nil
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	u, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, identity.ErrNoUser
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrNoUser
	}
	cp := *u
	return &cp, nil
}

func newService(repo identity.Repository) (*identity.Service, *identity.TokenManager) {
	tokens := identity.NewTokenManager("test-secret", time.Hour)
	return identity.NewService(repo, tokens, testLog()), tokens
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a customer with a usable token", func(t *testing.T) {
		svc, tokens := newService(newMemUsers())

		user, token, err := svc.Register(ctx, "Ramen.Fan@Example.com", "secret1", "Ramen Fan")
		require.NoError(t, err)
		assert.Equal(t, "ramen.fan@example.com", user.Email)
		assert.Equal(t, identity.RoleCustomer, user.Role)
		assert.NotEqual(t, "secret1", user.PasswordHash)

		capability, err := tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, capability.UserID)
		assert.Equal(t, identity.RoleCustomer, capability.Role)
		assert.False(t, capability.Admin())
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _ := newService(newMemUsers())
		_, _, err := svc.Register(ctx, "fan@example.com", "secret1", "Ramen Fan")
		require.NoError(t, err)

		_, _, err = svc.Register(ctx, "FAN@example.com", "secret2", "Other Fan")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("validation", func(t *testing.T) {
		svc, _ := newService(newMemUsers())
		cases := []struct {
			name            string
			email, pw, full string
		}{
			{"bad email", "not-an-email", "secret1", "Ramen Fan"},
			{"short password", "fan@example.com", "12345", "Ramen Fan"},
			{"short name", "fan@example.com", "secret1", "X"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, _, err := svc.Register(ctx, tc.email, tc.pw, tc.full)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			})
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(newMemUsers())
	_, _, err := svc.Register(ctx, "fan@example.com", "secret1", "Ramen Fan")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		user, token, err := svc.Login(ctx, "fan@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "fan@example.com", user.Email)
		assert.NotEmpty(t, token)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "secret1")
		_, _, errWrongPw := svc.Login(ctx, "fan@example.com", "wrong-pw")
		require.Error(t, errUnknown)
		require.Error(t, errWrongPw)
		assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(errUnknown))
	})
}

func TestTokenManager(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin}

	t.Run("round trip", func(t *testing.T) {
		tokens := identity.NewTokenManager("test-secret", time.Hour)
		token, err := tokens.Issue(user)
		require.NoError(t, err)

		capability, err := tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, capability.UserID)
		assert.True(t, capability.Admin())
	})

	t.Run("wrong secret", func(t *testing.T) {
		tokens := identity.NewTokenManager("test-secret", time.Hour)
		token, err := tokens.Issue(user)
		require.NoError(t, err)

		other := identity.NewTokenManager("other-secret", time.Hour)
		_, err = other.Verify(token)
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})

	t.Run("expired token", func(t *testing.T) {
		tokens := identity.NewTokenManager("test-secret", -time.Minute)
		token, err := tokens.Issue(user)
		require.NoError(t, err)

		_, err = tokens.Verify(token)
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		tokens := identity.NewTokenManager("test-secret", time.Hour)
		_, err := tokens.Verify("not.a.token")
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})
}
