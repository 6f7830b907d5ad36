package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	platformauth "github.com/orderline-app/orderline/platform/go/auth"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// inMemoryAccounts is a minimal in-memory impl of Accounts for tests.
type inMemoryAccounts struct {
	users  map[string]persistence.PlatformUser
	nextID int64
}

func newInMemoryAccounts() *inMemoryAccounts {
	return &inMemoryAccounts{users: make(map[string]persistence.PlatformUser), nextID: 1}
}

func (a *inMemoryAccounts) GetPlatformUserByEmail(ctx context.Context, email string) (persistence.PlatformUser, error) {
	user, ok := a.users[email]
	if !ok {
		return persistence.PlatformUser{}, persistence.ErrNotFound
	}
	return user, nil
}

func (a *inMemoryAccounts) CreatePlatformUser(ctx context.Context, user persistence.PlatformUser) (persistence.PlatformUser, error) {
	if _, ok := a.users[user.Email]; ok {
		return persistence.PlatformUser{}, &pgconn.PgError{Code: "23505"}
	}
	user.ID = a.nextID
	user.IsActive = true
	a.nextID++
	a.users[user.Email] = user
	return user, nil
}

func newTestService(t *testing.T) (Service, *inMemoryAccounts) {
	t.Helper()
	issuer, err := platformauth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "orderline")
	require.NoError(t, err)
	accounts := newInMemoryAccounts()
	return New(accounts, issuer, time.Hour), accounts
}

func TestRegisterAndLogin(t *testing.T) {
	svc, accounts := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       "Admin@Orderline.Test",
		Password:    "correct-horse-battery",
		AccessLevel: platformauth.AccessGlobal,
	})
	require.NoError(t, err)
	require.Equal(t, "admin@orderline.test", user.Email)
	require.Equal(t, platformauth.AccessGlobal, user.AccessLevel)
	// The hash never leaves the service.
	require.Empty(t, user.PasswordHash)
	// But it is stored, and not in the clear.
	require.NotEmpty(t, accounts.users["admin@orderline.test"].PasswordHash)
	require.NotEqual(t, "correct-horse-battery", accounts.users["admin@orderline.test"].PasswordHash)

	session, err := svc.Login(context.Background(), "admin@orderline.test", "correct-horse-battery")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, platformauth.AccessGlobal, session.AccessLevel)
	require.Nil(t, session.StoreID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "owner@test.dev",
		Password:    "supersafe-pass",
		AccessLevel: platformauth.AccessGlobal,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "owner@test.dev", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUserMatchesBadPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@test.dev", "whatever-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	storeID := int64(4)

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"missing email", RegisterInput{Password: "longenough"}},
		{"not an email", RegisterInput{Email: "nope", Password: "longenough"}},
		{"short password", RegisterInput{Email: "a@b.test", Password: "short"}},
		{"store level without store", RegisterInput{Email: "a@b.test", Password: "longenough", AccessLevel: platformauth.AccessStore}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.input)
			require.Error(t, err)
		})
	}

	// Unknown access levels collapse to store level, which then needs a store.
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       "clerk@b.test",
		Password:    "longenough",
		AccessLevel: "superuser",
		StoreID:     &storeID,
	})
	require.NoError(t, err)
	require.Equal(t, platformauth.AccessStore, user.AccessLevel)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	input := RegisterInput{Email: "dup@test.dev", Password: "longenough", AccessLevel: platformauth.AccessGlobal}
	_, err := svc.Register(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestStoreSessionCarriesStoreID(t *testing.T) {
	svc, _ := newTestService(t)
	storeID := int64(12)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "owner@store.test",
		Password:    "longenough",
		AccessLevel: platformauth.AccessStore,
		StoreID:     &storeID,
	})
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), "owner@store.test", "longenough")
	require.NoError(t, err)
	require.NotNil(t, session.StoreID)
	require.Equal(t, int64(12), *session.StoreID)
}
