package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "orderline")
	require.NoError(t, err)

	storeID := int64(12)
	token, err := issuer.Issue(Credentials{
		UserID:      7,
		Email:       "owner@acme-market.test",
		AccessLevel: AccessStore,
		StoreID:     &storeID,
	}, time.Hour)
	require.NoError(t, err)

	creds, err := issuer.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, int64(7), creds.UserID)
	require.Equal(t, "owner@acme-market.test", creds.Email)
	require.Equal(t, AccessStore, creds.AccessLevel)
	require.NotNil(t, creds.StoreID)
	require.Equal(t, int64(12), *creds.StoreID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "orderline")
	require.NoError(t, err)
	other, err := NewTokenIssuer("fedcba9876543210fedcba9876543210", "orderline")
	require.NoError(t, err)

	token, err := issuer.Issue(Credentials{UserID: 1, Email: "a@b.test", AccessLevel: AccessGlobal}, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "orderline")
	require.NoError(t, err)

	// A non-positive ttl falls back to the 24h default, so mint one with a
	// tiny ttl and wait it out.
	token, err := issuer.Issue(Credentials{UserID: 1, Email: "a@b.test", AccessLevel: AccessGlobal}, time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = issuer.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	mine, err := NewTokenIssuer(testSecret, "orderline")
	require.NoError(t, err)
	theirs, err := NewTokenIssuer(testSecret, "someone-else")
	require.NoError(t, err)

	token, err := theirs.Issue(Credentials{UserID: 1, Email: "a@b.test", AccessLevel: AccessGlobal}, time.Hour)
	require.NoError(t, err)

	_, err = mine.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestNewTokenIssuerRejectsShortSecret(t *testing.T) {
	_, err := NewTokenIssuer("too-short", "orderline")
	require.Error(t, err)
}

func TestGlobalCredentialsCarryNoStore(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "orderline")
	require.NoError(t, err)

	token, err := issuer.Issue(Credentials{UserID: 3, Email: "admin@orderline.test", AccessLevel: AccessGlobal}, time.Hour)
	require.NoError(t, err)

	creds, err := issuer.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, AccessGlobal, creds.AccessLevel)
	require.Nil(t, creds.StoreID)
}
