package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies the first-party session tokens the API
// hands out on login. HMAC-SHA256 with a deployment-scoped secret.
type TokenIssuer struct {
	secret []byte
	issuer string
}

func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if issuer == "" {
		issuer = "orderline"
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

type sessionClaims struct {
	Email       string `json:"email"`
	AccessLevel string `json:"accessLevel"`
	StoreID     *int64 `json:"storeId,omitempty"`
	jwt.RegisteredClaims
}

// Issue mints a session token for the given credentials.
func (t *TokenIssuer) Issue(creds Credentials, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().UTC()

	claims := sessionClaims{
		Email:       creds.Email,
		AccessLevel: creds.AccessLevel,
		StoreID:     creds.StoreID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", creds.UserID),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a session token. Satisfies VerifyFunc.
func (t *TokenIssuer) Verify(_ context.Context, tokenString string) (*Credentials, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	accessLevel := claims.AccessLevel
	if accessLevel == "" {
		accessLevel = AccessStore
	}

	return &Credentials{
		UserID:      userID,
		Email:       claims.Email,
		AccessLevel: accessLevel,
		StoreID:     claims.StoreID,
	}, nil
}
