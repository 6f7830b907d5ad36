package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	platformauth "github.com/orderline-app/orderline/platform/go/auth"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Domain-level error sentinel values. Wrong email and wrong password are
// indistinguishable to the caller.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// Session is the login response.
type Session struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Email       string    `json:"email"`
	AccessLevel string    `json:"accessLevel"`
	StoreID     *int64    `json:"storeId"`
}

// RegisterInput creates a platform user account.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    *string
	AccessLevel string
	StoreID     *int64
}

// Accounts is the slice of the master store this service needs.
type Accounts interface {
	GetPlatformUserByEmail(ctx context.Context, email string) (persistence.PlatformUser, error)
	CreatePlatformUser(ctx context.Context, user persistence.PlatformUser) (persistence.PlatformUser, error)
}

// Service exposes authentication against the master user table.
type Service interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, input RegisterInput) (persistence.PlatformUser, error)
}

type service struct {
	accounts Accounts
	issuer   *platformauth.TokenIssuer
	ttl      time.Duration
}

func New(accounts Accounts, issuer *platformauth.TokenIssuer, ttl time.Duration) Service {
	if accounts == nil {
		panic("accounts store is required")
	}
	if issuer == nil {
		panic("token issuer is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{accounts: accounts, issuer: issuer, ttl: ttl}
}

func (s *service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.accounts.GetPlatformUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	creds := platformauth.Credentials{
		UserID:      user.ID,
		Email:       user.Email,
		AccessLevel: user.AccessLevel,
		StoreID:     user.StoreID,
	}
	token, err := s.issuer.Issue(creds, s.ttl)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		ExpiresAt:   time.Now().UTC().Add(s.ttl),
		Email:       user.Email,
		AccessLevel: user.AccessLevel,
		StoreID:     user.StoreID,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (persistence.PlatformUser, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return persistence.PlatformUser{}, errors.New("valid email is required")
	}
	if len(input.Password) < 8 {
		return persistence.PlatformUser{}, errors.New("password must be at least 8 characters")
	}

	accessLevel := input.AccessLevel
	if accessLevel != platformauth.AccessGlobal {
		accessLevel = platformauth.AccessStore
	}
	if accessLevel == platformauth.AccessStore && input.StoreID == nil {
		return persistence.PlatformUser{}, errors.New("store-level accounts need a store id")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return persistence.PlatformUser{}, err
	}

	user, err := s.accounts.CreatePlatformUser(ctx, persistence.PlatformUser{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     input.FullName,
		AccessLevel:  accessLevel,
		StoreID:      input.StoreID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.PlatformUser{}, ErrEmailTaken
		}
		return persistence.PlatformUser{}, err
	}
	user.PasswordHash = ""
	return user, nil
}
