package tokengate

import (
	"context"
	"time"
)

// UserRecord is the account representation consumed by the engine. The
// profile store owns the row; the engine only reads identity, credential
// hash, and the active flag.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	DisplayName  string
	Active       bool
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	DisplayName  string
}

// UserProvider is the interface callers implement to integrate tokengate
// with their user database. It covers credential lookup, account creation,
// password-hash updates, and the soft-delete flag.
//
// Implementations must return [ErrUserNotFound] for lookup misses and
// [ErrEmailTaken] when CreateUser hits the email uniqueness constraint.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
}

// TokenPair is returned by Login, Register, and Refresh. RefreshToken is the
// only place the raw refresh secret ever appears in cleartext.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// RegisterInput is the input for [Engine.Register].
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult is returned by [Engine.Register]. Registration auto-issues
// a token pair, so a new account is immediately logged in.
type RegisterResult struct {
	User   UserRecord
	Tokens TokenPair
}
