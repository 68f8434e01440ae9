package tokengate

import "errors"

var (
	// ErrInvalidCredentials is returned by Login and ChangePassword when the
	// presented password does not match, the account does not exist, or the
	// account is deactivated. The causes are deliberately merged so callers
	// cannot probe for account existence or state.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by Register when the email is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned by UserProvider implementations for lookup
	// misses. It never escapes the Engine API.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountInactive is returned by operations that require an active
	// account outside the credential path (e.g. DeactivateAccount on an
	// already-deleted user is fine, but ChangePassword is not).
	ErrAccountInactive = errors.New("account inactive")
	// ErrTokenInvalid covers every refresh-token rejection: unknown, expired,
	// revoked, and theft-triggered. Audit events carry the internal reason.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned by VerifyAccess for well-formed,
	// correctly-signed access tokens past their expiry.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenSignature is returned by VerifyAccess when the signature does
	// not verify against the configured key material.
	ErrTokenSignature = errors.New("access token signature invalid")
	// ErrTokenMalformed is returned by VerifyAccess for tokens that cannot be
	// parsed at all.
	ErrTokenMalformed = errors.New("access token malformed")
	// ErrStoreUnavailable wraps refresh-token store I/O failures. It is kept
	// distinct from the authorization errors above so callers never confuse
	// "storage down" with "credentials rejected".
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
