package tokengate

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutRevokesToken(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	if err := engine.Logout(context.Background(), result.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after logout, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		if err := engine.Logout(context.Background(), result.Tokens.RefreshToken); err != nil {
			t.Fatalf("Logout #%d failed: %v", i+1, err)
		}
	}

	// Unknown and malformed tokens are also a silent success.
	if err := engine.Logout(context.Background(), "garbage-token"); err != nil {
		t.Fatalf("Logout of malformed token failed: %v", err)
	}
}

func TestLogoutDoesNotTouchSiblingDevices(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	deviceA, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login A failed: %v", err)
	}
	deviceB, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login B failed: %v", err)
	}

	if err := engine.Logout(context.Background(), deviceA.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	mustRefresh(t, engine, deviceB.RefreshToken)
}

func TestLogoutAllRevokesEveryFamily(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	deviceA, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login A failed: %v", err)
	}
	deviceB, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login B failed: %v", err)
	}

	revoked, err := engine.LogoutAll(context.Background(), result.User.UserID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	// Registration token plus two logins.
	if revoked != 3 {
		t.Fatalf("expected 3 revoked tokens, got %d", revoked)
	}

	for _, tok := range []string{result.Tokens.RefreshToken, deviceA.RefreshToken, deviceB.RefreshToken} {
		if _, err := engine.Refresh(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid after logout-all, got %v", err)
		}
	}

	// Second call revokes nothing but still succeeds.
	revoked, err = engine.LogoutAll(context.Background(), result.User.UserID)
	if err != nil {
		t.Fatalf("second LogoutAll failed: %v", err)
	}
	if revoked != 0 {
		t.Fatalf("expected 0 revoked on repeat, got %d", revoked)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	err := engine.ChangePassword(context.Background(), result.User.UserID, "correct-horse", "new-passphrase")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The caller's own session dies too.
	if _, err := engine.Refresh(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after password change, got %v", err)
	}

	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "new-passphrase"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	err := engine.ChangePassword(context.Background(), result.User.UserID, "wrong-current", "new-passphrase")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Nothing was revoked on the failed attempt.
	mustRefresh(t, engine, result.Tokens.RefreshToken)
}

func TestChangePasswordInactiveAccount(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")
	if err := up.SetActive(context.Background(), result.User.UserID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	err := engine.ChangePassword(context.Background(), result.User.UserID, "correct-horse", "new-passphrase")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestDeactivateAccount(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")

	if err := engine.DeactivateAccount(context.Background(), result.User.UserID); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after deactivation, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after deactivation, got %v", err)
	}

	// Deactivating twice is fine.
	if err := engine.DeactivateAccount(context.Background(), result.User.UserID); err != nil {
		t.Fatalf("repeat DeactivateAccount failed: %v", err)
	}
}

func TestDeactivateUnknownUser(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	if err := engine.DeactivateAccount(context.Background(), "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
