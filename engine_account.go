package tokengate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChangePassword verifies the current password, writes the new hash, and
// revokes every refresh token the user holds. The revocation is
// unconditional: whoever changes the password decides that all existing
// sessions end, including their own.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("user lookup: %w", err)
	}
	if !user.Active {
		return ErrAccountInactive
	}

	match, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("password verify: %w", err)
	}
	if !match {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, EventPasswordChange, false, auditDetail{
			userID: userID,
			reason: auditReasonInvalidCredentials,
		})
		return ErrInvalidCredentials
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	revoked, err := e.tokenStore.RevokeAllForUser(ctx, userID, time.Now())
	if err != nil {
		// The hash is already written; surface the store failure so the
		// caller knows old sessions may still be live.
		return storeFailure(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, EventPasswordChange, true, auditDetail{
		userID: userID,
		metadata: func() map[string]string {
			return map[string]string{"revoked_count": fmt.Sprintf("%d", revoked)}
		},
	})

	return nil
}

// DeactivateAccount soft-deletes the account and revokes every refresh
// token. Access tokens already issued stay valid until expiry; the refresh
// path re-checks the active flag, so the account cannot outlive its last
// access token. Idempotent on already-inactive accounts.
func (e *Engine) DeactivateAccount(ctx context.Context, userID string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	if err := e.userProvider.SetActive(ctx, userID, false); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set active: %w", err)
	}

	revoked, err := e.tokenStore.RevokeAllForUser(ctx, userID, time.Now())
	if err != nil {
		return storeFailure(err)
	}

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, EventAccountDeactivated, true, auditDetail{
		userID: userID,
		metadata: func() map[string]string {
			return map[string]string{"revoked_count": fmt.Sprintf("%d", revoked)}
		},
	})

	return nil
}
