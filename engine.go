package tokengate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glyphlabs/tokengate/internal"
	"github.com/glyphlabs/tokengate/jwt"
	"github.com/glyphlabs/tokengate/password"
	"github.com/glyphlabs/tokengate/token"
)

// Engine is the session token lifecycle manager. Construct it with
// [Builder.Build]; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	tokenStore   *token.Store
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	dummyHash    string
	userProvider UserProvider
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close drains and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks refresh-token store availability.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.tokenStore == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.tokenStore.Ping(ctx)
	if err != nil {
		return d, storeFailure(err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies credentials and starts a new token family. Every rejection
// (unknown email, wrong password, deactivated account) surfaces as
// [ErrInvalidCredentials]; the audit event carries the real reason.
func (e *Engine) Login(ctx context.Context, email, pass string) (TokenPair, error) {
	if e == nil || e.userProvider == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same Argon2 work as a real verification so a miss
			// is not distinguishable by response time.
			_, _ = e.passwordHash.Verify(pass, e.dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, EventLogin, false, auditDetail{reason: auditReasonInvalidCredentials})
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("user lookup: %w", err)
	}

	match, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("password verify: %w", err)
	}
	if !match {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, EventLogin, false, auditDetail{
			userID: user.UserID,
			reason: auditReasonInvalidCredentials,
		})
		return TokenPair{}, ErrInvalidCredentials
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, EventLogin, false, auditDetail{
			userID: user.UserID,
			reason: auditReasonAccountInactive,
		})
		return TokenPair{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, user.UserID, pass, user.PasswordHash)
	}

	familyID := uuid.NewString()
	pair, tokenID, err := e.issueTokenPair(ctx, user.UserID, familyID)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLogin, true, auditDetail{
		userID:   user.UserID,
		familyID: familyID,
		tokenID:  tokenID,
	})

	return pair, nil
}

// Register creates an account and immediately issues its first token pair,
// so a fresh registration behaves like a login. A duplicate email returns
// [ErrEmailTaken].
func (e *Engine) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	if e == nil || e.userProvider == nil {
		return RegisterResult{}, ErrEngineNotReady
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Email:        input.Email,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, EventRegister, false, auditDetail{reason: auditReasonDuplicateEmail})
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}

	familyID := uuid.NewString()
	pair, tokenID, err := e.issueTokenPair(ctx, user.UserID, familyID)
	if err != nil {
		return RegisterResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, EventRegister, true, auditDetail{
		userID:   user.UserID,
		familyID: familyID,
		tokenID:  tokenID,
	})

	return RegisterResult{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// successor in the same family is returned together with a fresh access
// token. Reuse of an already-rotated token revokes the entire family before
// this method returns. All rejections surface as [ErrTokenInvalid].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.tokenStore == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	if _, err := internal.DecodeRefreshToken(refreshToken); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventRefresh, false, auditDetail{reason: auditReasonTokenMalformed})
		return TokenPair{}, ErrTokenInvalid
	}

	providedHash := internal.HashRawToken(refreshToken)

	// Successor material is generated before the store call so the whole
	// revoke-and-replace step runs as one script.
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh secret: %w", err)
	}
	successorToken := internal.EncodeRefreshToken(secret)

	now := time.Now()
	successor := &token.Record{
		ID:        uuid.NewString(),
		Hash:      internal.HashRawToken(successorToken),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
	}

	result, err := e.tokenStore.Rotate(ctx, providedHash, successor, now)
	if err != nil {
		e.emitAudit(ctx, EventRefresh, false, auditDetail{reason: auditReasonStoreUnavailable})
		return TokenPair{}, storeFailure(err)
	}

	switch result.Status {
	case token.RotateRotated:
		return e.finishRotation(ctx, result, successor, successorToken)

	case token.RotateReplayed:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricReplayDetected)
		e.metricInc(MetricFamilyRevoked)
		e.emitAudit(ctx, EventReplayDetected, false, auditDetail{
			userID:   result.UserID,
			familyID: result.FamilyID,
			reason:   auditReasonTokenReplayed,
		})
		e.emitAudit(ctx, EventFamilyRevoked, true, auditDetail{
			userID:   result.UserID,
			familyID: result.FamilyID,
			metadata: func() map[string]string {
				return map[string]string{"revoked_count": fmt.Sprintf("%d", result.RevokedCount)}
			},
		})
		return TokenPair{}, ErrTokenInvalid

	case token.RotateExpired:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventRefresh, false, auditDetail{
			userID:   result.UserID,
			familyID: result.FamilyID,
			reason:   auditReasonTokenExpired,
		})
		return TokenPair{}, ErrTokenInvalid

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventRefresh, false, auditDetail{reason: auditReasonTokenNotFound})
		return TokenPair{}, ErrTokenInvalid
	}
}

// finishRotation runs after the store committed a rotation: the account must
// still exist and be active, otherwise the freshly created successor (and
// the rest of the family) is revoked immediately. Only a definitive answer
// from the provider counts: an outage is not an account verdict, and the
// committed successor is returned with the active re-check deferred to the
// next rotation.
func (e *Engine) finishRotation(ctx context.Context, result token.RotateResult, successor *token.Record, successorToken string) (TokenPair, error) {
	user, err := e.userProvider.GetUserByID(ctx, result.UserID)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !user.Active) {
		if _, revokeErr := e.tokenStore.RevokeFamily(ctx, result.FamilyID, time.Now()); revokeErr == nil {
			e.metricInc(MetricFamilyRevoked)
		}
		reason := auditReasonAccountInactive
		if err != nil {
			reason = auditReasonUserMissing
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventRefresh, false, auditDetail{
			userID:   result.UserID,
			familyID: result.FamilyID,
			reason:   reason,
		})
		return TokenPair{}, ErrTokenInvalid
	}
	checkSkipped := err != nil

	accessToken, accessExpiresAt, err := e.jwtManager.CreateAccess(result.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("access token: %w", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricTokenIssued)
	detail := auditDetail{
		userID:   result.UserID,
		familyID: result.FamilyID,
		tokenID:  successor.ID,
	}
	if checkSkipped {
		detail.metadata = func() map[string]string {
			return map[string]string{"active_check": "skipped"}
		}
	}
	e.emitAudit(ctx, EventRefresh, true, detail)

	return TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
		RefreshToken:    successorToken,
	}, nil
}

// VerifyAccess validates an access token and returns the owning user ID.
// Pure CPU: no store round-trip, which is why revocation cannot reach
// access tokens before they expire.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.jwtManager.ParseAccess(accessToken)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrSignature):
			return "", ErrTokenSignature
		default:
			return "", ErrTokenMalformed
		}
	}

	return claims.UserID(), nil
}

// Logout revokes a single refresh token. Idempotent: unknown or
// already-revoked tokens return nil, so clients can always clear local
// state.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.tokenStore == nil {
		return ErrEngineNotReady
	}

	if _, err := internal.DecodeRefreshToken(refreshToken); err != nil {
		return nil
	}

	revoked, userID, err := e.tokenStore.Revoke(ctx, internal.HashRawToken(refreshToken), time.Now())
	if err != nil {
		return storeFailure(err)
	}
	if revoked {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, EventLogout, true, auditDetail{userID: userID})
	}

	return nil
}

// LogoutAll revokes every live refresh token the user holds, across all
// families and devices. Returns the number of tokens revoked.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil || e.tokenStore == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.tokenStore.RevokeAllForUser(ctx, userID, time.Now())
	if err != nil {
		return 0, storeFailure(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, EventLogoutAll, true, auditDetail{
		userID: userID,
		metadata: func() map[string]string {
			return map[string]string{"revoked_count": fmt.Sprintf("%d", revoked)}
		},
	})

	return revoked, nil
}

// issueTokenPair mints the first refresh token of a new family plus a
// matching access token.
func (e *Engine) issueTokenPair(ctx context.Context, userID, familyID string) (TokenPair, string, error) {
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("refresh secret: %w", err)
	}
	refreshToken := internal.EncodeRefreshToken(secret)

	now := time.Now()
	rec := &token.Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		FamilyID:  familyID,
		Hash:      internal.HashRawToken(refreshToken),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
	}

	if err := e.tokenStore.Create(ctx, rec); err != nil {
		return TokenPair{}, "", storeFailure(err)
	}

	accessToken, accessExpiresAt, err := e.jwtManager.CreateAccess(userID)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("access token: %w", err)
	}

	e.metricInc(MetricTokenIssued)

	return TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
		RefreshToken:    refreshToken,
	}, rec.ID, nil
}

// maybeUpgradeHash transparently rehashes a credential after successful
// verification when parameters were strengthened. Best effort: a failed
// rewrite must not fail the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, userID, pass, storedHash string) {
	needs, err := e.passwordHash.NeedsUpgrade(storedHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return
	}

	_ = e.userProvider.UpdatePasswordHash(ctx, userID, newHash)
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
