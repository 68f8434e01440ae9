package tokengate

import (
	"context"
	"time"
)

// Internal rejection reasons. These land in audit events only; the public
// error surface collapses them into the generic sentinels.
const (
	auditReasonInvalidCredentials = "invalid_credentials"
	auditReasonAccountInactive    = "account_inactive"
	auditReasonDuplicateEmail     = "duplicate_email"
	auditReasonTokenMalformed     = "token_malformed"
	auditReasonTokenNotFound      = "token_not_found"
	auditReasonTokenExpired       = "token_expired"
	auditReasonTokenReplayed      = "token_replayed"
	auditReasonUserMissing        = "user_missing"
	auditReasonStoreUnavailable   = "store_unavailable"
)

type auditDetail struct {
	userID   string
	familyID string
	tokenID  string
	reason   string
	metadata func() map[string]string
}

// emitAudit builds the event lazily: metadata closures only run when a
// dispatcher is attached.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, d auditDetail) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if d.metadata != nil {
		metadata = d.metadata()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    d.userID,
		FamilyID:  d.familyID,
		TokenID:   d.tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     d.reason,
		Metadata:  metadata,
	})
}
