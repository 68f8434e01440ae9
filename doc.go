// Package tokengate implements the session-token lifecycle for a user-facing
// API: short-lived JWT access tokens, long-lived rotating refresh tokens
// grouped into families, replay (theft) detection, and cascading revocation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokengate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, UserRecord, MetricsSnapshot, AuditEvent). The
// refresh-token store lives in the token sub-package, the access-token codec
// in jwt, and password hashing in password. Secret generation and hashing
// helpers live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Persist user accounts. Account storage belongs to the caller, wired in
//     through [UserProvider].
//   - Store raw refresh secrets. Only SHA-256 hashes ever reach Redis; the
//     cleartext secret exists on the wire and nowhere else.
//   - Distinguish token-rejection causes to callers. Not-found, expired,
//     revoked, and replayed all surface as [ErrTokenInvalid]; only audit
//     events and metrics carry the internal reason.
//
// # Rotation contract
//
// Refresh is the hot mutation path. The find-revoke-create-successor step
// executes as a single Redis Lua script, so two concurrent refresh calls with
// the same token deterministically produce one winner and one replay-style
// rejection, never two successors. Reuse of an already-consumed token revokes
// the entire family inside the same script execution.
package tokengate
