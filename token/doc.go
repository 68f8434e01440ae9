// Package token is the durable refresh-token store: one Redis hash per
// rotation-chain link, keyed by the SHA-256 of the token secret, with
// per-family and per-user index sets for the cascade paths.
//
// # Design
//
// The store's contract is that at most one record per family is ever active.
// Rotation enforces it with a Lua compare-and-swap on the revoked flag:
// revoking the presented record and writing its successor happen in one
// script execution. Reuse of a revoked record triggers family-wide
// revocation inside that same execution — fail-closed, since the only
// observable signal of a stolen secret is its use after the legitimate
// client already rotated.
//
// # What this package must NOT do
//
//   - See raw token secrets. Callers hash before calling in.
//   - Decide what a rejection means. The store reports precise statuses;
//     collapsing them into an opaque error is the engine's job.
package token
