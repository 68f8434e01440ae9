// Package jwt is the stateless access-token codec: creation and verification
// of short-lived signed tokens carrying a user ID.
//
// # Architecture boundaries
//
// This package never touches storage. Verification is pure CPU so it can run
// on every inbound request without a Redis round-trip. Refresh tokens are a
// different animal entirely and live in the token package.
//
// # What this package must NOT do
//
//   - Read keys from the environment or any global registry.
//   - Embed authorization data beyond the user identity.
package jwt
