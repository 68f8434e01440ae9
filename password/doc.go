// Package password hashes and verifies credentials with Argon2id.
//
// Hashes are self-describing PHC strings, so cost parameters can be raised
// without invalidating stored hashes: Verify always uses the parameters
// embedded in the hash, and NeedsUpgrade tells the caller when a hash was
// derived with weaker parameters than current configuration and should be
// recomputed on the next successful login.
package password
