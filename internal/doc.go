// Package internal contains helper utilities that are intentionally private
// to tokengate: refresh-secret generation, wire encoding, and storage-key
// hashing.
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokengate API.
//   - Be imported by any package outside the tokengate module.
package internal
