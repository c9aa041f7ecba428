// Package password provides the one-way hash/verify capability injected
// into the engine.
//
// Two implementations ship: [Bcrypt], the default, compatible with the
// hashes the reference deployment already has on disk, and [Argon2], a
// PHC-formatted argon2id hasher for new deployments. Both satisfy [Hasher].
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes, reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Log plaintext passwords or hash parameters at runtime.
package password
