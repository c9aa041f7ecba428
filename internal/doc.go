// Package internal holds the token and sealing primitives shared across
// the engine: opaque token generation, HMAC fingerprints, and the AES-GCM
// seal around the stored TOTP seed. Nothing here is part of the public
// API.
package internal
