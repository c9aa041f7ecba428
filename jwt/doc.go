// Package jwt signs and parses short-lived access tokens.
//
// Claims carry the user id (sub), email, role, and the jti correlating the
// access token to the refresh-token row issued alongside it. HS256 is the
// default signing method; Ed25519 is available for split sign/verify
// deployments.
//
// # Architecture boundaries
//
// This package owns token format and signature verification only. Blacklist
// checks against revoked jtis belong to the Engine's fast store.
package jwt
