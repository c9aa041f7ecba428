// Package cache is the Redis-backed fast store: sorted-set session indices,
// denormalized session metadata, refresh/access blacklists, brute-force
// counters and block flags, geo-region sets, pending two-factor secrets,
// and the password-reset token mapping.
//
// # Key layout
//
//	sessions:<userID>        zset  token id scored by issuance unix ms
//	session:token:<tokenID>  hash  denormalized token metadata, TTL = refresh expiry
//	bl:refresh:<fingerprint> string, TTL = remaining refresh lifetime
//	bl:access:<jti>          string, TTL = access-token lifetime
//	login:fail:<email>       counter, fixed window
//	blocked:email:<email>    string, block TTL
//	active_regions:<userID>  set, sliding window
//	2fa:setup:<userID>       string, pending TOTP secret
//	pwdreset:<fingerprint>   string, reset token -> email
//
// # Architecture boundaries
//
// The fast store is a pure accelerator plus counter substrate. The durable
// store remains the source of truth for token validity; nothing here is
// authoritative except the blacklists' rejection semantics and the
// brute-force counters.
package cache
