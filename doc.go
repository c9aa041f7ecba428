// Package authengine is an embeddable authentication and session
// management engine: email/password login with brute-force throttling and
// an optional geo-anomaly heuristic, short-lived JWT access tokens paired
// with rotating opaque refresh tokens, per-user session caps, targeted
// revocation backed by Redis blacklists, TOTP two-factor enrollment, and
// password policy plus history enforcement.
//
// The engine coordinates two stores. The durable store (see the store and
// store/gormstore packages) is the source of truth for users, token rows,
// and the audit trail. The fast store (the cache package, Redis) carries
// the session index, blacklists, rate counters, and short-lived secrets;
// it accelerates lookups and can always be rebuilt from the durable side.
//
// Build an Engine with the Builder:
//
//	engine, err := authengine.New().
//		WithRedis(redisClient).
//		WithStore(gormStore).
//		WithConfig(cfg).
//		Build()
//
// Per-request client attributes travel on the context via WithClientIP,
// WithUserAgent, and WithDeviceName. All engine methods are safe for
// concurrent use.
package authengine
