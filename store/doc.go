// Package store defines the durable persistence contract consumed by the
// authengine core: user accounts, refresh-token records, audit entries,
// login attempts, and password history.
//
// The engine treats implementations as external collaborators. Correctness
// relies only on per-row atomicity (a single-row conditional update is
// atomic); no cross-row transactions are required. The reference
// implementation lives in store/gormstore.
package store
