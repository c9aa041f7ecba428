// Package middleware adapts HTTP requests to authengine.Engine
// validation. Guards read the Authorization header, call Engine.Validate
// (signature plus revocation blacklist), and inject the validated claims
// into the request context. Authentication decisions themselves live in
// the engine, never here.
package middleware
