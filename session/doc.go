// Package session maintains server-side sessions for authenticated users.
// A Manager maps unpredictable session identifiers to stored Records holding
// the verified claims and an absolute expiry.  The identifier is the only
// thing delivered to the client (in an HTTP-only cookie); it grants no
// claims by itself and is purely a lookup key.
//
// Records live in a pluggable Store: an in-memory map for tests and single
// instance deployments, or Redis when sessions must be shared across
// instances.
package session
