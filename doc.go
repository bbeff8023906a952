// Package accounts implements the authentication and account provisioning
// core for a fitness tracking backend: the three step registration flow
// (email claim, email verification, username and password completion),
// credential login with signed session assertions, single use password reset
// tokens, and OAuth identity linking through the social subpackage.
//
// Persistence goes through bun repositories; raw tokens never touch the
// store, only sha256 digests do. The HTTP layer is a consumer of this
// package, not part of it: workflows take normalized input structs and
// return typed errors the transport maps to status codes.
package accounts
