// Package valkey provides a Valkey-backed implementation of the storage
// interfaces. Backing the token and attempt stores with a shared cache
// makes single-active-session semantics and login lockouts hold across
// horizontally scaled instances, which the in-memory backend cannot offer.
//
// Refresh tokens can be encrypted at rest by attaching a security.Encryptor.
package valkey
