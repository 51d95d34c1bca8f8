// Package storage defines the interfaces for persisting session tokens and
// login attempt counters. Both were process-wide in-memory maps in earlier
// iterations of this system; pulling them behind interfaces lets the
// in-memory implementation be swapped for a shared cache so token validity
// and lockouts hold across horizontally scaled instances.
package storage
