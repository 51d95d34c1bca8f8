// Package util provides small shared helpers used across the auth library.
package util
