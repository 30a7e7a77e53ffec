// Package domain defines the core relay types shared across packages.
//
// Contains the Alert payload wrapper, the closed set of inbound client
// message variants, and the outbound server message shapes. No implementation
// code - just contracts. Prevents circular imports by keeping interfaces on
// the consumer side.
package domain
