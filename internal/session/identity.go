// Package session implements the process-wide session registry (C2):
// the composite identity binding a client's UDP endpoint, assigned
// tunnel IPv4, and control TCP endpoint to an authenticated user and
// AEAD key.
package session

import "net/netip"

// Identity is the composite key uniquely identifying a live VPN client.
// All three fields are enforced unique within a Registry; tunnel IPv4 in
// particular is the binding invariant (spec.md §3).
type Identity struct {
	UDPEndpoint netip.AddrPort
	TunnelIPv4  netip.Addr
	TCPEndpoint netip.AddrPort
}

// User is the authenticated identity a session is bound to.
type User struct {
	ID         uint32
	Username   string
	TunnelIPv4 netip.Addr
}

// Value is what a Registry stores against an Identity: the user record
// and the AEAD key installed at the end of the handshake.
type Value struct {
	User    User
	AEADKey []byte
}
