// Package ipheader extracts the handful of IPv4 header fields the
// data-plane outbound forwarder needs to route a TUN frame to the right
// session, without parsing the full header.
package ipheader

import (
	"errors"
	"net/netip"
)

// ErrNotIPv4 is returned for frames that aren't IPv4 packets of
// sufficient length to carry a header.
var ErrNotIPv4 = errors.New("ipheader: not an IPv4 packet")

// DestinationAddr extracts the destination address from bytes 16..20 of
// an IPv4 header. This is the fix for the "outbound routing bug"
// documented in spec.md §9: the original hard-codes a single tunnel
// address instead of reading it from the packet.
func DestinationAddr(frame []byte) (netip.Addr, error) {
	if len(frame) < 20 {
		return netip.Addr{}, ErrNotIPv4
	}
	if version := frame[0] >> 4; version != 4 {
		return netip.Addr{}, ErrNotIPv4
	}
	var b [4]byte
	copy(b[:], frame[16:20])
	return netip.AddrFrom4(b), nil
}
