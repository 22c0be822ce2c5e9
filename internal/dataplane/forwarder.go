// Package dataplane implements the UDP<->TUN forwarding loops (C4): the
// bidirectional bridge between encrypted client datagrams and the raw IP
// frames carried on the kernel TUN device.
package dataplane

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"

	"vpnserver/internal/ipheader"
	"vpnserver/internal/logging"
	"vpnserver/internal/session"
	"vpnserver/internal/wire"
)

const bufferSize = 2048

// TunDevice is the narrow interface onto a TUN device the forwarders
// need: reading and writing raw IP frames.
type TunDevice interface {
	io.Reader
	io.Writer
}

// Forwarder runs the inbound and outbound data-plane loops over a shared
// UDP socket and TUN device, both keyed through the session registry.
type Forwarder struct {
	logger   logging.Logger
	udp      *net.UDPConn
	tun      TunDevice
	registry *session.Registry
}

// NewForwarder builds a Forwarder over an already-bound UDP socket and
// an already-open TUN device.
func NewForwarder(logger logging.Logger, udp *net.UDPConn, tun TunDevice, registry *session.Registry) *Forwarder {
	return &Forwarder{logger: logger, udp: udp, tun: tun, registry: registry}
}

// RunInbound reads datagrams from the UDP socket, decrypts them under
// the sending session's key, and writes the inner IP frame to the TUN
// device unmodified. It runs until the socket read fails.
func (f *Forwarder) RunInbound() error {
	buf := make([]byte, bufferSize)
	for {
		n, srcAddr, err := f.udp.ReadFromUDPAddrPort(buf)
		if err != nil {
			return fmt.Errorf("dataplane: inbound read: %w", err)
		}
		srcAddr = netip.AddrPortFrom(srcAddr.Addr().Unmap(), srcAddr.Port())

		_, value, err := f.registry.FindByUDPEndpoint(srcAddr)
		if err != nil {
			f.logger.Debugf("dataplane: inbound: no session for %s, dropping", srcAddr)
			continue
		}

		plaintext, err := wire.Open(value.AEADKey, buf[:n])
		if err != nil {
			f.logger.Debugf("dataplane: inbound: open failed for %s: %v", srcAddr, err)
			continue
		}

		dec := wire.NewDecoder(plaintext)
		frame, err := dec.ReadString()
		if err != nil {
			f.logger.Debugf("dataplane: inbound: malformed frame from %s: %v", srcAddr, err)
			continue
		}

		if _, err := f.tun.Write(frame); err != nil {
			f.logger.Printf("dataplane: inbound: write to tun: %v", err)
		}
	}
}

// RunOutbound reads IP frames from the TUN device, looks up the session
// owning the frame's destination tunnel address, encrypts, and sends to
// that session's UDP endpoint. It runs until the TUN read fails.
func (f *Forwarder) RunOutbound() error {
	// One spare byte lets a frame longer than bufferSize be detected
	// and dropped instead of being forwarded truncated.
	buf := make([]byte, bufferSize+1)
	for {
		n, err := f.tun.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("dataplane: outbound: tun closed: %w", err)
			}
			return fmt.Errorf("dataplane: outbound: tun read: %w", err)
		}
		if n > bufferSize {
			f.logger.Debugf("dataplane: outbound: frame exceeds %d bytes, dropping", bufferSize)
			continue
		}
		frame := buf[:n]

		dst, err := ipheader.DestinationAddr(frame)
		if err != nil {
			f.logger.Debugf("dataplane: outbound: %v, dropping", err)
			continue
		}

		identity, value, err := f.registry.FindByTunnelIPv4(dst)
		if err != nil {
			f.logger.Debugf("dataplane: outbound: no session for %s, dropping", dst)
			continue
		}

		plaintext := wire.NewEncoder().WriteString(frame).Bytes()
		sealed, err := wire.Seal(value.AEADKey, plaintext)
		if err != nil {
			f.logger.Printf("dataplane: outbound: seal failed for %s: %v", dst, err)
			continue
		}

		if _, err := f.udp.WriteToUDPAddrPort(sealed, identity.UDPEndpoint); err != nil {
			f.logger.Printf("dataplane: outbound: send to %s: %v", identity.UDPEndpoint, err)
		}
	}
}
