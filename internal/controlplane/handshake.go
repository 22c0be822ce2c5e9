// Package controlplane implements the TCP control-channel handshake
// (C3): the per-connection state machine that takes an unauthenticated
// TCP client through X25519 key agreement and JWT authentication to an
// established session in the registry.
package controlplane

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/crypto/curve25519"

	"vpnserver/internal/authjwt"
	"vpnserver/internal/logging"
	"vpnserver/internal/session"
	"vpnserver/internal/userstore"
	"vpnserver/internal/wire"
)

// tokenVerifier validates a bearer token, satisfied by *authjwt.Validator.
type tokenVerifier interface {
	Verify(token string) (*authjwt.Claims, error)
}

// userLookup resolves the user a verified token's identifier names,
// satisfied by *userstore.Store.
type userLookup interface {
	FindEnabledByID(id uint32) (userstore.User, error)
}

// state tracks where a single TCP connection is in the handshake,
// mirroring the original's SessionSaturate enum.
type state int

const (
	stateInit state = iota
	stateWaitApprove
	stateSuccess
)

const bufferSize = 2048

// approveGreeting is the fixed payload returned on a successful
// SignApprove, mirroring the original's literal greeting string.
const approveGreeting = "hello, world!"

// Registrar drives the handshake for accepted TCP connections and
// installs resulting sessions into the registry.
type Registrar struct {
	logger      logging.Logger
	validator   tokenVerifier
	users       userLookup
	registry    *session.Registry
	readTimeout time.Duration
}

// NewRegistrar builds a Registrar from its collaborators. readTimeout
// bounds each read on the control connection; a client that goes silent
// for this long is disconnected (original: 10s).
func NewRegistrar(logger logging.Logger, validator tokenVerifier, users userLookup, registry *session.Registry, readTimeout time.Duration) *Registrar {
	return &Registrar{logger: logger, validator: validator, users: users, registry: registry, readTimeout: readTimeout}
}

// Handle drives conn through the full handshake state machine until the
// client disconnects, times out, or sends something invalid for its
// current state. It blocks for the life of the connection and evicts
// any session it installed before returning.
func (r *Registrar) Handle(conn net.Conn) {
	defer conn.Close()

	remote, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		r.logger.Printf("controlplane: unexpected remote address type %T", conn.RemoteAddr())
		return
	}
	// Unmap IPv4-mapped addresses so the endpoint compares equal to the
	// plain IPv4 form used for registry keys.
	tcpEndpoint := netip.AddrPortFrom(remote.AddrPort().Addr().Unmap(), remote.AddrPort().Port())

	var (
		cur       = stateInit
		aeadKey   []byte
		installed bool
		identity  session.Identity
	)
	defer func() {
		if installed {
			r.registry.Remove(identity)
			r.logger.Printf("controlplane: %s evicted", tcpEndpoint)
		}
	}()

	buf := make([]byte, bufferSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
			r.logger.Printf("controlplane: %s set deadline: %v", tcpEndpoint, err)
			return
		}

		n, err := conn.Read(buf)
		if err != nil {
			r.logger.Debugf("controlplane: %s read: %v", tcpEndpoint, err)
			return
		}
		if n == 0 {
			return
		}

		frame := buf[:n]
		if cur >= stateWaitApprove {
			opened, err := wire.Open(aeadKey, frame)
			if err != nil {
				r.logger.Printf("controlplane: %s failed to open frame: %v", tcpEndpoint, err)
				return
			}
			frame = opened
		}

		dec := wire.NewDecoder(frame)
		opcode, err := dec.ReadOpcode()
		if err != nil {
			r.logger.Printf("controlplane: %s malformed frame: %v", tcpEndpoint, err)
			return
		}

		switch {
		case opcode == wire.Sign && cur == stateInit:
			nextKey, err := r.handleSign(conn, dec)
			if err != nil {
				r.logger.Printf("controlplane: %s handshake failed: %v", tcpEndpoint, err)
				return
			}
			aeadKey = nextKey
			cur = stateWaitApprove

		case opcode == wire.SignApprove && cur == stateWaitApprove:
			id, err := r.handleSignApprove(conn, dec, aeadKey, tcpEndpoint)
			if err != nil {
				r.logger.Printf("controlplane: %s approval failed: %v", tcpEndpoint, err)
				return
			}
			identity = id
			installed = true
			cur = stateSuccess

		case opcode == wire.Trace && cur == stateSuccess:
			// keepalive, nothing to do

		default:
			r.logger.Printf("controlplane: %s unexpected opcode %s in state %d", tcpEndpoint, opcode, cur)
			return
		}
	}
}

// handleSign performs the X25519 agreement: reads the client's ephemeral
// public key, generates a server ephemeral keypair, derives the shared
// secret used directly as the AEAD key, and replies with the server's
// public key (sent in the clear, matching the literal original).
func (r *Registrar) handleSign(conn net.Conn, dec *wire.Decoder) ([]byte, error) {
	clientPub, err := dec.ReadString()
	if err != nil {
		return nil, fmt.Errorf("read client public key: %w", err)
	}
	if len(clientPub) != curve25519.PointSize {
		return nil, fmt.Errorf("client public key has invalid length %d", len(clientPub))
	}

	var serverPriv [curve25519.ScalarSize]byte
	if _, err := rand.Read(serverPriv[:]); err != nil {
		return nil, fmt.Errorf("generate server private key: %w", err)
	}
	serverPub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("compute server public key: %w", err)
	}
	sharedKey, err := curve25519.X25519(serverPriv[:], clientPub)
	if err != nil {
		return nil, fmt.Errorf("compute shared key: %w", err)
	}

	resp := wire.NewEncoder().WriteOpcode(wire.SignWaitApprove).WriteString(serverPub).Bytes()
	if _, err := conn.Write(resp); err != nil {
		return nil, fmt.Errorf("write SignWaitApprove: %w", err)
	}

	return sharedKey, nil
}

// handleSignApprove verifies the client's bearer token, resolves the
// backing user, rejects a duplicate login for the same tunnel address,
// and installs the session.
func (r *Registrar) handleSignApprove(conn net.Conn, dec *wire.Decoder, aeadKey []byte, tcpEndpoint netip.AddrPort) (session.Identity, error) {
	tokenBytes, err := dec.ReadString()
	if err != nil {
		return session.Identity{}, fmt.Errorf("read access token: %w", err)
	}
	claims, err := r.validator.Verify(string(tokenBytes))
	if err != nil {
		return session.Identity{}, fmt.Errorf("verify access token: %w", err)
	}

	udpPort, err := dec.ReadUint16()
	if err != nil {
		return session.Identity{}, fmt.Errorf("read udp port: %w", err)
	}

	user, err := r.users.FindEnabledByID(claims.Identifier)
	if err != nil {
		return session.Identity{}, fmt.Errorf("resolve user %d: %w", claims.Identifier, err)
	}

	if r.registry.HasTunnelIPv4(user.TunnelIPv4) {
		return session.Identity{}, errors.New("session already exists for tunnel address")
	}

	identity := session.Identity{
		UDPEndpoint: netip.AddrPortFrom(tcpEndpoint.Addr(), udpPort),
		TunnelIPv4:  user.TunnelIPv4,
		TCPEndpoint: tcpEndpoint,
	}
	value := session.Value{
		User:    session.User{ID: user.ID, Username: user.Username, TunnelIPv4: user.TunnelIPv4},
		AEADKey: aeadKey,
	}
	if err := r.registry.Insert(identity, value); err != nil {
		return session.Identity{}, fmt.Errorf("install session: %w", err)
	}

	resp := wire.NewEncoder().WriteOpcode(wire.SignApprove).WriteString([]byte(approveGreeting)).Bytes()
	sealed, err := wire.Seal(aeadKey, resp)
	if err != nil {
		r.registry.Remove(identity)
		return session.Identity{}, fmt.Errorf("seal SignApprove: %w", err)
	}
	if _, err := conn.Write(sealed); err != nil {
		r.registry.Remove(identity)
		return session.Identity{}, fmt.Errorf("write SignApprove: %w", err)
	}

	r.logger.Printf("controlplane: %s approved as %s (%s)", tcpEndpoint, user.Username, user.TunnelIPv4)
	return identity, nil
}
