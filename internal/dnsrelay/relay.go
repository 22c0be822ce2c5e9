// Package dnsrelay implements the obfuscated DNS relay (C5): a
// stateless UDP front-end that XOR-decodes queries, forwards them to an
// upstream resolver over a fresh socket per query, and XOR-encodes the
// reply back to the original client.
package dnsrelay

import (
	"context"
	"net"

	"golang.org/x/net/dns/dnsmessage"

	"vpnserver/internal/logging"
	"vpnserver/internal/wire"
)

const bufferSize = 2048

// Relay proxies obfuscated DNS traffic to a single upstream resolver.
type Relay struct {
	logger   logging.Logger
	upstream string
	key      []byte
}

// NewRelay builds a Relay that forwards to upstream, XOR-obfuscating
// against key in both directions.
func NewRelay(logger logging.Logger, upstream string, key []byte) *Relay {
	return &Relay{logger: logger, upstream: upstream, key: key}
}

// Run listens on addr until ctx is canceled or the socket fails,
// spawning one goroutine per inbound query. It never returns nil.
func (r *Relay) Run(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	r.logger.Printf("dnsrelay: listening on %s", addr)

	buf := make([]byte, bufferSize)
	for {
		n, clientAddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		query := wire.XOR(buf[:n], r.key)
		r.logQuery(query)

		go r.forward(conn, clientAddr, query)
	}
}

// forward sends query to the upstream resolver on a fresh socket, waits
// for one reply, and relays it back to clientAddr XOR-encoded. Any
// failure along the way simply drops the query; the relay keeps no
// retry or correlation state.
func (r *Relay) forward(server net.PacketConn, clientAddr net.Addr, query []byte) {
	upstreamConn, err := net.Dial("udp", r.upstream)
	if err != nil {
		r.logger.Debugf("dnsrelay: dial upstream: %v", err)
		return
	}
	defer upstreamConn.Close()

	if _, err := upstreamConn.Write(query); err != nil {
		r.logger.Debugf("dnsrelay: send upstream: %v", err)
		return
	}

	buf := make([]byte, bufferSize)
	n, err := upstreamConn.Read(buf)
	if err != nil {
		r.logger.Debugf("dnsrelay: read upstream: %v", err)
		return
	}

	reply := wire.XOR(buf[:n], r.key)
	if _, err := server.WriteTo(reply, clientAddr); err != nil {
		r.logger.Debugf("dnsrelay: reply to client: %v", err)
	}
}

// logQuery is a best-effort debug-level parse of the question name/type,
// never affecting whether the raw payload gets relayed.
func (r *Relay) logQuery(query []byte) {
	var parser dnsmessage.Parser
	if _, err := parser.Start(query); err != nil {
		return
	}
	q, err := parser.Question()
	if err != nil {
		return
	}
	r.logger.Debugf("dnsrelay: query %s %s", q.Name, q.Type)
}
