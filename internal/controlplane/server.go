package controlplane

import (
	"context"
	"fmt"
	"net"

	"vpnserver/internal/logging"
)

// Server accepts TCP connections on a fixed address and hands each one
// to a Registrar, one goroutine per connection.
type Server struct {
	addr      string
	logger    logging.Logger
	registrar *Registrar
}

// NewServer builds a Server bound to addr once Serve is called.
func NewServer(addr string, logger logging.Logger, registrar *Registrar) *Server {
	return &Server{addr: addr, logger: logger, registrar: registrar}
}

// Serve listens on s.addr and runs the accept loop until ctx is
// canceled or the listener fails. It always returns a non-nil error:
// ctx.Err() on a clean shutdown, the accept failure otherwise.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("controlplane: listen %s: %w", s.addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.logger.Printf("controlplane: listening on %s", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("controlplane: accept: %w", err)
		}
		go s.registrar.Handle(conn)
	}
}
