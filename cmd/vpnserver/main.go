// Command vpnserver runs the VPN server endpoint: the TCP control-channel
// handshake, the UDP<->TUN data-plane forwarders, and the obfuscated DNS
// relay, all sharing one process lifetime.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vpnserver/internal/authjwt"
	"vpnserver/internal/config"
	"vpnserver/internal/controlplane"
	"vpnserver/internal/dataplane"
	"vpnserver/internal/dnsrelay"
	"vpnserver/internal/logging"
	"vpnserver/internal/session"
	"vpnserver/internal/tundevice"
	"vpnserver/internal/userstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("vpnserver: load config: %w", err)
	}

	logger := logging.NewStdLogger(true)

	users, err := userstore.Open(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("vpnserver: open user store: %w", err)
	}

	tun, err := tundevice.Open(tundevice.Config{
		Name:        cfg.TUNName,
		Address:     cfg.TUNAddress,
		Netmask:     cfg.TUNNetmask,
		Destination: cfg.TUNAddress,
		MTU:         cfg.TUNMTU,
	})
	if err != nil {
		return fmt.Errorf("vpnserver: open tun device: %w", err)
	}
	defer tun.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.DataAddr)
	if err != nil {
		return fmt.Errorf("vpnserver: resolve data address %s: %w", cfg.DataAddr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("vpnserver: listen udp %s: %w", cfg.DataAddr, err)
	}
	defer udpConn.Close()

	registry := session.NewRegistry()
	validator := authjwt.NewValidator(cfg.JWTSharedSecret)
	registrar := controlplane.NewRegistrar(logger, validator, users, registry, time.Duration(cfg.ControlReadTimeoutS)*time.Second)
	controlServer := controlplane.NewServer(cfg.ControlAddr, logger, registrar)

	forwarder := dataplane.NewForwarder(logger, udpConn, tun, registry)
	relay := dnsrelay.NewRelay(logger, cfg.DNSUpstream, cfg.DNSObfuscationKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return controlServer.Serve(gctx) })
	g.Go(func() error { return forwarder.RunInbound() })
	g.Go(func() error { return forwarder.RunOutbound() })
	g.Go(func() error { return relay.Run(gctx, cfg.DNSAddr) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("vpnserver: shutting down")
		_ = udpConn.Close()
		_ = tun.Close()
		return gctx.Err()
	})

	return g.Wait()
}
