package dataplane

import (
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"vpnserver/internal/session"
	"vpnserver/internal/wire"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

// pipeTun adapts an io.Pipe pair into a TunDevice.
type pipeTun struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipeTun() (serverSide *pipeTun, testSide *pipeTun) {
	r1, w1 := io.Pipe() // forwarder -> test (RunInbound writes here)
	r2, w2 := io.Pipe() // test -> forwarder (RunOutbound reads here)
	return &pipeTun{r: r2, w: w1}, &pipeTun{r: r1, w: w2}
}

func (p *pipeTun) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTun) Write(b []byte) (int, error) { return p.w.Write(b) }

func buildIPv4Frame(dst [4]byte, payload []byte) []byte {
	frame := make([]byte, 20+len(payload))
	frame[0] = 0x45
	copy(frame[16:20], dst[:])
	copy(frame[20:], payload)
	return frame
}

func TestRunInboundDecryptsAndWritesToTun(t *testing.T) {
	registry := session.NewRegistry()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	udpServer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer udpServer.Close()

	udpClient, err := net.DialUDP("udp", nil, udpServer.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial udp: %v", err)
	}
	defer udpClient.Close()

	clientAddrPort := udpClient.LocalAddr().(*net.UDPAddr).AddrPort()
	identity := session.Identity{
		UDPEndpoint: clientAddrPort,
		TunnelIPv4:  netip.AddrFrom4([4]byte{10, 8, 0, 2}),
		TCPEndpoint: netip.MustParseAddrPort("198.51.100.1:1234"),
	}
	if err := registry.Insert(identity, session.Value{AEADKey: key}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	server, testSide := newPipeTun()
	fw := NewForwarder(nopLogger{}, udpServer, server, registry)
	go fw.RunInbound()

	innerFrame := buildIPv4Frame([4]byte{10, 8, 0, 99}, []byte("payload"))
	plaintext := wire.NewEncoder().WriteString(innerFrame).Bytes()
	sealed, err := wire.Seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := udpClient.Write(sealed); err != nil {
		t.Fatalf("write udp: %v", err)
	}

	type readResult struct {
		n   int
		err error
	}
	got := make([]byte, 2048)
	resultCh := make(chan readResult, 1)
	go func() {
		n, err := testSide.Read(got)
		resultCh <- readResult{n, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("read tun: %v", res.err)
		}
		if string(got[:res.n]) != string(innerFrame) {
			t.Fatalf("tun frame = %q, want %q", got[:res.n], innerFrame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tun write")
	}
}

func TestRunOutboundEncryptsAndSendsToSessionEndpoint(t *testing.T) {
	registry := session.NewRegistry()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}

	udpServer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer udpServer.Close()

	clientSocket, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen client udp: %v", err)
	}
	defer clientSocket.Close()

	identity := session.Identity{
		UDPEndpoint: clientSocket.LocalAddr().(*net.UDPAddr).AddrPort(),
		TunnelIPv4:  netip.AddrFrom4([4]byte{10, 8, 0, 2}),
		TCPEndpoint: netip.MustParseAddrPort("198.51.100.1:1234"),
	}
	if err := registry.Insert(identity, session.Value{AEADKey: key}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	server, testSide := newPipeTun()
	fw := NewForwarder(nopLogger{}, udpServer, server, registry)
	go fw.RunOutbound()

	frame := buildIPv4Frame([4]byte{10, 8, 0, 2}, []byte("from-tun"))
	if _, err := testSide.Write(frame); err != nil {
		t.Fatalf("write tun: %v", err)
	}

	buf := make([]byte, 2048)
	clientSocket.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := clientSocket.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}

	opened, err := wire.Open(key, buf[:n])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dec := wire.NewDecoder(opened)
	got, err := dec.ReadString()
	if err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if string(got) != string(frame) {
		t.Fatalf("frame = %q, want %q", got, frame)
	}
}
