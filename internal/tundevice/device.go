// Package tundevice opens and configures the server's TUN interface
// (C9): a point-to-point kernel network device carrying the decrypted
// IP frames of every client tunnel.
package tundevice

// Config describes how the server's TUN interface should be created and
// addressed. Values match spec.md's fixed defaults.
type Config struct {
	Name        string
	Address     string
	Netmask     string
	Destination string
	MTU         int
}

// Device is a raw IP-frame reader/writer over the kernel TUN interface.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}
