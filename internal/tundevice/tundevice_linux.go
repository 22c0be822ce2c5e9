//go:build linux

package tundevice

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	tunPath   = "/dev/net/tun"
	tunSetIff = 0x400454ca
	iffTun    = 0x0001
	iffNoPI   = 0x1000
)

// ifReq mirrors the kernel's struct ifreq layout as used by TUNSETIFF:
// a 16-byte interface name followed by a flags word.
type ifReq struct {
	Name  [16]byte
	Flags uint16
	_     [22]byte
}

type fileDevice struct {
	*os.File
}

// Open creates (or attaches to) the named TUN device via the
// TUNSETIFF ioctl, then configures its address, netmask, and MTU and
// brings it up with the "ip" command-line tool.
func Open(cfg Config) (Device, error) {
	tun, err := os.OpenFile(tunPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tundevice: open %s: %w", tunPath, err)
	}

	var req ifReq
	copy(req.Name[:], cfg.Name)
	req.Flags = iffTun | iffNoPI

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, tun.Fd(), uintptr(tunSetIff), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		_ = tun.Close()
		return nil, fmt.Errorf("tundevice: TUNSETIFF ioctl for %s: %w", cfg.Name, errno)
	}

	if err := configure(cfg); err != nil {
		_ = tun.Close()
		return nil, err
	}

	return &fileDevice{File: tun}, nil
}

func configure(cfg Config) error {
	cidr := cfg.Address + "/" + maskToPrefixLen(cfg.Netmask)
	steps := [][]string{
		{"addr", "add", cidr, "dev", cfg.Name},
		{"link", "set", "dev", cfg.Name, "mtu", strconv.Itoa(cfg.MTU)},
		{"link", "set", "dev", cfg.Name, "up"},
	}
	for _, args := range steps {
		out, err := exec.Command("ip", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("tundevice: ip %v: %w: %s", args, err, out)
		}
	}
	return nil
}

func maskToPrefixLen(netmask string) string {
	mask := net.IPMask(net.ParseIP(netmask).To4())
	ones, _ := mask.Size()
	return strconv.Itoa(ones)
}
