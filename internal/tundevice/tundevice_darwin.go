//go:build darwin

package tundevice

import (
	"fmt"
	"os/exec"
	"strconv"

	"golang.zx2c4.com/wireguard/tun"
)

type wireguardDevice struct {
	tun.Device
}

func (d *wireguardDevice) Read(p []byte) (int, error) {
	sizes := make([]int, 1)
	bufs := [][]byte{p}
	n, err := d.Device.Read(bufs, sizes, 0)
	if err != nil || n == 0 {
		return 0, err
	}
	return sizes[0], nil
}

func (d *wireguardDevice) Write(p []byte) (int, error) {
	_, err := d.Device.Write([][]byte{p}, 0)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Open creates a utun device via wireguard-go's CreateTUN, which mimics
// the kernel ioctl dance Linux needs with the darwin control-socket
// protocol, then assigns address/netmask/MTU with "ifconfig".
func Open(cfg Config) (Device, error) {
	dev, err := tun.CreateTUN(cfg.Name, cfg.MTU)
	if err != nil {
		return nil, fmt.Errorf("tundevice: create utun: %w", err)
	}
	ifName, err := dev.Name()
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("tundevice: utun name: %w", err)
	}

	if out, err := exec.Command("ifconfig", ifName, "inet", cfg.Address, cfg.Destination, "netmask", cfg.Netmask, "up").CombinedOutput(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("tundevice: ifconfig: %w: %s", err, out)
	}
	if out, err := exec.Command("ifconfig", ifName, "mtu", strconv.Itoa(cfg.MTU)).CombinedOutput(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("tundevice: ifconfig mtu: %w: %s", err, out)
	}

	return &wireguardDevice{Device: dev}, nil
}
