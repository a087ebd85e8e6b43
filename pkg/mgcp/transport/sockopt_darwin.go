//go:build darwin

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket настраивает управляющий сокет (Darwin)
func controlSocket(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = err
			return
		}
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, 0x60)
	})
	if err != nil {
		return err
	}
	return opErr
}
