//go:build linux

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket настраивает управляющий сокет (Linux).
// SO_REUSEADDR позволяет перезапустить контроллер без ожидания
// освобождения порта; DSCP CS3 маркирует сигнальный трафик для QoS.
func controlSocket(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = err
			return
		}
		// DSCP CS3 (0x18): сигнализация; ошибка не фатальна (контейнеры)
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, 0x60)
	})
	if err != nil {
		return err
	}
	return opErr
}
