//go:build !linux && !darwin

package transport

import "syscall"

// controlSocket для прочих платформ опции сокета не настраиваются
func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
