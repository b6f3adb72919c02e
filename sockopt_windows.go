//go:build windows
// +build windows

package py4go

import "syscall"

// SO_REUSEADDR on Windows allows stealing a bound port, so it is left unset.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
