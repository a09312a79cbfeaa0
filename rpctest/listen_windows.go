//go:build windows

package rpctest

import (
	"net"
	"strconv"

	"github.com/Microsoft/go-winio"
)

func listenIPC(_ string, index int) (net.Listener, string, error) {
	path := `\\?\pipe\discord-ipc-` + strconv.Itoa(index)
	l, err := winio.ListenPipe(path, nil)
	return l, path, err
}
