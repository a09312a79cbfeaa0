//go:build !windows

package rpctest

import (
	"net"
	"path/filepath"
	"strconv"
)

func listenIPC(dir string, index int) (net.Listener, string, error) {
	path := filepath.Join(dir, "discord-ipc-"+strconv.Itoa(index))
	l, err := net.Listen("unix", path)
	return l, path, err
}
