//go:build windows

package discordrpc

import (
	"context"
	"net"
	"strconv"

	"github.com/Microsoft/go-winio"
)

// ipcPath returns the named pipe of the Discord IPC endpoint with the given index.
func ipcPath(index int) string {
	return `\\?\pipe\discord-ipc-` + strconv.Itoa(index)
}

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
