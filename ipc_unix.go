//go:build !windows

package discordrpc

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
)

// ipcPath returns the socket path of the Discord IPC endpoint with the given
// index, rooted at the first of XDG_RUNTIME_DIR, TMPDIR, TMP, TEMP or /tmp.
func ipcPath(index int) string {
	prefix := "/tmp"
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			prefix = v
			break
		}
	}
	return strings.TrimRight(prefix, "/") + "/discord-ipc-" + strconv.Itoa(index)
}

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
