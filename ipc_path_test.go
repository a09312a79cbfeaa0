//go:build !windows

package discordrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPCPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000/")
	assert.Equal(t, "/run/user/1000/discord-ipc-3", ipcPath(3))

	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("TMPDIR", "/var/tmp")
	assert.Equal(t, "/var/tmp/discord-ipc-0", ipcPath(0))

	t.Setenv("TMPDIR", "")
	t.Setenv("TMP", "")
	t.Setenv("TEMP", "")
	assert.Equal(t, "/tmp/discord-ipc-9", ipcPath(9))
}
