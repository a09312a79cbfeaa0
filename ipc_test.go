//go:build !windows

package discordrpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/discordrpc"
	"github.com/Zereker/discordrpc/rpctest"
)

// ipcDir points IPC discovery at a fresh directory. Unix socket paths are
// short-limited, so it lives directly under the system temp dir.
func ipcDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "drpc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("XDG_RUNTIME_DIR", dir)
	return dir
}

func serveIPC(t *testing.T, dir string, index int, h rpctest.Handler) *rpctest.Server {
	t.Helper()

	srv, err := rpctest.NewIPCServer(dir, index, rpctest.ServerLoggerOption(discordrpc.DiscardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func newIPCClient(t *testing.T, opts ...discordrpc.Option) *discordrpc.Client {
	t.Helper()

	c, err := discordrpc.New(append([]discordrpc.Option{
		discordrpc.TransportOption("ipc"),
		discordrpc.LoggerOption(discordrpc.DiscardLogger()),
		discordrpc.ConnectTimeoutOption(2 * time.Second),
	}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Destroy(ctx)
	})
	return c
}

func TestIPC_ConnectAndRequest(t *testing.T) {
	dir := ipcDir(t)
	discord := &rpctest.Discord{
		Responder: func(req *discordrpc.Message) *discordrpc.Message {
			if req.Cmd == discordrpc.CmdGetGuild {
				return rpctest.Reply(req, map[string]string{"id": "g1", "name": "Guild"})
			}
			return rpctest.Reply(req, map[string]any{})
		},
	}
	serveIPC(t, dir, 0, discord)

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))

	require.NotNil(t, c.User())
	assert.Equal(t, "1", c.User().ID)
	assert.Equal(t, discordrpc.StateReady, c.State())
	assert.Equal(t, []rpctest.Handshake{{V: 1, ClientID: "123"}}, discord.Handshakes())

	g, err := c.GetGuild(context.Background(), "g1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Guild", g.Name)

	require.NoError(t, c.Ping())
}

func TestIPC_DiscoversLaterIndex(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 3, &rpctest.Discord{})

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))
}

func TestIPC_NoEndpoint(t *testing.T) {
	ipcDir(t)

	c := newIPCClient(t)
	err := c.Connect(context.Background(), "123")
	assert.True(t, errors.Is(err, discordrpc.ErrConnectionFailed))
}

func TestIPC_PingPong(t *testing.T) {
	dir := ipcDir(t)

	pong := make(chan discordrpc.Frame, 1)
	serveIPC(t, dir, 0, rpctest.HandlerFunc(func(_ context.Context, p *rpctest.Peer) {
		if _, err := p.ReadFrame(); err != nil {
			return
		}
		_ = p.WriteMessage(rpctest.ReadyMessage(rpctest.DefaultUser))
		_ = p.WriteFrame(discordrpc.OpPing, "are-you-there")

		for {
			f, err := p.ReadFrame()
			if err != nil {
				return
			}
			if f.Opcode == discordrpc.OpPong {
				pong <- f
				return
			}
		}
	}))

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))

	select {
	case f := <-pong:
		assert.JSONEq(t, `"are-you-there"`, string(f.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("no PONG received")
	}
}

func TestIPC_ChunkedFrames(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, rpctest.HandlerFunc(func(_ context.Context, p *rpctest.Peer) {
		if _, err := p.ReadFrame(); err != nil {
			return
		}

		ready, _ := discordrpc.Encode(discordrpc.OpFrame, rpctest.ReadyMessage(discordrpc.User{ID: "42"}))
		for _, chunk := range [][]byte{ready[:3], ready[3:11], ready[11:]} {
			_ = p.WriteRaw(chunk)
			time.Sleep(10 * time.Millisecond)
		}

		for {
			f, err := p.ReadFrame()
			if err != nil || f.Opcode == discordrpc.OpClose {
				return
			}
		}
	}))

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))
	assert.Equal(t, "42", c.User().ID)
}

func TestIPC_PeerCloseDuringConnect(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, rpctest.HandlerFunc(func(_ context.Context, p *rpctest.Peer) {
		if _, err := p.ReadFrame(); err != nil {
			return
		}
		_ = p.WriteFrame(discordrpc.OpClose, map[string]any{"code": 4000, "message": "Invalid Client ID"})
	}))

	c := newIPCClient(t)
	err := c.Connect(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, discordrpc.ErrConnectionClosed))

	var ce *discordrpc.CloseError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4000, ce.Code)
	assert.Equal(t, "Invalid Client ID", ce.Reason)
}

func TestIPC_ConnectTimeout(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, &rpctest.Discord{SkipReady: true})

	c := newIPCClient(t, discordrpc.ConnectTimeoutOption(100*time.Millisecond))
	err := c.Connect(context.Background(), "123")
	assert.True(t, errors.Is(err, discordrpc.ErrConnectionTimeout))
}

func TestIPC_DestroyRejectsPending(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, &rpctest.Discord{
		Responder: func(*discordrpc.Message) *discordrpc.Message { return nil },
	})

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), discordrpc.CmdGetGuilds, nil, "")
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Destroy(ctx))
	assert.Equal(t, discordrpc.StateClosed, c.State())

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, discordrpc.ErrConnectionClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("pending request was not rejected")
	}

	err := c.Connect(context.Background(), "123")
	assert.True(t, errors.Is(err, discordrpc.ErrConnectionClosed))
}

func TestIPC_Subscription(t *testing.T) {
	dir := ipcDir(t)
	discord := &rpctest.Discord{}
	serveIPC(t, dir, 0, discord)

	c := newIPCClient(t)
	require.NoError(t, c.Connect(context.Background(), "123"))

	got := make(chan json.RawMessage, 1)
	_, err := c.Subscribe(context.Background(), discordrpc.EventVoiceStateUpdate, map[string]string{"channel_id": "7"}, func(data json.RawMessage) {
		got <- data
	})
	require.NoError(t, err)

	require.NoError(t, discord.Dispatch(discordrpc.EventVoiceStateUpdate, map[string]any{"channel_id": "8"}))
	require.NoError(t, discord.Dispatch(discordrpc.EventVoiceStateUpdate, map[string]any{"channel_id": "7", "mute": true}))

	select {
	case data := <-got:
		assert.JSONEq(t, `{"channel_id":"7","mute":true}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch not delivered")
	}
}

func TestIPC_EndpointDiscoveryAfterAuthorize(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, &rpctest.Discord{
		Responder: func(req *discordrpc.Message) *discordrpc.Message {
			return rpctest.Reply(req, map[string]string{"code": "c"})
		},
	})

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()
	local := httptest.NewServer(http.NotFoundHandler())
	defer local.Close()

	c := newIPCClient(t, discordrpc.EndpointProbeOption(func(try int) string {
		if try < 2 {
			return alive.URL
		}
		return local.URL
	}))
	require.NoError(t, c.Connect(context.Background(), "123"))
	assert.Equal(t, "https://discord.com/api", c.Endpoint())

	_, err := c.Request(context.Background(), discordrpc.CmdAuthorize, map[string]any{"client_id": "123", "scopes": []string{"rpc"}}, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Endpoint() == local.URL
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIPC_MalformedFrameReportsSocketError(t *testing.T) {
	dir := ipcDir(t)
	serveIPC(t, dir, 0, rpctest.HandlerFunc(func(ctx context.Context, p *rpctest.Peer) {
		if _, err := p.ReadFrame(); err != nil {
			return
		}
		if err := p.WriteMessage(rpctest.ReadyMessage(rpctest.DefaultUser)); err != nil {
			return
		}
		// wait for the client's PING so READY is handled first
		if _, err := p.ReadFrame(); err != nil {
			return
		}
		if err := p.WriteRaw(discordrpc.EncodeRaw(discordrpc.OpFrame, []byte("{not json"))); err != nil {
			return
		}
		_, _ = p.ReadFrame()
	}))

	errs := make(chan error, 1)
	c := newIPCClient(t, discordrpc.ErrorHandlerOption(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	require.NoError(t, c.Connect(context.Background(), "123"))
	require.NoError(t, c.Ping())

	select {
	case err := <-errs:
		assert.True(t, errors.Is(err, discordrpc.ErrSocket), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no socket error reported")
	}
	assert.Eventually(t, func() bool {
		return c.State() != discordrpc.StateReady
	}, time.Second, 10*time.Millisecond)
}
