package discordrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActivity_TimestampOutOfRange(t *testing.T) {
	c, ft := connectedClient(t)

	_, err := c.SetActivity(context.Background(), Activity{
		State:          "in a match",
		StartTimestamp: time.UnixMilli(maxTimestamp + 1),
	}, 0)
	assert.True(t, errors.Is(err, ErrTimestamp))

	_, err = c.SetActivity(context.Background(), Activity{
		EndTimestamp: time.UnixMilli(maxTimestamp + 1000),
	}, 0)
	assert.True(t, errors.Is(err, ErrTimestamp))

	assert.Len(t, ft.sent, 0)
}

func TestSetActivity_Payload(t *testing.T) {
	c, ft := connectedClient(t)

	var req *Message
	ft.serve(t, func(m *Message) *Message {
		req = m
		return reply(m, `{}`)
	})

	start := time.UnixMilli(1700000000000)
	_, err := c.SetActivity(context.Background(), Activity{
		State:          "in a match",
		Details:        "ranked",
		StartTimestamp: start,
		LargeImageKey:  "map",
		PartyID:        "p1",
		PartySize:      2,
		PartyMax:       4,
		JoinSecret:     "s",
		Buttons:        []Button{{Label: "Watch", URL: "https://example.com"}},
	}, 0)
	require.NoError(t, err)

	require.NotNil(t, req)
	assert.Equal(t, CmdSetActivity, req.Cmd)
	assert.JSONEq(t, `{
		"pid": `+strconv.Itoa(os.Getpid())+`,
		"activity": {
			"state": "in a match",
			"details": "ranked",
			"type": 0,
			"timestamps": {"start": 1700000000000},
			"assets": {"large_image": "map"},
			"party": {"id": "p1", "size": [2, 4]},
			"secrets": {"join": "s"},
			"buttons": [{"label": "Watch", "url": "https://example.com"}],
			"instance": false
		}
	}`, argsJSON(t, req))
}

func TestClearActivity(t *testing.T) {
	c, ft := connectedClient(t)

	var req *Message
	ft.serve(t, func(m *Message) *Message {
		req = m
		return reply(m, `{}`)
	})

	require.NoError(t, c.ClearActivity(context.Background(), 42))
	assert.JSONEq(t, `{"pid":42}`, argsJSON(t, req))
}

func TestJoinRequests(t *testing.T) {
	c, ft := connectedClient(t)

	reqs := make(chan *Message, 3)
	ft.serve(t, func(m *Message) *Message {
		reqs <- m
		return reply(m, `{}`)
	})

	ctx := context.Background()
	require.NoError(t, c.SendJoinInvite(ctx, "u1"))
	require.NoError(t, c.SendJoinRequest(ctx, "u2"))
	require.NoError(t, c.CloseJoinRequest(ctx, "u3"))

	for i, cmd := range []string{CmdSendActivityJoinInvite, CmdSendActivityJoinRequest, CmdCloseActivityJoinRequest} {
		m := <-reqs
		assert.Equal(t, cmd, m.Cmd)
		assert.JSONEq(t, `{"user_id":"u`+strconv.Itoa(i+1)+`"}`, argsJSON(t, m))
	}
}

func TestGuildsAndChannels(t *testing.T) {
	c, ft := connectedClient(t)

	var last *Message
	ft.serve(t, func(m *Message) *Message {
		last = m
		switch m.Cmd {
		case CmdGetGuild:
			return reply(m, `{"id":"g1","name":"Guild","members":[]}`)
		case CmdGetGuilds:
			return reply(m, `{"guilds":[{"id":"g1","name":"Guild"},{"id":"g2","name":"Other"}]}`)
		case CmdGetChannels:
			return reply(m, `{"channels":[{"id":"c1","name":"general","type":0}]}`)
		default:
			return reply(m, `{"id":"c1","name":"general","type":2}`)
		}
	})

	ctx := context.Background()

	g, err := c.GetGuild(ctx, "g1", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Guild", g.Name)
	assert.JSONEq(t, `{"guild_id":"g1","timeout":5}`, argsJSON(t, last))

	guilds, err := c.GetGuilds(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, guilds, 2)
	assert.JSONEq(t, `{}`, argsJSON(t, last))

	channels, err := c.GetChannels(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].Name)

	ch, err := c.SelectVoiceChannel(ctx, "c1", 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Type)
	assert.JSONEq(t, `{"channel_id":"c1","force":true}`, argsJSON(t, last))

	_, err = c.SelectTextChannel(ctx, "c1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, CmdSelectTextChannel, last.Cmd)
}

func TestGetRelationships(t *testing.T) {
	c, ft := connectedClient(t)
	ft.serve(t, func(m *Message) *Message {
		return reply(m, `{"relationships":[
			{"type":1,"user":{"id":"2","username":"friend"}},
			{"type":2,"user":{"id":"3","username":"blocked"}},
			{"type":42,"user":{"id":"4","username":"odd"}}
		]}`)
	})

	rels, err := c.GetRelationships(context.Background())
	require.NoError(t, err)
	require.Len(t, rels, 3)
	assert.Equal(t, "FRIEND", rels[0].Type)
	assert.Equal(t, "BLOCKED", rels[1].Type)
	assert.Equal(t, "UNKNOWN", rels[2].Type)
	assert.Equal(t, "friend", rels[0].User.Username)
}

func TestVoiceSettings(t *testing.T) {
	c, ft := connectedClient(t)

	var last *Message
	ft.serve(t, func(m *Message) *Message {
		last = m
		return reply(m, `{"deaf":false,"mute":true,"input":{"device_id":"default","volume":50,"available_devices":[{"id":"default","name":"Default"}]}}`)
	})

	ctx := context.Background()
	s, err := c.GetVoiceSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Mute)
	assert.True(t, *s.Mute)
	require.NotNil(t, s.Input)
	assert.Equal(t, "default", s.Input.DeviceID)
	assert.Len(t, s.Input.AvailableDevices, 1)

	mute := false
	_, err = c.SetVoiceSettings(ctx, VoiceSettings{Mute: &mute})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mute":false}`, argsJSON(t, last))

	volume := 80
	_, err = c.SetUserVoiceSettings(ctx, UserVoiceSettings{UserID: "2", Volume: &volume})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"2","volume":80}`, argsJSON(t, last))

	require.NoError(t, c.SetCertifiedDevices(ctx, nil))
	assert.JSONEq(t, `{"devices":[]}`, argsJSON(t, last))
}

func TestCaptureShortcut(t *testing.T) {
	c, ft := connectedClient(t)

	actions := make(chan string, 2)
	ft.serve(t, func(m *Message) *Message {
		var args struct {
			Action string `json:"action"`
		}
		b, _ := json.Marshal(m.Args)
		_ = json.Unmarshal(b, &args)
		actions <- args.Action
		return reply(m, `null`)
	})

	keys := make(chan []ShortcutKey, 1)
	stop, err := c.CaptureShortcut(context.Background(), func(shortcut []ShortcutKey) {
		keys <- shortcut
	})
	require.NoError(t, err)
	assert.Equal(t, "START", <-actions)

	ft.deliver(&Message{Cmd: CmdDispatch, Evt: EventCaptureShortcutChange, Data: json.RawMessage(`{"shortcut":[{"type":0,"code":162,"name":"ctrl"}]}`)})
	got := <-keys
	require.Len(t, got, 1)
	assert.Equal(t, "ctrl", got[0].Name)

	require.NoError(t, stop(context.Background()))
	assert.Equal(t, "STOP", <-actions)

	ft.deliver(&Message{Cmd: CmdDispatch, Evt: EventCaptureShortcutChange, Data: json.RawMessage(`{"shortcut":[]}`)})
	assert.Len(t, keys, 0)
}

func TestLobbies(t *testing.T) {
	c, ft := connectedClient(t)

	var last *Message
	ft.serve(t, func(m *Message) *Message {
		last = m
		return reply(m, `{"id":"l1","type":1,"capacity":4,"secret":"x"}`)
	})

	ctx := context.Background()
	l, err := c.CreateLobby(ctx, LobbyPrivate, 4, map[string]string{"mode": "duo"})
	require.NoError(t, err)
	assert.Equal(t, "l1", l.ID)
	assert.JSONEq(t, `{"type":1,"capacity":4,"metadata":{"mode":"duo"}}`, argsJSON(t, last))

	require.NoError(t, c.UpdateLobby(ctx, "l1", LobbyUpdate{OwnerID: "2", Capacity: 8}))
	assert.JSONEq(t, `{"id":"l1","owner_id":"2","capacity":8}`, argsJSON(t, last))

	_, err = c.ConnectToLobby(ctx, "l1", "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"l1","secret":"x"}`, argsJSON(t, last))

	require.NoError(t, c.SendToLobby(ctx, "l1", map[string]int{"score": 3}))
	assert.JSONEq(t, `{"id":"l1","data":{"score":3}}`, argsJSON(t, last))

	require.NoError(t, c.UpdateLobbyMember(ctx, "l1", "2", nil))
	assert.JSONEq(t, `{"lobby_id":"l1","user_id":"2"}`, argsJSON(t, last))

	require.NoError(t, c.DisconnectFromLobby(ctx, "l1"))
	assert.Equal(t, CmdDisconnectFromLobby, last.Cmd)

	require.NoError(t, c.DeleteLobby(ctx, "l1"))
	assert.Equal(t, CmdDeleteLobby, last.Cmd)
}

func TestLogin_Authorize(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.URL.Path {
		case "/oauth2/token/rpc":
			_, _ = w.Write([]byte(`{"rpc_token":"rpc-tok"}`))
		case "/oauth2/token":
			if r.PostForm.Get("code") != "the-code" || r.PostForm.Get("grant_type") != "authorization_code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer api.Close()

	c, ft := newTestClient(t, APIEndpointOption(api.URL))

	var authorizeArgs string
	ft.serve(t, func(m *Message) *Message {
		switch m.Cmd {
		case CmdAuthorize:
			b, _ := json.Marshal(m.Args)
			authorizeArgs = string(b)
			return reply(m, `{"code":"the-code"}`)
		case CmdAuthenticate:
			return reply(m, `{"application":{"id":"123","name":"Game"},"user":{"id":"7","username":"player"}}`)
		}
		return nil
	})

	err := c.Login(context.Background(), LoginOptions{
		ClientID:     "123",
		ClientSecret: "secret",
		Scopes:       []string{"rpc", "identify"},
		RPCToken:     true,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"scopes":["rpc","identify"],"client_id":"123","rpc_token":"rpc-tok"}`, authorizeArgs)
	assert.Equal(t, "tok", c.AccessToken())
	require.NotNil(t, c.Application())
	assert.Equal(t, "Game", c.Application().Name)
	assert.Equal(t, "7", c.User().ID)
}

func TestLogin_WithoutScopes(t *testing.T) {
	c, ft := newTestClient(t)

	require.NoError(t, c.Login(context.Background(), LoginOptions{ClientID: "123"}))
	assert.Len(t, ft.sent, 0)
	assert.Equal(t, "", c.AccessToken())
}

func TestFetch_Error(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"401: Unauthorized"}`))
	}))
	defer api.Close()

	c, _ := newTestClient(t, APIEndpointOption(api.URL))
	c.accessToken = "tok"

	_, err := c.fetch(context.Background(), http.MethodGet, "/users/@me", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusUnauthorized, fe.Status)
	assert.JSONEq(t, `{"message":"401: Unauthorized"}`, string(fe.Body))
}
