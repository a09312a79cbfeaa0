package discordrpc

import "context"

// LobbyType controls who may join a lobby.
type LobbyType int

const (
	LobbyPrivate LobbyType = iota + 1
	LobbyPublic
)

// Lobby is a lobby as returned by CREATE_LOBBY and CONNECT_TO_LOBBY.
type Lobby struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"application_id,omitempty"`
	OwnerID       string            `json:"owner_id,omitempty"`
	Secret        string            `json:"secret,omitempty"`
	Type          LobbyType         `json:"type"`
	Capacity      int               `json:"capacity"`
	Locked        bool              `json:"locked,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// LobbyUpdate holds the fields changed by UpdateLobby. Zero fields are kept.
type LobbyUpdate struct {
	Type     LobbyType
	OwnerID  string
	Capacity int
	Metadata map[string]string
}

type lobbyArgs struct {
	ID       string            `json:"id,omitempty"`
	Type     LobbyType         `json:"type,omitempty"`
	OwnerID  string            `json:"owner_id,omitempty"`
	Capacity int               `json:"capacity,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Secret   string            `json:"secret,omitempty"`
	Data     any               `json:"data,omitempty"`
}

// CreateLobby creates a lobby owned by the current user.
func (c *Client) CreateLobby(ctx context.Context, typ LobbyType, capacity int, metadata map[string]string) (*Lobby, error) {
	var l Lobby
	if err := c.request(ctx, CmdCreateLobby, lobbyArgs{Type: typ, Capacity: capacity, Metadata: metadata}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLobby changes the settings of a lobby.
func (c *Client) UpdateLobby(ctx context.Context, id string, u LobbyUpdate) error {
	return c.request(ctx, CmdUpdateLobby, lobbyArgs{
		ID:       id,
		Type:     u.Type,
		OwnerID:  u.OwnerID,
		Capacity: u.Capacity,
		Metadata: u.Metadata,
	}, nil)
}

// DeleteLobby deletes a lobby.
func (c *Client) DeleteLobby(ctx context.Context, id string) error {
	return c.request(ctx, CmdDeleteLobby, lobbyArgs{ID: id}, nil)
}

// ConnectToLobby joins a lobby with its secret.
func (c *Client) ConnectToLobby(ctx context.Context, id, secret string) (*Lobby, error) {
	var l Lobby
	if err := c.request(ctx, CmdConnectToLobby, lobbyArgs{ID: id, Secret: secret}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SendToLobby broadcasts data to the members of a lobby.
func (c *Client) SendToLobby(ctx context.Context, id string, data any) error {
	return c.request(ctx, CmdSendToLobby, lobbyArgs{ID: id, Data: data}, nil)
}

// DisconnectFromLobby leaves a lobby.
func (c *Client) DisconnectFromLobby(ctx context.Context, id string) error {
	return c.request(ctx, CmdDisconnectFromLobby, lobbyArgs{ID: id}, nil)
}

// UpdateLobbyMember sets the metadata of a lobby member.
func (c *Client) UpdateLobbyMember(ctx context.Context, lobbyID, userID string, metadata map[string]string) error {
	return c.request(ctx, CmdUpdateLobbyMember, struct {
		LobbyID  string            `json:"lobby_id"`
		UserID   string            `json:"user_id"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}{lobbyID, userID, metadata}, nil)
}
