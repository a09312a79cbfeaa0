package discordrpc

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// maxTimestamp is the largest activity timestamp Discord accepts, in milliseconds.
const maxTimestamp = 2147483647000

// ActivityType is the verb shown in front of an activity.
type ActivityType int

const (
	ActivityPlaying ActivityType = iota
	ActivityStreaming
	ActivityListening
	ActivityWatching
	ActivityCustom
	ActivityCompeting
)

// Button is a link shown under an activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Activity is the rich presence shown on the user's profile. Zero fields are
// left out of the request.
type Activity struct {
	State   string
	Details string
	Type    ActivityType

	StartTimestamp time.Time
	EndTimestamp   time.Time

	LargeImageKey  string
	LargeImageText string
	SmallImageKey  string
	SmallImageText string

	PartyID   string
	PartySize int
	PartyMax  int

	MatchSecret    string
	JoinSecret     string
	SpectateSecret string

	Buttons  []Button
	Instance bool
}

type activityTimestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type activityAssets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type activityParty struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"`
}

type activitySecrets struct {
	Match    string `json:"match,omitempty"`
	Join     string `json:"join,omitempty"`
	Spectate string `json:"spectate,omitempty"`
}

type activityPayload struct {
	State      string              `json:"state,omitempty"`
	Details    string              `json:"details,omitempty"`
	Type       ActivityType        `json:"type"`
	Timestamps *activityTimestamps `json:"timestamps,omitempty"`
	Assets     *activityAssets     `json:"assets,omitempty"`
	Party      *activityParty      `json:"party,omitempty"`
	Secrets    *activitySecrets    `json:"secrets,omitempty"`
	Buttons    []Button            `json:"buttons,omitempty"`
	Instance   bool                `json:"instance"`
}

type setActivityArgs struct {
	PID      int              `json:"pid"`
	Activity *activityPayload `json:"activity,omitempty"`
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// payload converts a to its wire form. It fails with ErrTimestamp when a
// timestamp is past the largest value Discord accepts.
func (a Activity) payload() (*activityPayload, error) {
	p := &activityPayload{
		State:    a.State,
		Details:  a.Details,
		Type:     a.Type,
		Buttons:  a.Buttons,
		Instance: a.Instance,
	}

	if !a.StartTimestamp.IsZero() || !a.EndTimestamp.IsZero() {
		ts := &activityTimestamps{Start: unixMilli(a.StartTimestamp), End: unixMilli(a.EndTimestamp)}
		if ts.Start > maxTimestamp {
			return nil, errors.Wrap(ErrTimestamp, "timestamps.start")
		}
		if ts.End > maxTimestamp {
			return nil, errors.Wrap(ErrTimestamp, "timestamps.end")
		}
		p.Timestamps = ts
	}

	if a.LargeImageKey != "" || a.LargeImageText != "" || a.SmallImageKey != "" || a.SmallImageText != "" {
		p.Assets = &activityAssets{
			LargeImage: a.LargeImageKey,
			LargeText:  a.LargeImageText,
			SmallImage: a.SmallImageKey,
			SmallText:  a.SmallImageText,
		}
	}

	if a.PartyID != "" || a.PartySize != 0 || a.PartyMax != 0 {
		p.Party = &activityParty{ID: a.PartyID}
		if a.PartySize != 0 || a.PartyMax != 0 {
			p.Party.Size = []int{a.PartySize, a.PartyMax}
		}
	}

	if a.MatchSecret != "" || a.JoinSecret != "" || a.SpectateSecret != "" {
		p.Secrets = &activitySecrets{
			Match:    a.MatchSecret,
			Join:     a.JoinSecret,
			Spectate: a.SpectateSecret,
		}
	}

	return p, nil
}

// SetActivity sets the rich presence of process pid, or of the current
// process when pid is 0. Out-of-range timestamps fail before anything is sent.
func (c *Client) SetActivity(ctx context.Context, a Activity, pid int) (json.RawMessage, error) {
	p, err := a.payload()
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, CmdSetActivity, setActivityArgs{PID: pidOrSelf(pid), Activity: p}, "")
}

// ClearActivity removes the rich presence of process pid, or of the current
// process when pid is 0.
func (c *Client) ClearActivity(ctx context.Context, pid int) error {
	return c.request(ctx, CmdSetActivity, setActivityArgs{PID: pidOrSelf(pid)}, nil)
}

// SendJoinInvite accepts the join request of userID.
func (c *Client) SendJoinInvite(ctx context.Context, userID string) error {
	return c.request(ctx, CmdSendActivityJoinInvite, userArgs{UserID: userID}, nil)
}

// SendJoinRequest asks userID to let the current user join.
func (c *Client) SendJoinRequest(ctx context.Context, userID string) error {
	return c.request(ctx, CmdSendActivityJoinRequest, userArgs{UserID: userID}, nil)
}

// CloseJoinRequest rejects the join request of userID.
func (c *Client) CloseJoinRequest(ctx context.Context, userID string) error {
	return c.request(ctx, CmdCloseActivityJoinRequest, userArgs{UserID: userID}, nil)
}

type userArgs struct {
	UserID string `json:"user_id"`
}

func pidOrSelf(pid int) int {
	if pid == 0 {
		return os.Getpid()
	}
	return pid
}
