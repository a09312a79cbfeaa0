package discordrpc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// AudioDevice is an input or output device known to the Discord client.
type AudioDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoiceIO is the input or output part of the voice settings.
type VoiceIO struct {
	AvailableDevices []AudioDevice `json:"available_devices,omitempty"`
	DeviceID         string        `json:"device_id,omitempty"`
	Volume           *float64      `json:"volume,omitempty"`
}

// ShortcutKey is a single key of a keyboard shortcut.
type ShortcutKey struct {
	Type int    `json:"type"`
	Code int    `json:"code"`
	Name string `json:"name"`
}

// VoiceMode is the voice activation mode.
type VoiceMode struct {
	Type          string        `json:"type,omitempty"`
	AutoThreshold *bool         `json:"auto_threshold,omitempty"`
	Threshold     *float64      `json:"threshold,omitempty"`
	Shortcut      []ShortcutKey `json:"shortcut,omitempty"`
	Delay         *float64      `json:"delay,omitempty"`
}

// VoiceSettings are the voice settings of the user. Nil fields are left
// unchanged by SetVoiceSettings.
type VoiceSettings struct {
	AutomaticGainControl *bool      `json:"automatic_gain_control,omitempty"`
	EchoCancellation     *bool      `json:"echo_cancellation,omitempty"`
	NoiseSuppression     *bool      `json:"noise_suppression,omitempty"`
	QoS                  *bool      `json:"qos,omitempty"`
	SilenceWarning       *bool      `json:"silence_warning,omitempty"`
	Deaf                 *bool      `json:"deaf,omitempty"`
	Mute                 *bool      `json:"mute,omitempty"`
	Input                *VoiceIO   `json:"input,omitempty"`
	Output               *VoiceIO   `json:"output,omitempty"`
	Mode                 *VoiceMode `json:"mode,omitempty"`
}

// Pan is the stereo position of a user.
type Pan struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// UserVoiceSettings are the local voice settings applied to another user.
type UserVoiceSettings struct {
	UserID string `json:"user_id"`
	Pan    *Pan   `json:"pan,omitempty"`
	Volume *int   `json:"volume,omitempty"`
	Mute   *bool  `json:"mute,omitempty"`
}

// CertifiedDevice describes a hardware device certified for Discord.
type CertifiedDevice struct {
	Type                 string   `json:"type"`
	ID                   string   `json:"id"`
	Vendor               Vendor   `json:"vendor"`
	Model                Model    `json:"model"`
	Related              []string `json:"related"`
	EchoCancellation     bool     `json:"echo_cancellation,omitempty"`
	NoiseSuppression     bool     `json:"noise_suppression,omitempty"`
	AutomaticGainControl bool     `json:"automatic_gain_control,omitempty"`
	HardwareMute         bool     `json:"hardware_mute,omitempty"`
}

// Vendor is the manufacturer of a certified device.
type Vendor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Model is the model of a certified device.
type Model struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// GetVoiceSettings returns the voice settings of the user.
func (c *Client) GetVoiceSettings(ctx context.Context) (*VoiceSettings, error) {
	var s VoiceSettings
	if err := c.request(ctx, CmdGetVoiceSettings, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetVoiceSettings changes the non-nil fields of s and returns the result.
func (c *Client) SetVoiceSettings(ctx context.Context, s VoiceSettings) (*VoiceSettings, error) {
	var out VoiceSettings
	if err := c.request(ctx, CmdSetVoiceSettings, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserVoiceSettings changes how another user sounds locally.
func (c *Client) SetUserVoiceSettings(ctx context.Context, s UserVoiceSettings) (*UserVoiceSettings, error) {
	var out UserVoiceSettings
	if err := c.request(ctx, CmdSetUserVoiceSettings, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetCertifiedDevices reports the certified devices present on the system.
func (c *Client) SetCertifiedDevices(ctx context.Context, devices []CertifiedDevice) error {
	if devices == nil {
		devices = []CertifiedDevice{}
	}
	return c.request(ctx, CmdSetCertifiedDevices, map[string]any{"devices": devices}, nil)
}

// CaptureShortcut starts capturing a keyboard shortcut. cb receives every
// change of the captured keys until the returned stop function is called.
func (c *Client) CaptureShortcut(ctx context.Context, cb func(shortcut []ShortcutKey)) (stop func(context.Context) error, err error) {
	sub, err := c.addSubscription(EventCaptureShortcutChange, nil, func(data json.RawMessage) {
		var change struct {
			Shortcut []ShortcutKey `json:"shortcut"`
		}
		if err := json.Unmarshal(data, &change); err != nil {
			c.logger.Warn("malformed shortcut change", "error", err)
			return
		}
		cb(change.Shortcut)
	})
	if err != nil {
		return nil, err
	}

	stop = func(ctx context.Context) error {
		c.removeSubscription(sub)
		return c.request(ctx, CmdCaptureShortcut, map[string]string{"action": "STOP"}, nil)
	}

	if err := c.request(ctx, CmdCaptureShortcut, map[string]string{"action": "START"}, nil); err != nil {
		c.removeSubscription(sub)
		return nil, errors.Wrap(err, "start shortcut capture")
	}
	return stop, nil
}
