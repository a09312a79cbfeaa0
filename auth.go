package discordrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// AuthorizeOptions configures the OAuth2 flow run by Authorize.
type AuthorizeOptions struct {
	Scopes       []string
	ClientSecret string
	// RPCToken requests an rpc token from the REST API before authorizing.
	// It requires ClientSecret.
	RPCToken    bool
	RedirectURI string
	Prompt      string
}

// LoginOptions configures Login.
type LoginOptions struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AccessToken skips the authorization flow when set.
	AccessToken string
	RPCToken    bool
	RedirectURI string
	Prompt      string
}

type authorizeArgs struct {
	Scopes   []string `json:"scopes,omitempty"`
	ClientID string   `json:"client_id"`
	Prompt   string   `json:"prompt,omitempty"`
	RPCToken string   `json:"rpc_token,omitempty"`
}

// Login connects and, depending on opts, authenticates. Without scopes or an
// access token it stops after the connection is ready.
func (c *Client) Login(ctx context.Context, opts LoginOptions) error {
	if err := c.Connect(ctx, opts.ClientID); err != nil {
		return err
	}

	token := opts.AccessToken
	if token == "" {
		if len(opts.Scopes) == 0 {
			return nil
		}

		var err error
		token, err = c.Authorize(ctx, AuthorizeOptions{
			Scopes:       opts.Scopes,
			ClientSecret: opts.ClientSecret,
			RPCToken:     opts.RPCToken,
			RedirectURI:  opts.RedirectURI,
			Prompt:       opts.Prompt,
		})
		if err != nil {
			return err
		}
	}

	return c.Authenticate(ctx, token)
}

// Authorize asks the user to authorize the application and exchanges the
// resulting code for an access token.
func (c *Client) Authorize(ctx context.Context, opts AuthorizeOptions) (string, error) {
	clientID := c.ClientID()

	var rpcToken string
	if opts.RPCToken && opts.ClientSecret != "" {
		body, err := c.fetch(ctx, http.MethodPost, "/oauth2/token/rpc", url.Values{
			"client_id":     {clientID},
			"client_secret": {opts.ClientSecret},
		}, nil)
		if err != nil {
			return "", errors.Wrap(err, "rpc token")
		}

		var resp struct {
			RPCToken string `json:"rpc_token"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", errors.Wrap(err, "decode rpc token")
		}
		rpcToken = resp.RPCToken
	}

	var authorized struct {
		Code string `json:"code"`
	}
	if err := c.request(ctx, CmdAuthorize, authorizeArgs{
		Scopes:   opts.Scopes,
		ClientID: clientID,
		Prompt:   opts.Prompt,
		RPCToken: rpcToken,
	}, &authorized); err != nil {
		return "", err
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {opts.ClientSecret},
		"code":          {authorized.Code},
		"grant_type":    {"authorization_code"},
	}
	if opts.RedirectURI != "" {
		form.Set("redirect_uri", opts.RedirectURI)
	}

	body, err := c.fetch(ctx, http.MethodPost, "/oauth2/token", form, nil)
	if err != nil {
		return "", errors.Wrap(err, "exchange code")
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", errors.Wrap(err, "decode access token")
	}
	return token.AccessToken, nil
}

// Authenticate authenticates the connection with an OAuth2 access token and
// records the application and user it belongs to.
func (c *Client) Authenticate(ctx context.Context, accessToken string) error {
	var resp struct {
		Application *Application `json:"application"`
		User        *User        `json:"user"`
	}
	if err := c.request(ctx, CmdAuthenticate, map[string]string{"access_token": accessToken}, &resp); err != nil {
		return errors.Wrap(err, "authenticate")
	}

	c.mu.Lock()
	c.accessToken = accessToken
	c.application = resp.Application
	if resp.User != nil {
		c.user = resp.User
	}
	c.mu.Unlock()

	c.logger.Info("authenticated", "application", appName(resp.Application))
	return nil
}

func appName(a *Application) string {
	if a == nil {
		return ""
	}
	return a.Name
}
