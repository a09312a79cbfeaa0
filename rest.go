package discordrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// fetch performs a REST call against the current endpoint. form, when not
// nil, is sent as an urlencoded body. Non-2xx responses return *FetchError.
func (c *Client) fetch(ctx context.Context, method, path string, form url.Values, query url.Values) (json.RawMessage, error) {
	target := c.Endpoint() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.opts.maxPayload)))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if !json.Valid(raw) {
			raw, _ = json.Marshal(string(raw))
		}
		c.logger.Debug("fetch failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &FetchError{Status: resp.StatusCode, Body: raw}
	}
	return raw, nil
}
