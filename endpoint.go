package discordrpc

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	// localPortBase is the first port of the local Discord RPC server range.
	localPortBase = 6463
	// localPortRange is the number of ports the local server may bind.
	localPortRange = 10
	// endpointSearchLimit is the number of REST endpoint probes before giving up.
	endpointSearchLimit = 30
	// probeTimeout bounds a single endpoint probe.
	probeTimeout = 2 * time.Second
)

// defaultEndpointURL returns the candidate REST endpoint for probe number try.
func defaultEndpointURL(try int) string {
	return "http://127.0.0.1:" + strconv.Itoa(localPortBase+try%localPortRange)
}

// discoverEndpoint probes candidate endpoints in order and returns the first
// one answering 404 to a GET of its root, which is how the local Discord
// HTTP server identifies itself.
func discoverEndpoint(ctx context.Context, client *http.Client, candidate func(int) string, limit int) (string, error) {
	if candidate == nil {
		candidate = defaultEndpointURL
	}

	for try := 0; try < limit; try++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(ErrMissingEndpoint, err.Error())
		}

		endpoint := candidate(try)
		if probeEndpoint(ctx, client, endpoint) {
			return endpoint, nil
		}
	}
	return "", errors.Wrapf(ErrMissingEndpoint, "after %d attempts", limit)
}

func probeEndpoint(ctx context.Context, client *http.Client, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusNotFound
}
