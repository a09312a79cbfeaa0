package discordrpc

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Typed errors below report their kind through Is, so callers
// can always test with errors.Is(err, ErrConnectionClosed) and friends.
var (
	// ErrConnectionFailed is returned when no transport endpoint accepted a connection.
	ErrConnectionFailed = errors.New("could not connect to rpc")
	// ErrConnectionTimeout is returned when READY is not received before the connect deadline.
	ErrConnectionTimeout = errors.New("connection timed out")
	// ErrConnectionClosed is returned for calls that were pending when the transport closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrInvalidTransport is returned when the requested transport name is not registered.
	ErrInvalidTransport = errors.New("invalid transport")
	// ErrMessage is the kind of error responses sent by the peer.
	ErrMessage = errors.New("rpc error response")
	// ErrTimestamp is returned when an activity timestamp does not fit a unix timestamp.
	ErrTimestamp = errors.New("timestamp out of range")
	// ErrMissingEndpoint is returned when REST endpoint discovery runs out of attempts.
	ErrMissingEndpoint = errors.New("could not find endpoint")
	// ErrFetch is the kind of non-2xx REST responses.
	ErrFetch = errors.New("fetch failed")
	// ErrSocket is reported to the error handler when a connection fails with an I/O error.
	ErrSocket = errors.New("socket error")
)

// Framing errors.
var (
	// ErrMessageTooLarge is returned when a frame header announces a payload
	// larger than the configured maximum.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrMalformedFrame is returned when a complete payload is not valid JSON
	// or the header is invalid.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrNotConnected is returned when sending on a transport that is not open.
	ErrNotConnected = errors.New("transport not connected")
)

// RPCError is an error response from the peer: a message whose evt is the
// error sentinel, carrying the remote code and message.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"-"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is reports whether target is ErrMessage.
func (e *RPCError) Is(target error) bool {
	return target == ErrMessage
}

// CloseError describes why a transport closed.
type CloseError struct {
	Code   int    `json:"code"`
	Reason string `json:"message"`
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("%d: %s. connection closed", e.Code, e.Reason)
}

// Is reports whether target is ErrConnectionClosed.
func (e *CloseError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// FetchError is a non-2xx response from the REST endpoint.
type FetchError struct {
	Status int
	Body   json.RawMessage
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("http fetch failed with status: %d", e.Status)
}

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// newRPCError builds an RPCError from the data of an error response.
func newRPCError(data json.RawMessage) *RPCError {
	e := &RPCError{Data: data}
	if len(data) > 0 {
		_ = json.Unmarshal(data, e)
	}
	return e
}
