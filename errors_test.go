package discordrpc

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCloseError(t *testing.T) {
	err := error(&CloseError{Code: 4000, Reason: "Invalid Client ID"})

	assert.Equal(t, "4000: Invalid Client ID. connection closed", err.Error())
	assert.True(t, errors.Is(err, ErrConnectionClosed))
	assert.True(t, errors.Is(errors.Wrap(err, "connect"), ErrConnectionClosed))
	assert.False(t, errors.Is(err, ErrMessage))
}

func TestRPCError(t *testing.T) {
	err := error(newRPCError(json.RawMessage(`{"code":1,"message":"bad"}`)))

	assert.True(t, errors.Is(err, ErrMessage))
	assert.Equal(t, "rpc error 1: bad", err.Error())

	var rpcErr *RPCError
	assert.True(t, errors.As(err, &rpcErr))
	assert.JSONEq(t, `{"code":1,"message":"bad"}`, string(rpcErr.Data))
}

func TestRPCError_UndecodableData(t *testing.T) {
	e := newRPCError(json.RawMessage(`"just a string"`))
	assert.Equal(t, 0, e.Code)
	assert.Equal(t, "", e.Message)
	assert.True(t, errors.Is(e, ErrMessage))
}

func TestFetchError(t *testing.T) {
	err := error(&FetchError{Status: 429})

	assert.True(t, errors.Is(err, ErrFetch))
	assert.Equal(t, "http fetch failed with status: 429", err.Error())
}
