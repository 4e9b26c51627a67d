package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KosmosisDire/LCMware/adapters/inmemory"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/service"
)

func TestServerLifecycle(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	srv, err := service.NewServer(node, addChannel, func(_ context.Context, req addRequest) (addResponse, error) {
		return addResponse{Sum: req.A + req.B}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, addChannel, srv.Channel())

	require.NoError(t, srv.Start())
	assert.ErrorIs(t, srv.Start(), lcmerr.ErrAlreadyStarted)

	cli, err := service.NewClient[addRequest, addResponse](node, addChannel)
	require.NoError(t, err)

	rsp, err := cli.Call(t.Context(), addRequest{A: 1, B: 1}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, rsp.Sum)

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close(), "close must be idempotent")

	// stopped server means nobody answers
	_, err = cli.Call(t.Context(), addRequest{A: 1, B: 1}, 60*time.Millisecond)
	assert.ErrorIs(t, err, lcmerr.ErrTimeout)

	// and a restart brings it back
	require.NoError(t, srv.Start())
	rsp, err = cli.Call(t.Context(), addRequest{A: 2, B: 2}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, rsp.Sum)
	require.NoError(t, srv.Close())
}

func TestNewServerValidation(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)

	handler := func(_ context.Context, _ addRequest) (addResponse, error) {
		return addResponse{}, nil
	}

	_, err := service.NewServer(nil, addChannel, handler)
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)

	_, err = service.NewServer(node, "bad channel", handler)
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)

	_, err = service.NewServer[addRequest, addResponse](node, addChannel, nil)
	assert.ErrorIs(t, err, lcmerr.ErrInvalidArgument)
}

func TestRequestWithoutIDIgnored(t *testing.T) {
	tr := inmemory.New()
	node := newNode(t, tr)
	startAddServer(t, node)

	// a hand-rolled request with no correlation id must not be answered
	err := node.Publish(t.Context(), addChannel+"/req", map[string]any{
		"header":  map[string]any{"timestamp_micros": 0, "id": ""},
		"payload": map[string]any{"a": 1, "b": 2},
	})
	require.NoError(t, err)

	// the server stays healthy for well-formed traffic
	cli, err := service.NewClient[addRequest, addResponse](node, addChannel)
	require.NoError(t, err)
	rsp, err := cli.Call(t.Context(), addRequest{A: 5, B: 6}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 11, rsp.Sum)
}
