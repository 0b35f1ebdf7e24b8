package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlite/coap-light/pkg/client"
	"github.com/gridlite/coap-light/pkg/device"
	"github.com/gridlite/coap-light/pkg/message"
	"github.com/gridlite/coap-light/pkg/router"
	"github.com/gridlite/coap-light/pkg/transport"
)

// End-to-end over an in-memory pair: a client session drives the bridge
// protocol against the server loop. The server exposes the local light under
// the bridge's resource numbering so the client builders can be exercised
// unchanged.
func TestClientServerRoundTrip(t *testing.T) {
	light := device.NewLight()
	r := router.New()

	require.NoError(t, r.Register(client.ToggleLightPath, message.PUT,
		func(_ []byte) (message.Code, []byte) {
			light.Toggle()
			return message.Changed, nil
		}))
	require.NoError(t, r.Register(client.OnOffStatePath, message.GET,
		func(_ []byte) (message.Code, []byte) {
			if light.On() {
				return message.Content, []byte("1")
			}
			return message.Content, []byte("0")
		}))

	serverConn, clientConn := transport.NewPipe()
	srv := New(serverConn, r, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	session := client.NewSession(clientConn,
		client.WithPollInterval(time.Millisecond),
		client.WithTimeout(time.Second))
	defer session.Close()

	awaitCtx, awaitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer awaitCancel()

	// Toggle: the light flips on and the PUT is acknowledged.
	require.NoError(t, session.PutToggle())
	reply, err := session.Await(awaitCtx)
	require.NoError(t, err)
	assert.Equal(t, message.Changed, reply.Code)
	assert.Equal(t, message.Acknowledgement, reply.Type)
	assert.True(t, light.On())

	// Read back the state through the wire.
	require.NoError(t, session.GetOnOff())
	reply, err = session.Await(awaitCtx)
	require.NoError(t, err)
	assert.Equal(t, message.Content, reply.Code)
	assert.Equal(t, []byte("1"), reply.Payload)

	// Toggle again and observe the flip.
	require.NoError(t, session.PutToggle())
	reply, err = session.Await(awaitCtx)
	require.NoError(t, err)
	assert.Equal(t, message.Changed, reply.Code)
	assert.False(t, light.On())
}

func TestRequestToUnknownResource(t *testing.T) {
	r := router.New()
	serverConn, clientConn := transport.NewPipe()
	srv := New(serverConn, r, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	session := client.NewSession(clientConn,
		client.WithPollInterval(time.Millisecond),
		client.WithTimeout(time.Second))
	defer session.Close()

	require.NoError(t, session.PutOnTime(20))

	awaitCtx, awaitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer awaitCancel()

	reply, err := session.Await(awaitCtx)
	require.NoError(t, err)
	assert.Equal(t, message.NotFound, reply.Code)
}
