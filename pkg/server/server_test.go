package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlite/coap-light/pkg/device"
	"github.com/gridlite/coap-light/pkg/message"
	"github.com/gridlite/coap-light/pkg/metrics"
	"github.com/gridlite/coap-light/pkg/router"
	"github.com/gridlite/coap-light/pkg/transport"
)

func newTestServer(t *testing.T) (*Server, *device.Light, transport.Conn, *metrics.Counters) {
	t.Helper()
	light := device.NewLight()
	r := router.New()
	require.NoError(t, light.Register(r))

	conn, peer := transport.NewPipe()
	counters := metrics.NewCounters()
	return New(conn, r, WithCounters(counters)), light, peer, counters
}

func sendRequest(t *testing.T, srv *Server, m *message.Message) {
	t.Helper()
	data, err := m.MarshalBinary()
	require.NoError(t, err)
	srv.HandleDatagram(data)
}

func recvResponse(t *testing.T, peer transport.Conn) *message.Message {
	t.Helper()
	buf := make([]byte, message.MaxMessageSize)
	n, ok, err := peer.Recv(buf)
	require.NoError(t, err)
	require.True(t, ok, "expected a response datagram")
	var m message.Message
	require.NoError(t, m.UnmarshalBinary(buf[:n]))
	return &m
}

func TestHandleDatagramGet(t *testing.T) {
	srv, light, peer, _ := newTestServer(t)
	light.Set(true)

	req := &message.Message{
		Type:      message.Confirmable,
		Code:      message.GET,
		MessageID: 0x0042,
		Token:     []byte{0xab, 0xcd},
	}
	req.SetPath(device.StatePath)
	sendRequest(t, srv, req)

	resp := recvResponse(t, peer)
	assert.Equal(t, message.Acknowledgement, resp.Type)
	assert.Equal(t, message.Content, resp.Code)
	assert.Equal(t, uint16(0x0042), resp.MessageID)
	assert.Equal(t, []byte{0xab, 0xcd}, resp.Token)
	assert.Equal(t, []byte("1"), resp.Payload)

	cf, ok := resp.ContentFormat()
	require.True(t, ok)
	assert.Equal(t, message.TextPlain, cf)
}

func TestHandleDatagramNonConfirmable(t *testing.T) {
	srv, _, peer, _ := newTestServer(t)

	req := &message.Message{
		Type:      message.NonConfirmable,
		Code:      message.PUT,
		MessageID: 7,
		Token:     []byte{0x01},
		Payload:   []byte("1"),
	}
	req.SetPath(device.StatePath)
	sendRequest(t, srv, req)

	resp := recvResponse(t, peer)
	assert.Equal(t, message.NonConfirmable, resp.Type)
	assert.Equal(t, message.Changed, resp.Code)
}

func TestHandleDatagramErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		code message.Code
		path []string
		want message.Code
	}{
		{name: "unknown path", code: message.PUT, path: []string{"42769", "0", "99"}, want: message.NotFound},
		{name: "unregistered method", code: message.DELETE, path: device.StatePath, want: message.MethodNotAllowed},
		{name: "invalid payload", code: message.PUT, path: device.StatePath, want: message.BadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, peer, _ := newTestServer(t)

			req := &message.Message{
				Type:      message.Confirmable,
				Code:      tt.code,
				MessageID: 1,
				Token:     []byte{0x0f},
				Payload:   []byte("2"),
			}
			req.SetPath(tt.path)
			if tt.want != message.BadRequest {
				req.Payload = nil
			}
			sendRequest(t, srv, req)

			resp := recvResponse(t, peer)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestMalformedDatagramIsDropped(t *testing.T) {
	srv, _, peer, counters := newTestServer(t)

	srv.HandleDatagram([]byte{0x81, 0x01, 0x00, 0x01}) // wrong version

	_, ok, err := peer.Recv(make([]byte, 64))
	require.NoError(t, err)
	assert.False(t, ok, "malformed datagram must not be answered")
	assert.Equal(t, int64(1), counters.DatagramsDropped.Load())

	// The loop keeps serving valid requests afterwards.
	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 2, Token: []byte{1}}
	req.SetPath(device.StatePath)
	sendRequest(t, srv, req)

	resp := recvResponse(t, peer)
	assert.Equal(t, message.Content, resp.Code)
}

func TestStrayResponseIsIgnored(t *testing.T) {
	srv, _, peer, counters := newTestServer(t)

	stray := &message.Message{
		Type:      message.Acknowledgement,
		Code:      message.Content,
		MessageID: 3,
		Token:     []byte{0x2a},
	}
	sendRequest(t, srv, stray)

	_, ok, err := peer.Recv(make([]byte, 64))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), counters.DatagramsDropped.Load())
}

func TestServeLoop(t *testing.T) {
	light := device.NewLight()
	r := router.New()
	require.NoError(t, light.Register(r))

	conn, peer := transport.NewPipe()
	srv := New(conn, r, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	req := &message.Message{Type: message.Confirmable, Code: message.PUT, MessageID: 5, Token: []byte{0x05}}
	req.SetPath(device.SwitchPath)
	data, err := req.MarshalBinary()
	require.NoError(t, err)
	_, err = peer.Send(data)
	require.NoError(t, err)

	// Wait for the loop to answer.
	buf := make([]byte, message.MaxMessageSize)
	deadline := time.After(time.Second)
	for {
		n, ok, err := peer.Recv(buf)
		require.NoError(t, err)
		if ok {
			var resp message.Message
			require.NoError(t, resp.UnmarshalBinary(buf[:n]))
			assert.Equal(t, message.Changed, resp.Code)
			assert.True(t, light.On())
			break
		}
		select {
		case <-deadline:
			t.Fatal("no response from serve loop")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestServeStopsWhenTransportCloses(t *testing.T) {
	r := router.New()
	conn, _ := transport.NewPipe()
	srv := New(conn, r, WithPollInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve loop did not stop on closed transport")
	}
}
