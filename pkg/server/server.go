// Package server runs the dispatch loop: poll the transport, decode, route,
// answer. One malformed datagram never stops the loop or touches unrelated
// state.
package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gridlite/coap-light/pkg/message"
	"github.com/gridlite/coap-light/pkg/metrics"
	"github.com/gridlite/coap-light/pkg/router"
	"github.com/gridlite/coap-light/pkg/transport"
)

const defaultPollInterval = 10 * time.Millisecond

// Server owns the server side of a datagram channel and a route table.
type Server struct {
	conn     transport.Conn
	router   *router.Router
	log      *zap.SugaredLogger
	counters *metrics.Counters
	poll     time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithPollInterval sets the idle sleep between transport polls.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.poll = d }
}

// WithCounters attaches a metrics sink.
func WithCounters(c *metrics.Counters) Option {
	return func(s *Server) { s.counters = c }
}

// New wraps conn and routes in a server. The caller keeps ownership of the
// connection.
func New(conn transport.Conn, r *router.Router, opts ...Option) *Server {
	s := &Server{
		conn:     conn,
		router:   r,
		log:      zap.NewNop().Sugar(),
		counters: metrics.NewCounters(),
		poll:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve polls the transport and dispatches inbound requests until ctx is
// done or the transport closes. It is the single actor driving the server
// path.
func (s *Server) Serve(ctx context.Context) error {
	buf := make([]byte, message.MaxMessageSize)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, ok, err := s.conn.Recv(buf)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		s.handleDatagram(buf[:n])
	}
}

// HandleDatagram decodes and dispatches one inbound datagram, sending the
// response on the server's transport. Exposed for transports that deliver
// datagrams by callback rather than polling.
func (s *Server) HandleDatagram(data []byte) {
	s.handleDatagram(data)
}

func (s *Server) handleDatagram(data []byte) {
	s.counters.DatagramsReceived.Add(1)
	s.log.Debugf("request hexdump: % x", data)

	var req message.Message
	if err := req.UnmarshalBinary(data); err != nil {
		s.log.Warnw("dropping malformed datagram", "error", err, "len", len(data))
		s.counters.DatagramsDropped.Add(1)
		return
	}

	if !req.Code.IsRequest() {
		// Stray response or empty message; not ours to answer.
		s.log.Debugw("ignoring non-request datagram", "code", req.Code.String())
		s.counters.DatagramsDropped.Add(1)
		return
	}

	code, payload := s.router.Dispatch(&req)
	s.log.Infow("request dispatched", "method", req.Code.String(),
		"path", req.PathString(), "status", code.String())

	resp := buildResponse(&req, code, payload)
	out, err := resp.MarshalBinary()
	if err != nil {
		s.log.Errorw("encoding response failed", "error", err)
		return
	}
	if _, err := s.conn.Send(out); err != nil {
		s.log.Errorw("sending response failed", "error", err)
		return
	}
	s.counters.ResponsesSent.Add(1)
}

// buildResponse echoes the request's token and message ID and answers a
// confirmable request with an acknowledgement. Payload-carrying responses
// are tagged text/plain, the only format this deployment serves.
func buildResponse(req *message.Message, code message.Code, payload []byte) *message.Message {
	typ := message.NonConfirmable
	if req.Type == message.Confirmable {
		typ = message.Acknowledgement
	}
	resp := &message.Message{
		Type:      typ,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
		Payload:   payload,
	}
	if len(payload) > 0 {
		resp.SetContentFormat(message.TextPlain)
	}
	return resp
}
