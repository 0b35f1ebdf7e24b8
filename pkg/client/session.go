// Package client implements the client side of the engine: a single-socket
// session that keeps at most one request in flight and correlates inbound
// datagrams to it by token.
package client

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridlite/coap-light/pkg/message"
	"github.com/gridlite/coap-light/pkg/metrics"
	"github.com/gridlite/coap-light/pkg/transport"
)

// Protocol errors.
var (
	// ErrRequestInFlight is returned by Send while a previous request still
	// awaits its reply. The session never pipelines.
	ErrRequestInFlight = errors.New("client: request already in flight")
	// ErrClosed is returned by any call after Close.
	ErrClosed = errors.New("client: session closed")
	// ErrRequestTimeout is returned by Poll when the pending request's
	// deadline passes; the session returns to idle.
	ErrRequestTimeout = errors.New("client: request timed out")
)

type state int

const (
	stateIdle state = iota
	stateAwaiting
	stateClosed
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultPollInterval   = 20 * time.Millisecond
)

// Session drives requests over a connected datagram channel. It is a two
// state machine: idle, or awaiting the reply to exactly one outstanding
// request. A single logical actor is expected to drive it.
type Session struct {
	conn     transport.Conn
	seq      *Sequence
	log      *zap.SugaredLogger
	counters *metrics.Counters
	timeout  time.Duration
	poll     time.Duration
	now      func() time.Time

	mu           sync.Mutex
	state        state
	pendingToken []byte
	pendingID    uint16
	deadline     time.Time

	buf [message.MaxMessageSize]byte
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Session) { s.log = log }
}

// WithTimeout sets the per-request reply deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithPollInterval sets the sleep between polls in Await.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.poll = d }
}

// WithCounters attaches a metrics sink.
func WithCounters(c *metrics.Counters) Option {
	return func(s *Session) { s.counters = c }
}

// NewSession wraps conn in a session. The session owns the connection and
// closes it on Close.
func NewSession(conn transport.Conn, opts ...Option) *Session {
	s := &Session{
		conn:     conn,
		seq:      NewSequence(),
		log:      zap.NewNop().Sugar(),
		counters: metrics.NewCounters(),
		timeout:  defaultRequestTimeout,
		poll:     defaultPollInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRequest builds a request carrying a fresh token and message ID.
func (s *Session) NewRequest(typ message.Type, code message.Code, path []string, payload []byte) *message.Message {
	m := &message.Message{
		Type:      typ,
		Code:      code,
		MessageID: s.seq.NextMessageID(),
		Token:     s.seq.NextToken(),
		Payload:   payload,
	}
	m.SetPath(path)
	return m
}

// Send encodes and transmits a request and records its token and message ID
// for correlation. Legal only while idle: a second Send before the reply (or
// timeout) returns ErrRequestInFlight.
func (s *Session) Send(m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateAwaiting:
		return ErrRequestInFlight
	}

	n, err := m.MarshalTo(s.buf[:])
	if err != nil {
		return err
	}
	if _, err := s.conn.Send(s.buf[:n]); err != nil {
		return err
	}

	s.state = stateAwaiting
	s.pendingToken = append([]byte(nil), m.Token...)
	s.pendingID = m.MessageID
	s.deadline = s.now().Add(s.timeout)
	s.counters.RequestsSent.Add(1)
	s.log.Debugw("request sent", "code", m.Code.String(), "path", m.PathString(),
		"message_id", m.MessageID, "token", m.Token)
	return nil
}

// Poll checks once for the pending reply without blocking.
//
// It returns (nil, nil) when there is nothing to report yet: no request
// pending, no datagram available, or a datagram that was discarded as stray
// (wrong token) or undecodable. It returns ErrRequestTimeout once the
// deadline passes, and any transport fault verbatim; both end the pending
// request.
func (s *Session) Poll() (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil, ErrClosed
	}
	if s.state == stateIdle {
		return nil, nil
	}

	if s.now().After(s.deadline) {
		s.toIdle()
		s.counters.RequestTimeouts.Add(1)
		return nil, ErrRequestTimeout
	}

	n, ok, err := s.conn.Recv(s.buf[:])
	if err != nil {
		if errors.Is(err, transport.ErrClosed) {
			s.state = stateClosed
			return nil, ErrClosed
		}
		// A real I/O fault ends the request; the caller should Close.
		s.toIdle()
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var reply message.Message
	if err := reply.UnmarshalBinary(s.buf[:n]); err != nil {
		// Not a usable reply; keep waiting for the real one.
		s.log.Debugw("discarding undecodable datagram", "error", err, "len", n)
		s.counters.RepliesDiscarded.Add(1)
		return nil, nil
	}

	if !bytes.Equal(reply.Token, s.pendingToken) {
		s.log.Debugw("discarding stray reply", "token", reply.Token,
			"pending_token", s.pendingToken)
		s.counters.RepliesDiscarded.Add(1)
		return nil, nil
	}

	s.toIdle()
	s.counters.RepliesMatched.Add(1)
	s.log.Debugw("reply matched", "code", reply.Code.String(),
		"message_id", reply.MessageID)
	return &reply, nil
}

// Await polls until the pending reply arrives, the request deadline passes,
// or ctx is done.
func (s *Session) Await(ctx context.Context) (*message.Message, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		reply, err := s.Poll()
		if err != nil || reply != nil {
			return reply, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close discards any pending correlation state and releases the transport.
// It is idempotent; calls after Close return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	s.toIdle()
	s.state = stateClosed
	return s.conn.Close()
}

func (s *Session) toIdle() {
	s.state = stateIdle
	s.pendingToken = nil
	s.pendingID = 0
	s.deadline = time.Time{}
}
