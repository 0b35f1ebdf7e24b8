package client

import (
	"encoding/binary"
	"math/rand"
	"sync"
)

// Sequence produces tokens and message IDs for outbound requests. Both are
// monotonic counters seeded randomly per session, which is unique enough for
// response correlation; there is no cryptographic requirement.
type Sequence struct {
	mu    sync.Mutex
	msgID uint16
	token uint64
}

// NewSequence returns a generator with randomized starting points.
func NewSequence() *Sequence {
	return &Sequence{
		msgID: uint16(rand.Uint32()),
		token: rand.Uint64(),
	}
}

// NextMessageID returns a fresh 16-bit message ID, wrapping modulo 2^16.
func (s *Sequence) NextMessageID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgID++
	return s.msgID
}

// NextToken returns a fresh 8-byte token.
func (s *Sequence) NextToken() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token++
	token := make([]byte, 8)
	binary.BigEndian.PutUint64(token, s.token)
	return token
}
