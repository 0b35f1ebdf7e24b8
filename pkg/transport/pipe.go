package transport

import "sync"

const pipeBacklog = 16

// Pipe is an in-memory Conn half used by tests and by loopback wiring. Each
// datagram sent on one half becomes receivable on the other.
type Pipe struct {
	recv  chan []byte
	peer  *Pipe
	done  chan struct{}
	close sync.Once
}

// NewPipe returns two connected Conn halves.
func NewPipe() (*Pipe, *Pipe) {
	a := &Pipe{recv: make(chan []byte, pipeBacklog), done: make(chan struct{})}
	b := &Pipe{recv: make(chan []byte, pipeBacklog), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *Pipe) Send(data []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}

	buf := append([]byte(nil), data...)
	select {
	case p.peer.recv <- buf:
		return len(data), nil
	case <-p.peer.done:
		// Peer gone; a datagram into the void is still a successful send,
		// matching UDP semantics.
		return len(data), nil
	}
}

func (p *Pipe) Recv(buf []byte) (int, bool, error) {
	select {
	case <-p.done:
		return 0, false, ErrClosed
	default:
	}

	select {
	case data := <-p.recv:
		return copy(buf, data), true, nil
	default:
		return 0, false, nil
	}
}

func (p *Pipe) Close() error {
	p.close.Do(func() { close(p.done) })
	return nil
}
