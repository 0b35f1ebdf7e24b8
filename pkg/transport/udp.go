package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// UDPConn adapts a connected *net.UDPConn to the Conn interface. Recv uses
// an immediate read deadline to poll, mapping the deadline error to
// "no data yet".
type UDPConn struct {
	conn *net.UDPConn
}

// DialUDP connects to a remote CoAP endpoint given as host:port.
func DialUDP(endpoint string) (*UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", endpoint, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	return &UDPConn{conn: conn}, nil
}

func (c *UDPConn) Send(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return n, err
	}
	return n, nil
}

func (c *UDPConn) Recv(p []byte) (int, bool, error) {
	if err := c.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, false, err
	}
	n, err := c.conn.Read(p)
	switch {
	case err == nil:
		return n, true, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, false, nil
	case errors.Is(err, net.ErrClosed):
		return 0, false, ErrClosed
	default:
		return 0, false, err
	}
}

func (c *UDPConn) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// UDPServerConn wraps an unconnected listening socket as a Conn. Recv
// records the datagram's source so the following Send answers that peer.
// This matches the single-actor dispatch loop: exactly one goroutine drives
// Recv and Send.
type UDPServerConn struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// ListenUDP binds a UDP socket on the given address (host:port).
func ListenUDP(listenAddr string) (*UDPServerConn, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	return &UDPServerConn{conn: conn}, nil
}

// LocalAddr returns the bound address.
func (c *UDPServerConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *UDPServerConn) Send(p []byte) (int, error) {
	if c.peer == nil {
		return 0, errors.New("transport: no peer to answer")
	}
	n, err := c.conn.WriteToUDP(p, c.peer)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return n, err
	}
	return n, nil
}

func (c *UDPServerConn) Recv(p []byte) (int, bool, error) {
	if err := c.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, false, err
	}
	n, peer, err := c.conn.ReadFromUDP(p)
	switch {
	case err == nil:
		c.peer = peer
		return n, true, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, false, nil
	case errors.Is(err, net.ErrClosed):
		return 0, false, ErrClosed
	default:
		return 0, false, err
	}
}

func (c *UDPServerConn) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
