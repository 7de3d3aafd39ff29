// Package channel implements the datagram transport collaborator described
// by the protocol: connectionless send, blocking receive bounded by a
// per-call timeout, and a peer address that can be pinned explicitly (the
// sender, which knows its destination upfront) or learned from the first
// received datagram (the receiver).
package channel

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrTimeout is returned by Recv when no datagram arrives within the
// configured receive timeout.
var ErrTimeout = errors.New("channel: receive timeout")

// bufSize holds any UDP datagram, so a full data packet is not truncated
// even when a wrapper such as the FEC codec adds an envelope around it.
const bufSize = 64 * 1024

// Channel is the capability set the sender and receiver state machines
// depend on. It is kept as an interface, per the design note that the
// datagram channel should be an injected collaborator, so tests can drive
// the state machines against an in-memory fake instead of real sockets.
type Channel interface {
	// Send transmits b to the current peer.
	Send(b []byte) error

	// Recv blocks for at most the current receive timeout and returns the
	// next datagram and its source address, or ErrTimeout.
	Recv() ([]byte, net.Addr, error)

	// SetPeer pins the address future Send calls deliver to.
	SetPeer(addr net.Addr)

	// Peer returns the currently pinned peer address, or nil if unset.
	Peer() net.Addr

	// SetRecvTimeout changes the bound on future Recv calls.
	SetRecvTimeout(d time.Duration)

	// Close releases the underlying socket.
	Close() error
}

// readBufPool recycles the byte slices Recv copies datagrams into, avoiding
// a fresh allocation on every receive in the sender/receiver hot loop.
var readBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, bufSize)
		return &b
	},
}

// UDPChannel is the concrete Channel implementation over a UDP socket.
type UDPChannel struct {
	mu      sync.RWMutex
	conn    *net.UDPConn
	peer    *net.UDPAddr
	timeout time.Duration
}

// Listen opens a UDP socket bound to the given local port, for the
// receiver, which does not know its peer until the first datagram arrives.
func Listen(port int) (*UDPChannel, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("channel: listen on port %d: %w", port, err)
	}
	return &UDPChannel{conn: conn}, nil
}

// Dial opens a UDP socket and pins the peer to host:port immediately, for
// the sender, which knows its destination a priori.
func Dial(host string, port int) (*UDPChannel, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("channel: resolve %s:%d: %w", host, port, err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("channel: dial %s:%d: %w", host, port, err)
	}

	return &UDPChannel{conn: conn, peer: raddr}, nil
}

// Send transmits b to the pinned peer.
func (c *UDPChannel) Send(b []byte) error {
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()

	if peer == nil {
		return errors.New("channel: send with no peer set")
	}

	_, err := c.conn.WriteToUDP(b, peer)
	if err != nil {
		return fmt.Errorf("channel: send: %w", err)
	}
	return nil
}

// Recv blocks for at most the current receive timeout.
func (c *UDPChannel) Recv() ([]byte, net.Addr, error) {
	bufPtr := readBufPool.Get().(*[]byte)
	defer readBufPool.Put(bufPtr)
	buf := *bufPtr

	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
	}

	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, fmt.Errorf("channel: recv: %w", err)
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, addr, nil
}

// SetPeer pins the peer address for subsequent Send calls.
func (c *UDPChannel) SetPeer(addr net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		c.peer = udpAddr
	}
}

// Peer returns the currently pinned peer, or nil.
func (c *UDPChannel) Peer() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.peer == nil {
		return nil
	}
	return c.peer
}

// SetRecvTimeout sets the bound applied to each subsequent Recv call.
func (c *UDPChannel) SetRecvTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Close releases the underlying socket.
func (c *UDPChannel) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the socket's local address.
func (c *UDPChannel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}
