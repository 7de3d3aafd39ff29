// Package receiver implements the receiving half of the transfer: an event
// loop that accepts out-of-order chunks into a selective-ack bitmap, writes
// each to its offset in the sink, and slides its window forward as the
// front of the stream fills in.
package receiver

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
	"github.com/quantumxfer/quantumxfer/internal/quantum/seqnum"
	"github.com/quantumxfer/quantumxfer/internal/quantum/sink"
	"github.com/quantumxfer/quantumxfer/internal/quantum/wire"
)

// fullWindow is the selective-ack bitmap value once every offset in the
// window has been received.
const fullWindow uint64 = 1<<seqnum.W - 1

// Option customizes a Receiver at construction time.
type Option func(*Receiver)

// WithLogger attaches a zap logger; a no-op logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(r *Receiver) { r.logger = l }
}

// WithIdleTimeout overrides the receive timeout applied before the peer's
// first datagram arrives and between datagrams thereafter.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Receiver) { r.idleTimeout = d }
}

// Receiver drives one inbound transfer over a Channel, writing chunks into
// a Sink. It is not safe for concurrent use.
type Receiver struct {
	ch   channel.Channel
	sink sink.Sink

	nextSeqNum seqnum.Num
	window     uint64 // bit k set iff chunk at offset k from nextSeqNum is held

	bytesWritten int64
	connected    bool

	idleTimeout time.Duration
	logger      *zap.Logger
}

// New returns a Receiver ready to accept a transfer over ch, writing into
// sk.
func New(ch channel.Channel, sk sink.Sink, opts ...Option) *Receiver {
	r := &Receiver{
		ch:          ch,
		sink:        sk,
		idleTimeout: 10 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ch.SetRecvTimeout(r.idleTimeout)
	return r
}

// listenResult classifies what one Recv call produced.
type listenResult int

const (
	resultTimedOut listenResult = iota
	resultComplete
	resultInProgress
)

// Receive runs the event loop until the EOF sentinel arrives or the peer
// goes quiet for the idle timeout.
func (r *Receiver) Receive(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, from, result, err := r.listen()
		if err != nil {
			return err
		}

		switch result {
		case resultTimedOut:
			r.logger.Info("receiver: idle timeout, ending silently",
				zap.Duration("idle_timeout", r.idleTimeout),
				zap.Int64("bytes_written", r.bytesWritten))
			return nil
		case resultComplete:
			r.logger.Info("receiver: eof received",
				zap.Int64("bytes_written", r.bytesWritten),
				zap.Int("next_seq_num", int(r.nextSeqNum)))
			return nil
		}

		header, err := wire.UnmarshalSenderHeader(data)
		if err != nil {
			r.logger.Warn("receiver: dropping malformed packet", zap.Error(err))
			continue
		}

		if !r.connected {
			r.ch.SetPeer(from)
			r.connected = true
		}

		r.saveData(header, data[wire.SenderHeaderSize:])
		if err := r.respond(header); err != nil {
			return err
		}
	}
}

func (r *Receiver) listen() ([]byte, net.Addr, listenResult, error) {
	data, from, err := r.ch.Recv()
	if err == channel.ErrTimeout {
		return nil, nil, resultTimedOut, nil
	}
	if err != nil {
		return nil, nil, resultTimedOut, fmt.Errorf("receiver: recv: %w", err)
	}

	header, err := wire.UnmarshalSenderHeader(data)
	if err == nil && header.IsEOF() {
		return data, from, resultComplete, nil
	}

	return data, from, resultInProgress, nil
}

// isWritten reports whether the chunk at window offset is already held.
func (r *Receiver) isWritten(offset int) bool {
	return (r.window>>uint(offset))&1 == 1
}

func (r *Receiver) markWritten(offset int) {
	r.window |= 1 << uint(offset)
}

// slide advances nextSeqNum past every contiguously-held chunk at the
// front of the window and shifts the bitmap down to match.
func (r *Receiver) slide() int {
	moved := 0
	for moved < seqnum.W && r.isWritten(moved) {
		moved++
	}
	r.window >>= uint(moved)
	return moved
}

// saveData writes an in-window chunk at its offset from nextSeqNum,
// sliding the window forward when it lands at the front.
func (r *Receiver) saveData(header wire.SenderHeader, payload []byte) {
	seq := seqnum.Num(header.SeqNum)
	offset := int(seqnum.Sub(seq, r.nextSeqNum))

	if offset >= seqnum.W {
		return // out of window, discard
	}
	if r.isWritten(offset) {
		return // already buffered
	}

	writeOffset := r.bytesWritten + int64(offset)*wire.MaxPayload
	if err := r.sink.WriteAt(payload, writeOffset); err != nil {
		r.logger.Error("receiver: write failed", zap.Error(err))
		return
	}

	if offset == 0 {
		r.window |= 1
		moved := r.slide()
		r.bytesWritten += int64(moved) * wire.MaxPayload
		r.nextSeqNum = seqnum.Add(r.nextSeqNum, moved)
		r.logger.Debug("receiver: window advanced",
			zap.Int("moved", moved),
			zap.Int("next_seq_num", int(r.nextSeqNum)),
			zap.Int64("bytes_written", r.bytesWritten))
	} else {
		r.markWritten(offset)
		r.logger.Debug("receiver: buffered out-of-order chunk",
			zap.Int("offset", offset),
			zap.Int("seq_num", int(seq)))
	}
}

// respond replies with the current expected sequence number, the echoed
// timestamp from the packet just processed, and the selective-ack bitmap.
func (r *Receiver) respond(header wire.SenderHeader) error {
	reply := wire.ReceiverHeader{
		NextSeqNum: int16(r.nextSeqNum),
		Timestamp:  header.Timestamp,
		Window:     r.window,
	}
	if err := r.ch.Send(reply.Marshal()); err != nil {
		return fmt.Errorf("receiver: send ack: %w", err)
	}
	return nil
}

// Statistics returns a snapshot suitable for logging or metrics export.
func (r *Receiver) Statistics() map[string]interface{} {
	return map[string]interface{}{
		"bytes_written":   r.bytesWritten,
		"next_seq_num":    int(r.nextSeqNum),
		"window_complete": r.window == fullWindow,
	}
}
