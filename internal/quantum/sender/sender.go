// Package sender implements the burst-oriented sending half of the
// transfer: it pushes a window of chunks, harvests the acks the receiver
// returns, and adapts its congestion window and retransmission timeout
// before the next burst.
package sender

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
	"github.com/quantumxfer/quantumxfer/internal/quantum/congestion"
	"github.com/quantumxfer/quantumxfer/internal/quantum/rtt"
	"github.com/quantumxfer/quantumxfer/internal/quantum/seqnum"
	"github.com/quantumxfer/quantumxfer/internal/quantum/source"
	"github.com/quantumxfer/quantumxfer/internal/quantum/wire"
)

// eofRepeats is how many times the EOF sentinel is sent once the transfer
// is complete, to survive the loss of any one copy.
const eofRepeats = 4

// Option customizes a Sender at construction time.
type Option func(*Sender)

// WithLogger attaches a zap logger; a no-op logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// WithPacer attaches a token-bucket limiter that the burst loop waits on
// before each data packet it transmits, smoothing bursts across the wire
// rather than emitting the whole window back to back. Fast retransmits and
// EOF packets are not paced.
func WithPacer(limiter *rate.Limiter) Option {
	return func(s *Sender) { s.limiter = limiter }
}

// Sender drives one outbound transfer over a Channel, reading chunks from a
// Source. It is not safe for concurrent use: one goroutine owns the burst
// loop.
type Sender struct {
	ch  channel.Channel
	src source.Source

	transferSize int64

	startSeqNum  seqnum.Num
	endSeqNum    seqnum.Num
	startFilePos int64

	lastAck     seqnum.Num
	haveLastAck bool
	recvrWindow uint64

	cc     *congestion.Controller
	rttEst *rtt.Estimator

	packetsSent int
	packetsRecv int

	// retransmitted tracks, by sequence number, chunks sent outside the
	// normal sweep (fast retransmit) so their resolving ack is excluded
	// from RTT sampling (Karn's algorithm).
	retransmitted map[seqnum.Num]bool

	logger  *zap.Logger
	limiter *rate.Limiter
}

// New returns a Sender ready to transfer transferSize bytes of src over ch.
func New(ch channel.Channel, src source.Source, transferSize int64, opts ...Option) *Sender {
	s := &Sender{
		ch:            ch,
		src:           src,
		transferSize:  transferSize,
		lastAck:       0,
		cc:            congestion.New(),
		rttEst:        rtt.New(),
		retransmitted: make(map[seqnum.Num]bool),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer runs the full send loop: burst, collect acks, adapt, slide,
// until every byte up to transferSize has been confirmed, then emits the
// EOF sentinel.
func (s *Sender) Transfer(ctx context.Context) error {
	s.applyTimeout()

	for !s.isComplete() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.sendBurst(ctx); err != nil {
			return err
		}
		if err := s.recvAcks(ctx); err != nil {
			return err
		}
		s.applyTimeout()
		s.slide()

		if err := s.rttEst.CheckTerminal(); err != nil {
			return fmt.Errorf("sender: %w", err)
		}
	}

	return s.sendEOF()
}

func (s *Sender) bytesLeft() int64 {
	left := s.transferSize - s.startFilePos
	if left < 0 {
		return 0
	}
	return left
}

// bytesConfirmed returns the acknowledged byte count, capped at transferSize
// since the window base advances in whole chunks past a short final chunk.
func (s *Sender) bytesConfirmed() int64 {
	if s.startFilePos > s.transferSize {
		return s.transferSize
	}
	return s.startFilePos
}

func (s *Sender) isComplete() bool {
	return s.startFilePos >= s.transferSize
}

// isAcked reports whether the receiver's last selective-ack bitmap already
// has the chunk at window offset i.
func (s *Sender) isAcked(offset int) bool {
	return (s.recvrWindow>>uint(offset))&1 == 1
}

// sendBurst transmits up to the current congestion window's worth of
// chunks, skipping any the receiver has already selectively acked.
func (s *Sender) sendBurst(ctx context.Context) error {
	seq := s.startSeqNum
	sent := 0
	windowSize := s.cc.WindowSize()

	for i := 0; i < windowSize; i++ {
		if s.startFilePos+int64(i)*wire.MaxPayload >= s.transferSize {
			break
		}

		if s.isAcked(i) {
			seq = seqnum.Inc(seq)
			continue
		}

		if err := s.paced(ctx); err != nil {
			return err
		}
		if _, err := s.sendChunk(seq); err != nil {
			return err
		}
		seq = seqnum.Inc(seq)
		sent++
	}

	s.endSeqNum = seq
	s.packetsSent = sent
	return nil
}

// sendChunk reads and transmits the file chunk for seq, computed from its
// offset relative to the current window base rather than a moving file
// cursor.
func (s *Sender) sendChunk(seq seqnum.Num) (int, error) {
	offset := s.startFilePos + int64(seqnum.Sub(seq, s.startSeqNum))*wire.MaxPayload

	remaining := s.transferSize - offset
	if remaining < 0 {
		remaining = 0
	}
	readLen := int64(wire.MaxPayload)
	if remaining < readLen {
		readLen = remaining
	}

	buf := make([]byte, wire.SenderHeaderSize+readLen)
	n, err := s.src.ReadAt(buf[wire.SenderHeaderSize:], offset)
	if err != nil {
		return 0, fmt.Errorf("sender: read chunk at offset %d: %w", offset, err)
	}
	buf = buf[:wire.SenderHeaderSize+n]

	header := wire.SenderHeader{SeqNum: int16(seq), Timestamp: wire.Now()}
	copy(buf[:wire.SenderHeaderSize], header.Marshal())

	if err := s.ch.Send(buf); err != nil {
		return 0, fmt.Errorf("sender: send chunk seq=%d: %w", seq, err)
	}
	return n, nil
}

// paced blocks on the pacing limiter, if one is configured.
func (s *Sender) paced(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// recvAcks harvests up to packetsSent acks, triggering fast retransmit on
// the second consecutive duplicate ack, and adapts the congestion window
// according to what happened this burst.
func (s *Sender) recvAcks(ctx context.Context) error {
	received := 0
	dupCount := 0
	timedOut := false
	recovering := false

	for i := 0; i < s.packetsSent; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, _, err := s.ch.Recv()
		if err == channel.ErrTimeout {
			timedOut = true
			break
		}
		if err != nil {
			return fmt.Errorf("sender: recv ack: %w", err)
		}
		received++

		ackHeader, err := wire.UnmarshalReceiverHeader(data)
		if err != nil {
			s.logger.Warn("sender: dropping malformed ack", zap.Error(err))
			continue
		}

		nextAck := seqnum.Num(ackHeader.NextSeqNum)
		if s.haveLastAck && nextAck == s.lastAck {
			dupCount++
			if dupCount == 2 {
				if _, err := s.sendChunk(nextAck); err != nil {
					return err
				}
				s.retransmitted[nextAck] = true
				recovering = true
				s.logger.Info("sender: fast retransmit",
					zap.Int("seq_num", int(nextAck)),
					zap.Uint32("window_size", uint32(s.cc.WindowSize())))
			}
		} else {
			dupCount = 0
		}

		suppressSample := s.consumeRetransmitRange(s.lastAck, nextAck, s.haveLastAck)

		s.lastAck = nextAck
		s.haveLastAck = true
		s.recvrWindow = ackHeader.Window

		if !suppressSample {
			s.rttEst.Sample(ackHeader.Timestamp.ElapsedMicros(wire.Now()))
		}
	}

	s.packetsRecv = received

	windowBefore := s.cc.WindowSize()
	switch {
	case timedOut:
		s.cc.SlowStart()
		s.logger.Info("sender: burst timed out, entering slow start",
			zap.Uint32("window_before", uint32(windowBefore)),
			zap.Uint32("window_after", uint32(s.cc.WindowSize())),
			zap.Uint32("threshold", uint32(s.cc.OptimalWindowSize())))
	case recovering:
		s.cc.FastRecovery()
		s.logger.Info("sender: fast recovery",
			zap.Uint32("window_before", uint32(windowBefore)),
			zap.Uint32("window_after", uint32(s.cc.WindowSize())),
			zap.Uint32("threshold", uint32(s.cc.OptimalWindowSize())))
	default:
		s.cc.Increase()
		s.logger.Debug("sender: congestion window increased",
			zap.Uint32("window_before", uint32(windowBefore)),
			zap.Uint32("window_after", uint32(s.cc.WindowSize())))
	}

	return nil
}

// consumeRetransmitRange reports whether any sequence number newly
// confirmed by an ack advancing from prevAck to nextAck was previously
// tagged as a fast retransmit, clearing those tags either way.
func (s *Sender) consumeRetransmitRange(prevAck, nextAck seqnum.Num, havePrev bool) bool {
	if !havePrev || nextAck == prevAck {
		return false
	}

	suppress := false
	distance := int(seqnum.Sub(nextAck, prevAck))
	for i := 0; i < distance; i++ {
		seq := seqnum.Add(prevAck, i)
		if s.retransmitted[seq] {
			suppress = true
			delete(s.retransmitted, seq)
		}
	}
	return suppress
}

// applyTimeout pushes the current estimated retransmission timeout onto
// the channel, bounding how long the next recvAcks wait can last.
func (s *Sender) applyTimeout() {
	sec, usec := s.rttEst.TimeoutSplit()
	rto := time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond
	s.ch.SetRecvTimeout(rto)
	s.logger.Debug("sender: rto recomputed",
		zap.Duration("rto", rto),
		zap.Float64("rtt_estimate_us", s.rttEst.EstimateMicros()))
}

// slide advances the window base to the last cumulative ack, mapping it
// back onto the byte offset that ack represents.
func (s *Sender) slide() {
	next := s.lastAck
	if !s.haveLastAck {
		next = 0
	}

	diff := seqnum.Sub(next, s.startSeqNum)
	s.startFilePos += int64(diff) * wire.MaxPayload
	s.startSeqNum = next
}

// sendEOF emits the EOF sentinel four times, matching the redundancy the
// reference implementation relies on since no ack confirms it.
func (s *Sender) sendEOF() error {
	header := wire.SenderHeader{SeqNum: wire.EOFSeqNum, Timestamp: wire.Now()}
	buf := header.Marshal()

	for i := 0; i < eofRepeats; i++ {
		if err := s.ch.Send(buf); err != nil {
			return fmt.Errorf("sender: send eof: %w", err)
		}
	}
	s.logger.Info("sender: eof sent",
		zap.Int("repeats", eofRepeats),
		zap.Int64("bytes_sent", s.bytesConfirmed()))
	return nil
}

// Statistics returns a snapshot suitable for logging or metrics export.
func (s *Sender) Statistics() map[string]interface{} {
	return map[string]interface{}{
		"bytes_sent":      s.bytesConfirmed(),
		"transfer_size":   s.transferSize,
		"packets_sent":    s.packetsSent,
		"packets_recv":    s.packetsRecv,
		"window_size":     s.cc.WindowSize(),
		"rtt_estimate_us": s.rttEst.EstimateMicros(),
	}
}
