package fec

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
)

// envelopeSize is the fixed prefix Codec adds to every outgoing datagram:
// a frame kind byte, an 8-byte group id, and a 1-byte shard index.
const envelopeSize = 1 + 8 + 1

const (
	frameData   byte = 0
	frameParity byte = 1
)

// Codec wraps a Channel with Reed-Solomon group coding: every outgoing
// datagram becomes a tagged data shard, and once DataShards of them have
// gone out, the parity shards for that group are sent as extra datagrams.
// On the receiving side, a data shard that arrives is returned immediately;
// one that is lost is silently reconstructed (and delivered in its place)
// once enough of its group's sibling shards, data or parity, have arrived.
type Codec struct {
	inner   channel.Channel
	encoder *Encoder
	decoder *Decoder

	mu      sync.Mutex
	pending [][]byte
	peer    net.Addr
	timeout time.Duration
}

// Wrap returns a Channel that applies group FEC coding on top of inner,
// using cfg (or DefaultConfig if nil) on both the encode and decode side.
func Wrap(inner channel.Channel, cfg *Config) (*Codec, error) {
	enc, err := NewEncoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("fec: wrap: %w", err)
	}
	dec, err := NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("fec: wrap: %w", err)
	}
	return &Codec{inner: inner, encoder: enc, decoder: dec, timeout: 10 * time.Second}, nil
}

func marshalEnvelope(kind byte, groupID uint64, shardIndex int, shard []byte) []byte {
	buf := make([]byte, envelopeSize+len(shard))
	buf[0] = kind
	binary.BigEndian.PutUint64(buf[1:9], groupID)
	buf[9] = byte(shardIndex)
	copy(buf[envelopeSize:], shard)
	return buf
}

// Send tags b as the next data shard in the current group, forwards it,
// and if b completed a group, also forwards that group's parity shards.
func (c *Codec) Send(b []byte) error {
	groupID, shardIndex := c.encoder.PendingSlot()

	if err := c.inner.Send(marshalEnvelope(frameData, groupID, shardIndex, b)); err != nil {
		return err
	}

	_, parityShards, err := c.encoder.AddData(b)
	if err != nil {
		return fmt.Errorf("fec: encode: %w", err)
	}
	for i, shard := range parityShards {
		if err := c.inner.Send(marshalEnvelope(frameParity, groupID, i, shard)); err != nil {
			return err
		}
	}
	return nil
}

// Recv returns the next datagram: either one that arrived directly, or one
// reconstructed from a completed group once enough of its shards landed.
func (c *Codec) Recv() ([]byte, net.Addr, error) {
	c.mu.Lock()
	deadline := time.Now().Add(c.timeout)
	c.mu.Unlock()

	for {
		if shard, ok := c.popPending(); ok {
			c.mu.Lock()
			peer := c.peer
			c.mu.Unlock()
			return shard, peer, nil
		}

		raw, from, err := c.inner.Recv()
		if err != nil {
			return nil, nil, err
		}
		if len(raw) < envelopeSize {
			return nil, nil, fmt.Errorf("fec: short frame: %d bytes", len(raw))
		}

		c.mu.Lock()
		c.peer = from
		c.mu.Unlock()

		kind := raw[0]
		groupID := binary.BigEndian.Uint64(raw[1:9])
		shardIndex := int(raw[9])
		shard := append([]byte(nil), raw[envelopeSize:]...)

		if kind == frameData {
			c.decoder.AddShard(groupID, shardIndex, shard, false)
			return shard, from, nil
		}

		recovered, err := c.decoder.AddShard(groupID, shardIndex, shard, true)
		if err == nil && recovered != nil {
			c.queueReconstructed(groupID, recovered)
			continue
		}

		if time.Now().After(deadline) {
			return nil, nil, channel.ErrTimeout
		}
	}
}

// queueReconstructed enqueues every data shard in a just-completed group
// that was reconstructed rather than actually received, since those
// arrived shards were already delivered to the caller on arrival.
func (c *Codec) queueReconstructed(groupID uint64, recovered [][]byte) {
	group := c.decoder.group(groupID)
	if group == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, shard := range recovered {
		if i < len(group.ReceivedMask) && !group.ReceivedMask[i] {
			c.pending = append(c.pending, shard)
		}
	}
}

func (c *Codec) popPending() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, false
	}
	shard := c.pending[0]
	c.pending = c.pending[1:]
	return shard, true
}

func (c *Codec) SetPeer(addr net.Addr) { c.inner.SetPeer(addr) }
func (c *Codec) Peer() net.Addr        { return c.inner.Peer() }

func (c *Codec) SetRecvTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
	c.inner.SetRecvTimeout(d)
}

func (c *Codec) Close() error { return c.inner.Close() }
