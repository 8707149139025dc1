// Package transport carries compressed voice frames between the local
// engine loop and remote speakers.
package transport

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Packet is one voice payload from a remote speaker, framed the way the
// voice codecs expect.
type Packet struct {
	SSRC      uint32
	Sequence  uint16
	Timestamp uint32
	Payload   []byte
}

// Transport moves voice frames. Packets is safe to read from any goroutine;
// Send may be called from the engine loop while Receive runs elsewhere.
type Transport interface {
	// Open connects the transport. It must be called before Receive or
	// Send.
	Open(ctx context.Context) error
	// Receive pumps inbound and outbound traffic until ctx ends or the
	// transport is closed.
	Receive(ctx context.Context) error
	// Packets delivers frames accepted by the duplicate filter.
	Packets() <-chan Packet
	// Send queues one compressed voice payload for transmission.
	Send(ctx context.Context, payload []byte) error
	Close(ctx context.Context) error
}

// ErrNotConnected is returned by Send before Open or after Close.
var ErrNotConnected = errors.New("transport not connected")

// DefaultQueueSize bounds the inbound and outbound frame queues.
const DefaultQueueSize = 100

// inbox is the bounded, filtered packet queue shared by transports.
type inbox struct {
	logger  *zap.Logger
	filter  *SequenceFilter
	packets chan Packet
}

func newInbox(logger *zap.Logger, filter *SequenceFilter, size int) inbox {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return inbox{
		logger:  logger,
		filter:  filter,
		packets: make(chan Packet, size),
	}
}

// offer filters p and queues it without blocking. It reports whether the
// packet was queued.
func (in inbox) offer(p Packet) bool {
	if in.filter != nil && !in.filter.Accept(p.SSRC, p.Sequence) {
		in.logger.Debug("Dropping duplicate voice packet",
			zap.Uint32("ssrc", p.SSRC),
			zap.Uint16("sequence", p.Sequence))

		return false
	}

	select {
	case in.packets <- p:
		return true
	default:
		in.logger.Debug("Voice packet queue full, dropping packet",
			zap.Uint32("ssrc", p.SSRC),
			zap.Uint16("sequence", p.Sequence))

		return false
	}
}
