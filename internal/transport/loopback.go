package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LoopbackSSRC identifies frames echoed by a Loopback.
const LoopbackSSRC uint32 = 1

// loopbackTimestampStep advances the RTP timestamp by one 20 ms frame at
// the 48 kHz RTP clock.
const loopbackTimestampStep = 960

// Loopback is an in-process transport. With echo enabled every sent frame
// comes back as a packet from LoopbackSSRC; otherwise sends are discarded.
type Loopback struct {
	inbox
	echo bool

	mu     sync.Mutex
	open   bool
	seq    uint16
	ts     uint32
	closed chan struct{}
}

var _ Transport = (*Loopback)(nil)

// NewLoopback returns a closed loopback transport.
func NewLoopback(logger *zap.Logger, filter *SequenceFilter, echo bool, queueSize int) *Loopback {
	return &Loopback{
		inbox: newInbox(logger, filter, queueSize),
		echo:  echo,
	}
}

func (l *Loopback) Open(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		return nil
	}
	l.open = true
	l.closed = make(chan struct{})
	l.logger.Info("Loopback transport open", zap.Bool("echo", l.echo))

	return nil
}

// Receive blocks until ctx ends or the transport is closed; echoed frames
// are queued directly by Send.
func (l *Loopback) Receive(ctx context.Context) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()

	if closed == nil {
		return ErrNotConnected
	}

	select {
	case <-ctx.Done():
	case <-l.closed:
	}

	return nil
}

func (l *Loopback) Packets() <-chan Packet {
	return l.packets
}

func (l *Loopback) Send(_ context.Context, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return ErrNotConnected
	}
	if !l.echo {
		return nil
	}

	l.seq++
	l.ts += loopbackTimestampStep
	l.offer(Packet{
		SSRC:      LoopbackSSRC,
		Sequence:  l.seq,
		Timestamp: l.ts,
		Payload:   append([]byte(nil), frame...),
	})

	return nil
}

// Close is idempotent.
func (l *Loopback) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		l.open = false
		close(l.closed)
	}

	return nil
}
