package transport

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SequenceFilter tracks the newest RTP sequence number per SSRC and rejects
// repeats and packets that arrive after a newer one. Speakers that fall out
// of the cache start fresh.
type SequenceFilter struct {
	mu   sync.Mutex
	last *lru.Cache[uint32, uint16]
}

// NewSequenceFilter returns a filter remembering up to size speakers.
func NewSequenceFilter(size int) (*SequenceFilter, error) {
	c, err := lru.New[uint32, uint16](size)
	if err != nil {
		return nil, err
	}

	return &SequenceFilter{last: c}, nil
}

// Accept reports whether seq is newer than anything seen from ssrc, and
// records it if so.
func (f *SequenceFilter) Accept(ssrc uint32, seq uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.last.Get(ssrc); ok && !sequenceAfter(seq, prev) {
		return false
	}
	f.last.Add(ssrc, seq)

	return true
}

// Forget drops the state for ssrc.
func (f *SequenceFilter) Forget(ssrc uint32) {
	f.last.Remove(ssrc)
}

// Len returns the number of tracked speakers.
func (f *SequenceFilter) Len() int {
	return f.last.Len()
}

// sequenceAfter compares 16-bit sequence numbers across wraparound: a is
// after b when it is at most half the sequence space ahead.
func sequenceAfter(a, b uint16) bool {
	return a != b && a-b < 1<<15
}
