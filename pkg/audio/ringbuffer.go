package audio

import "encoding/binary"

// RingBuffer is a fixed-capacity byte FIFO with independent read and write
// cursors. Writes never block: bytes that do not fit are dropped.
//
// RingBuffer is not safe for concurrent use.
type RingBuffer struct {
	buf   []byte
	read  int // next byte to read
	write int // next byte to write
	size  int // bytes currently stored
}

// NewRingBuffer allocates a ring buffer holding at most capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 0 {
		capacity = 0
	}

	return &RingBuffer{buf: make([]byte, capacity)}
}

// Capacity returns the fixed size of the buffer.
func (r *RingBuffer) Capacity() int {
	return len(r.buf)
}

// ReadAvailable returns the number of bytes that can be read.
func (r *RingBuffer) ReadAvailable() int {
	return r.size
}

// WriteAvailable returns the number of bytes that can be written before
// data starts being dropped.
func (r *RingBuffer) WriteAvailable() int {
	return len(r.buf) - r.size
}

// Flush empties the buffer.
func (r *RingBuffer) Flush() {
	r.read = 0
	r.write = 0
	r.size = 0
}

// Write appends as much of p as fits and returns the number of bytes stored.
func (r *RingBuffer) Write(p []byte) int {
	n := min(len(p), r.WriteAvailable())
	if n == 0 {
		return 0
	}

	first := min(n, len(r.buf)-r.write)
	copy(r.buf[r.write:], p[:first])
	copy(r.buf, p[first:n])

	r.write = (r.write + n) % len(r.buf)
	r.size += n

	return n
}

// Read copies up to len(p) bytes into p and advances the read cursor.
func (r *RingBuffer) Read(p []byte) int {
	n := min(len(p), r.size)
	if n == 0 {
		return 0
	}

	first := min(n, len(r.buf)-r.read)
	copy(p, r.buf[r.read:r.read+first])
	copy(p[first:n], r.buf)

	r.read = (r.read + n) % len(r.buf)
	r.size -= n

	return n
}

// WriteSample stores one little-endian sample. It reports false when the
// sample was dropped.
func (r *RingBuffer) WriteSample(s int16) bool {
	if r.WriteAvailable() < BytesPerSample {
		return false
	}

	var b [BytesPerSample]byte
	binary.LittleEndian.PutUint16(b[:], uint16(s))

	return r.Write(b[:]) == BytesPerSample
}

// WriteSamples stores samples as little-endian PCM and returns the number of
// whole samples written.
func (r *RingBuffer) WriteSamples(samples []int16) int {
	n := min(len(samples), r.WriteAvailable()/BytesPerSample)
	for _, s := range samples[:n] {
		r.WriteSample(s)
	}

	return n
}

// ReadSamples reads whole little-endian samples into dst.
func (r *RingBuffer) ReadSamples(dst []int16) int {
	n := min(len(dst), r.size/BytesPerSample)

	var b [BytesPerSample]byte
	for i := 0; i < n; i++ {
		r.Read(b[:])
		dst[i] = int16(binary.LittleEndian.Uint16(b[:]))
	}

	return n
}
