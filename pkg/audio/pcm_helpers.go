package audio

import (
	"bytes"
	"encoding/binary"
)

// PCMInt16ToLE converts int16 samples to raw little-endian bytes.
func PCMInt16ToLE(samples []int16) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

// LEToPCMInt16 converts raw little-endian bytes back to int16 samples.
// A trailing odd byte is ignored.
func LEToPCMInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	_ = binary.Read(bytes.NewReader(b[:len(out)*2]), binary.LittleEndian, &out)
	return out
}

// PutPCM writes samples into dst as little-endian bytes without allocating
// and returns the number of bytes written.
func PutPCM(dst []byte, samples []int16) int {
	n := min(len(samples), len(dst)/BytesPerSample)
	for i, s := range samples[:n] {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(s))
	}
	return n * BytesPerSample
}

// GetPCM decodes little-endian bytes from src into dst and returns the
// number of samples decoded.
func GetPCM(dst []int16, src []byte) int {
	n := min(len(dst), len(src)/BytesPerSample)
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*BytesPerSample:]))
	}
	return n
}
