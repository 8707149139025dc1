package codec

import "encoding/binary"

// Packet-based codecs emit a sequence of frames, each prefixed by its
// little-endian uint16 length, so several codec packets can share one voice
// payload.
const frameHeader = 2

// AppendFrame appends one length-prefixed frame to dst.
func AppendFrame(dst, frame []byte) []byte {
	var hdr [frameHeader]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(frame)))
	dst = append(dst, hdr[:]...)

	return append(dst, frame...)
}

// SplitFrames returns the frames contained in payload, or nil when the
// framing is malformed.
func SplitFrames(payload []byte) [][]byte {
	var frames [][]byte
	for len(payload) > 0 {
		if len(payload) < frameHeader {
			return nil
		}
		n := int(binary.LittleEndian.Uint16(payload))
		payload = payload[frameHeader:]
		if n == 0 || n > len(payload) {
			return nil
		}
		frames = append(frames, payload[:n])
		payload = payload[n:]
	}

	return frames
}
