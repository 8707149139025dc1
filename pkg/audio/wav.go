package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WAVFormat describes a PCM wave file.
type WAVFormat struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// MonoFormat is the 16-bit mono format used throughout the voice path.
func MonoFormat(rate int) WAVFormat {
	return WAVFormat{Channels: 1, SampleRate: rate, BitsPerSample: 16}
}

const (
	wavHeaderSize = 44
	wavFormatPCM  = 1
)

var (
	// ErrNotWAV is returned when the input lacks a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")
	// ErrUnsupportedWAV is returned for non-PCM or truncated wave files.
	ErrUnsupportedWAV = errors.New("unsupported wave format")
)

// EncodeWAV writes pcm (already little-endian) with a canonical 44-byte
// header.
func EncodeWAV(w io.Writer, pcm []byte, f WAVFormat) error {
	byteRate := f.SampleRate * f.Channels * f.BitsPerSample / 8
	blockAlign := f.Channels * f.BitsPerSample / 8
	dataSize := uint32(len(pcm))

	var hdr bytes.Buffer
	hdr.Grow(wavHeaderSize)

	write := func(v interface{}) {
		_ = binary.Write(&hdr, binary.LittleEndian, v)
	}

	// RIFF chunk
	hdr.WriteString("RIFF")
	write(dataSize + wavHeaderSize - 8)
	hdr.WriteString("WAVE")

	// fmt  sub-chunk
	hdr.WriteString("fmt ")
	write(uint32(16))
	write(uint16(wavFormatPCM))
	write(uint16(f.Channels))
	write(uint32(f.SampleRate))
	write(uint32(byteRate))
	write(uint16(blockAlign))
	write(uint16(f.BitsPerSample))

	// data sub-chunk
	hdr.WriteString("data")
	write(dataSize)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}

	return nil
}

// WriteWAVFile creates (or truncates) path, making parent directories as
// needed.
func WriteWAVFile(path string, pcm []byte, f WAVFormat) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("wav dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	if err := EncodeWAV(file, pcm, f); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

// DecodeWAV parses a PCM wave stream, skipping unknown chunks, and returns
// the raw sample bytes.
func DecodeWAV(r io.Reader) ([]byte, WAVFormat, error) {
	var f WAVFormat

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, f, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, f, ErrNotWAV
	}

	var haveFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, f, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil || size < 16 {
				return nil, f, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			if binary.LittleEndian.Uint16(body[0:2]) != wavFormatPCM {
				return nil, f, fmt.Errorf("%w: not PCM", ErrUnsupportedWAV)
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, f, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			data := make([]byte, size)
			n, err := io.ReadFull(r, data)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, f, fmt.Errorf("read wav data: %w", err)
			}

			return data[:n], f, nil
		default:
			// Chunks are word aligned.
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, f, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedWAV, id)
			}
		}
	}
}

// ReadWAVFile loads a PCM wave file from disk.
func ReadWAVFile(path string) ([]byte, WAVFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, WAVFormat{}, err
	}
	defer file.Close()

	return DecodeWAV(file)
}
