package voice

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// debugSink collects up to debugSinkBytes of PCM for a diagnostic WAV file.
type debugSink struct {
	path string
	data []byte
}

func newDebugSink(path string) *debugSink {
	return &debugSink{path: path, data: make([]byte, 0, debugSinkBytes)}
}

func (d *debugSink) writePCM(pcm []int16) {
	d.commit(audio.PutPCM(d.tail(), pcm))
}

// tail is the unused capacity; commit marks n bytes of it as written.
func (d *debugSink) tail() []byte { return d.data[len(d.data):cap(d.data)] }
func (d *debugSink) commit(n int) { d.data = d.data[:len(d.data)+n] }

func (d *debugSink) save(rate int) error {
	if err := audio.WriteWAVFile(d.path, d.data, audio.MonoFormat(rate)); err != nil {
		return fmt.Errorf("write %s: %w", d.path, err)
	}

	return nil
}

// RecordStart starts capturing the microphone. The optional file names
// mirror raw capture and decoded receive audio to WAV files when recording
// stops, and micInputFile replaces the microphone with a WAV file played at
// wall-clock pace.
func (s *Subsystem) RecordStart(uncompressedFile, decompressedFile, micInputFile string) error {
	if s.encoder == nil && !s.cloud {
		return ErrNoCodec
	}

	s.writer.flush()
	_ = s.RecordStop()

	if s.encoder != nil {
		s.encoder.ResetState()
	}

	if micInputFile != "" {
		pcm, format, err := audio.ReadWAVFile(micInputFile)
		if err != nil {
			s.logger.Warn("Unable to read mic input file", zap.String("file", micInputFile), zap.Error(err))
		} else {
			s.micInput = audio.LEToPCMInt16(pcm)
			if format.Channels == 2 {
				s.micInput = audio.DownmixStereo(s.micInput)
			}
			s.micPos = 0
			s.micStart = s.now()
		}
	}

	if uncompressedFile != "" {
		s.uncompressed = newDebugSink(uncompressedFile)
	}
	if decompressedFile != "" {
		s.decompressed = newDebugSink(decompressedFile)
	}

	if s.source == nil {
		return ErrCaptureUnavailable
	}

	if s.cloud {
		if err := s.service.StartRecording(); err != nil {
			return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
		}
	} else if !s.source.Start() {
		return ErrCaptureUnavailable
	}

	s.recording = true
	s.services.OnChangeVoiceStatus(StatusLocalRecording, true)

	return nil
}

// UserDesiresStop asks recording to wind down. Audio already captured is
// still returned by GetCompressedData, which calls RecordStop once
// drained.
func (s *Subsystem) UserDesiresStop() {
	if s.stopping {
		return
	}

	s.stopping = true
	s.services.OnChangeVoiceStatus(StatusLocalRecording, false)

	if s.cloud {
		s.service.StopRecording()
	} else if s.source != nil {
		s.source.Stop()
	}
}

// RecordStop ends recording immediately and writes any debug WAV files.
// Write errors are logged and returned.
func (s *Subsystem) RecordStop() error {
	s.micInput = nil

	var errs []error
	for _, d := range []*debugSink{s.uncompressed, s.decompressed} {
		if d == nil {
			continue
		}
		if err := d.save(s.rate); err != nil {
			s.logger.Warn("Unable to write voice debug file", zap.Error(err))
			errs = append(errs, err)
		}
	}
	s.uncompressed = nil
	s.decompressed = nil

	s.writer.finish(s.rate)

	if s.cloud && s.service != nil {
		s.service.StopRecording()
	} else if s.source != nil {
		s.source.Stop()
	}

	s.recording = false
	s.stopping = false

	return errors.Join(errs...)
}

// IsRecording reports whether local capture is being transmitted. Tweak
// mode capture does not count.
func (s *Subsystem) IsRecording() bool { return s.recording && !s.tweaking }

// GetCompressedData compresses whatever the microphone produced since the
// last call into dest and returns the number of bytes written. final
// flushes a partial codec frame.
func (s *Subsystem) GetCompressedData(dest []byte, final bool) int {
	if s.cloud {
		return s.compressedFromService(dest)
	}

	if s.encoder == nil || s.source == nil {
		s.reportActivity(false)
		return 0
	}

	// A local stop drains the source and flushes the codec on every call.
	if s.stopping {
		final = true
	}

	want := min(len(dest)/audio.BytesPerSample, maxRecordSamples)
	got := s.source.RecordedData(s.recordBuf[:want])

	if s.micInput != nil {
		now := s.now()
		due := int(now.Sub(s.micStart).Seconds() * float64(s.rate))
		got = min(want, due, len(s.micInput)-s.micPos)
		copy(s.recordBuf, s.micInput[s.micPos:s.micPos+got])
		s.micPos += got
		s.micStart = now
	} else if got > 0 && s.gate != nil && s.gate.Silent(s.recordBuf[:got]) {
		s.reportActivity(false)
		return 0
	}

	pcm := s.recordBuf[:got]

	start := s.startTimer()
	n := s.encoder.Compress(pcm, dest, final)
	s.endTimer(start, observe.StageCompress)

	if s.uncompressed != nil {
		s.uncompressed.writePCM(pcm)
	}
	s.reportActivity(n > 0)

	if s.stopping && got == 0 {
		_ = s.RecordStop()
	}

	return n
}

func (s *Subsystem) compressedFromService(dest []byte) int {
	rate := min(s.service.OptimalSampleRate(), s.rate)

	_, _, res := s.service.AvailableVoice(rate)
	if res != codec.ResultOK {
		if res == codec.ResultNotRecording && s.recording {
			_ = s.RecordStop()
		}
		s.reportActivity(false)

		return 0
	}

	var raw []byte
	if s.uncompressed != nil {
		raw = s.uncompressed.tail()
	}

	n, rawN, res := s.service.GetVoice(dest, raw, rate)
	if s.uncompressed != nil {
		s.uncompressed.commit(rawN)
	}
	if res != codec.ResultOK {
		s.logger.Debug("Voice service returned no data", zap.Stringer("result", res))
	}
	s.reportActivity(true)

	return n
}

// reportActivity publishes the voice activity pseudo-entity while a gate
// is configured.
func (s *Subsystem) reportActivity(active bool) {
	if s.gate != nil {
		s.services.OnChangeVoiceStatus(StatusVoiceActivity, active)
	}
}
