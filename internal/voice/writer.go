package voice

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// voiceWriter dumps each channel's decoded audio to a WAV file whenever
// recording stops.
type voiceWriter struct {
	logger   *zap.Logger
	enabled  bool
	dir      string
	services SoundServices
	slots    [NumChannels]writerSlot
}

type writerSlot struct {
	count int
	data  []byte
}

func newVoiceWriter(logger *zap.Logger, cfg config.VoiceConfig, services SoundServices) *voiceWriter {
	return &voiceWriter{
		logger:   logger,
		enabled:  cfg.WriteVoices,
		dir:      cfg.VoiceDir,
		services: services,
	}
}

func (w *voiceWriter) add(ch int, pcm []int16) {
	if !w.enabled || ch < 0 || ch >= NumChannels || len(pcm) == 0 {
		return
	}

	slot := &w.slots[ch]
	start := len(slot.data)
	slot.data = append(slot.data, make([]byte, len(pcm)*audio.BytesPerSample)...)
	audio.PutPCM(slot.data[start:], pcm)
}

func (w *voiceWriter) flush() {
	for i := range w.slots {
		w.slots[i].data = w.slots[i].data[:0]
	}
}

// finish writes every non-empty channel buffer. Disconnected hosts just
// drop the audio.
func (w *voiceWriter) finish(rate int) {
	if !w.services.IsConnected() {
		w.flush()
		return
	}

	for i := range w.slots {
		slot := &w.slots[i]
		if len(slot.data) == 0 {
			continue
		}

		path := w.path(i, slot.count)
		if err := audio.WriteWAVFile(path, slot.data, audio.MonoFormat(rate)); err != nil {
			w.logger.Warn("Unable to write voice file", zap.String("file", path), zap.Error(err))
		} else {
			w.logger.Info("Writing voice file", zap.String("file", path))
		}

		slot.count++
		slot.data = slot.data[:0]
	}
}

func (w *voiceWriter) path(ch, count int) string {
	name := fmt.Sprintf("pl%02d_slot%d-time%d.wav", ch, count, int(w.services.ClientTime()))

	return filepath.Join(w.services.GameDir(), w.dir, name)
}
