package voice_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

func TestVoiceWriter_FileNaming(t *testing.T) {
	cfg := testConfig()
	cfg.WriteVoices = true
	h := newHarness(t, cfg)
	h.services.time = 12.7
	require.NoError(t, h.sub.Init(testCodec, testRate))

	speak := func(entity, samples int) {
		require.NoError(t, h.sub.RecordStart("", "", ""))
		ch := h.sub.AssignChannel(entity, false)
		h.sub.AddIncomingData(ch, encode(constant(samples, 100)), 0)
		require.NoError(t, h.sub.RecordStop())
	}

	speak(5, 64)
	speak(5, 32)
	h.services.time = 30
	speak(6, 16)

	dir := filepath.Join(h.services.dir, "voice")
	tests := map[string]int{
		"pl00_slot0-time12.wav": 128,
		"pl00_slot1-time12.wav": 64,
		"pl01_slot0-time30.wav": 32,
	}
	for name, size := range tests {
		data, f, err := audio.ReadWAVFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Len(t, data, size, name)
		assert.Equal(t, testRate, f.SampleRate)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(tests))
}

func TestVoiceWriter_Disconnected(t *testing.T) {
	cfg := testConfig()
	cfg.WriteVoices = true
	h := newHarness(t, cfg)
	h.services.connected = false
	require.NoError(t, h.sub.Init(testCodec, testRate))

	require.NoError(t, h.sub.RecordStart("", "", ""))
	ch := h.sub.AssignChannel(5, false)
	h.sub.AddIncomingData(ch, encode(constant(64, 100)), 0)
	require.NoError(t, h.sub.RecordStop())

	_, err := os.Stat(filepath.Join(h.services.dir, "voice"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVoiceWriter_Disabled(t *testing.T) {
	h := newInited(t)

	require.NoError(t, h.sub.RecordStart("", "", ""))
	ch := h.sub.AssignChannel(5, false)
	h.sub.AddIncomingData(ch, encode(constant(64, 100)), 0)
	require.NoError(t, h.sub.RecordStop())

	_, err := os.Stat(filepath.Join(h.services.dir, "voice"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
