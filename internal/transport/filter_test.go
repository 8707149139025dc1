package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voicecomm/internal/transport"
)

func TestSequenceFilter(t *testing.T) {
	tests := map[string]struct {
		seqs []uint16
		want []bool
	}{
		"in order":          {seqs: []uint16{1, 2, 3}, want: []bool{true, true, true}},
		"duplicate":         {seqs: []uint16{5, 5}, want: []bool{true, false}},
		"stale":             {seqs: []uint16{10, 12, 11}, want: []bool{true, true, false}},
		"gap is accepted":   {seqs: []uint16{10, 500}, want: []bool{true, true}},
		"wraparound":        {seqs: []uint16{65534, 65535, 0, 1}, want: []bool{true, true, true, true}},
		"stale across wrap": {seqs: []uint16{1, 65535}, want: []bool{true, false}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := transport.NewSequenceFilter(4)
			require.NoError(t, err)

			for i, seq := range tt.seqs {
				assert.Equal(t, tt.want[i], f.Accept(7, seq), "sequence %d", seq)
			}
		})
	}
}

func TestSequenceFilterPerSpeaker(t *testing.T) {
	f, err := transport.NewSequenceFilter(2)
	require.NoError(t, err)

	assert.True(t, f.Accept(1, 100))
	assert.True(t, f.Accept(2, 100))
	assert.False(t, f.Accept(1, 100))
	assert.Equal(t, 2, f.Len())

	// A third speaker evicts the least recently used one.
	assert.True(t, f.Accept(3, 1))
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Accept(2, 100), "evicted speaker starts fresh")

	f.Forget(3)
	assert.True(t, f.Accept(3, 1))
}

func TestNewSequenceFilterRejectsZeroSize(t *testing.T) {
	_, err := transport.NewSequenceFilter(0)
	assert.Error(t, err)
}
