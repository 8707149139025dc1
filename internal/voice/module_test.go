package voice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/voice"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
)

func TestModule(t *testing.T) {
	var (
		sub *voice.Subsystem
		svc codec.Service
	)

	app := fxtest.New(t,
		fx.Supply(config.Default()),
		fx.Provide(
			func() *zap.Logger { return zaptest.NewLogger(t) },
			func() voice.SoundEngine { return newFakeEngine() },
		),
		voice.Module,
		fx.Populate(&sub, &svc),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, sub)
	assert.False(t, sub.Initialized())
	assert.True(t, sub.Enabled())
	assert.True(t, svc.Available())
	assert.Equal(t, 24_000, svc.OptimalSampleRate())
}
