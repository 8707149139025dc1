// Package mixer is the sound engine the voice subsystem plays through. It
// tracks which receive channels are playing, pulls and sums them once per
// frame, and hands the mix to a playback sink.
package mixer

import (
	"context"
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/internal/voice"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// Feed is the pull side of the voice subsystem.
type Feed interface {
	GetOutputData(ch int, dest []int16, sampleCount int) int
	OnAudioSourceShutdown(ch int)
}

// outputSeconds sizes the queue between the mixer and the sink.
const outputSeconds = 1

// mouthDecayPerSecond closes an idle mouth fully in a quarter second.
const mouthDecayPerSecond = 4.0

type playing struct {
	handle     int
	entity     int
	proximity  bool
	viewEntity int
}

// Engine implements voice.SoundEngine. Apart from Output, which the sink
// reads from its own goroutine, it is driven by the engine loop alone.
type Engine struct {
	logger  *zap.Logger
	metrics *observe.Metrics
	sink    Sink
	out     *Output

	nextHandle int
	channels   map[int]playing
	mouths     map[int]float64
	overdrive  bool
	started    bool

	acc     audio.Accumulator
	scratch []int16
	mix     []int16
}

var _ voice.SoundEngine = (*Engine)(nil)

// New returns an engine mixing at rate into sink. A nil sink is a NullSink
// and nil metrics record nothing.
func New(logger *zap.Logger, rate int, sink Sink, metrics *observe.Metrics) *Engine {
	if sink == nil {
		sink = NullSink{}
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	if rate <= 0 {
		rate = audio.DefaultOutputSampleRate
	}

	return &Engine{
		logger:   logger,
		metrics:  metrics,
		sink:     sink,
		out:      NewOutput(rate * outputSeconds),
		channels: make(map[int]playing),
		mouths:   make(map[int]float64),
	}
}

// Output returns the mixed stream.
func (e *Engine) Output() *Output {
	return e.out
}

// Init starts the sink. Calling it again is a no-op.
func (e *Engine) Init() error {
	if e.started {
		return nil
	}
	if err := e.sink.Start(e.out); err != nil {
		return err
	}
	e.started = true

	return nil
}

// Term stops the sink and forgets all channels.
func (e *Engine) Term() {
	if e.started {
		if err := e.sink.Close(); err != nil {
			e.logger.Warn("Failed to close playback sink", zap.Error(err))
		}
		e.started = false
	}
	clear(e.channels)
	clear(e.mouths)
	e.EndOverdrive()
}

// Idle lets open mouths fall shut between pulls.
func (e *Engine) Idle(frameTime float64) {
	step := frameTime * mouthDecayPerSecond
	for entity, level := range e.mouths {
		e.mouths[entity] = math.Max(level-step, 0)
	}
}

func (e *Engine) StartChannel(ch, entity int, proximity bool, viewEntity int) int {
	e.nextHandle++
	e.channels[ch] = playing{
		handle:     e.nextHandle,
		entity:     entity,
		proximity:  proximity,
		viewEntity: viewEntity,
	}
	e.logger.Debug("Voice channel started",
		zap.Int("channel", ch),
		zap.Int("entity", entity),
		zap.Int("handle", e.nextHandle))

	return e.nextHandle
}

func (e *Engine) EndChannel(ch, entity int) {
	if _, ok := e.channels[ch]; !ok {
		return
	}
	delete(e.channels, ch)
	e.logger.Debug("Voice channel ended", zap.Int("channel", ch), zap.Int("entity", entity))
}

func (e *Engine) IsSoundPlaying(handle int) bool {
	for _, p := range e.channels {
		if p.handle == handle {
			return true
		}
	}

	return false
}

// Playing returns the channel indices currently mixed, in order.
func (e *Engine) Playing() []int {
	return slices.Sorted(maps.Keys(e.channels))
}

func (e *Engine) StartOverdrive() {
	if e.overdrive {
		return
	}
	e.overdrive = true
	e.metrics.Overdrive.Add(context.Background(), 1)
}

func (e *Engine) EndOverdrive() {
	if !e.overdrive {
		return
	}
	e.overdrive = false
	e.metrics.Overdrive.Add(context.Background(), -1)
}

// Overdrive reports whether voice is ducking other sounds.
func (e *Engine) Overdrive() bool {
	return e.overdrive
}

func (e *Engine) InitMouth(entity int) {
	e.mouths[entity] = 0
}

// MoveMouth opens the mouth to the peak level of samples.
func (e *Engine) MoveMouth(entity int, samples []int16) {
	if _, ok := e.mouths[entity]; !ok {
		return
	}
	e.mouths[entity] = float64(audio.PeakAmplitude(samples)) / 32768
}

func (e *Engine) CloseMouth(entity int) {
	delete(e.mouths, entity)
}

// MouthLevel returns the lip-sync level of entity in [0, 1].
func (e *Engine) MouthLevel(entity int) (float64, bool) {
	level, ok := e.mouths[entity]
	return level, ok
}

// Mix pulls frames samples from every playing channel, sums them with
// saturation and queues the result on the output. Silence is queued when
// nothing plays so the sink clock keeps running. A channel that yields no
// samples is shut down. Mix returns the number of samples queued.
func (e *Engine) Mix(feed Feed, frames int) int {
	if frames <= 0 {
		return 0
	}

	if cap(e.scratch) < frames {
		e.scratch = make([]int16, frames)
		e.mix = make([]int16, frames)
	}
	scratch := e.scratch[:frames]
	mix := e.mix[:frames]

	e.acc.Reset(frames)

	var finished []int
	for _, ch := range e.Playing() {
		n := feed.GetOutputData(ch, scratch, frames)
		if n == 0 {
			finished = append(finished, ch)
			continue
		}
		e.acc.Add(scratch[:n])
	}

	n := e.acc.Output(mix)
	queued := e.out.Write(mix[:n])

	for _, ch := range finished {
		feed.OnAudioSourceShutdown(ch)
		delete(e.channels, ch)
	}

	return queued
}
