// Package codec provides the compressor/decompressor adapters used by the
// voice subsystem. A Codec is created per direction and per receive channel so
// that predictive state is never shared between speakers.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Codec is a stateful voice compressor/decompressor.
type Codec interface {
	// Init allocates codec state for the given quality level.
	Init(quality int) error
	// Compress encodes pcm into out and returns the number of bytes written.
	// final flushes any samples the codec is holding for a partial frame.
	Compress(pcm []int16, out []byte, final bool) int
	// Decompress decodes in into pcm and returns the number of samples
	// written. Malformed input yields 0.
	Decompress(in []byte, pcm []int16) int
	// ResetState clears predictive history.
	ResetState()
	// Release frees codec resources. The codec must not be used afterwards.
	Release()
	// SampleRate reports the rate of the PCM produced by Decompress.
	SampleRate() int
}

// Kind distinguishes locally computed codecs from ones proxied to a voice
// service.
type Kind int

const (
	KindLocal Kind = iota
	KindCloud
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindCloud:
		return "cloud"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Well-known codec names.
const (
	NameOpus  = "vaudio_opus"
	NameCELT  = "vaudio_celt"
	NamePCM   = "vaudio_pcm"
	NameCloud = "cloud"
	nameSteam = "steam"

	// FallbackName is the codec most likely to work for local use.
	FallbackName = NameCELT
)

var (
	// ErrUnknownCodec is returned for names that are not registered.
	ErrUnknownCodec = errors.New("unknown voice codec")
	// ErrNotInitialized is returned when a codec is used before Init.
	ErrNotInitialized = errors.New("codec not initialized")
	// ErrUnsupportedRate is returned when a codec cannot run at a rate.
	ErrUnsupportedRate = errors.New("unsupported sample rate")
)

// IsCloud reports whether name selects the service-backed codec.
func IsCloud(name string) bool {
	n := strings.ToLower(name)

	return n == NameCloud || n == nameSteam
}

// KindOf returns the variant selected by name.
func KindOf(name string) Kind {
	if IsCloud(name) {
		return KindCloud
	}

	return KindLocal
}

// Factory creates an uninitialized local codec running at sampleRate.
type Factory func(sampleRate int) (Codec, error)

type registration struct {
	factory     Factory
	defaultRate int
}

// Registry maps codec names to factories. Names are matched case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// DefaultRegistry returns a registry holding the built-in local codecs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameOpus, 24_000, NewOpusVoice)
	r.Register(NameCELT, 24_000, NewOpusCELT)
	r.Register(NamePCM, 22_050, NewPCM)

	return r
}

// Register adds or replaces a codec.
func (r *Registry) Register(name string, defaultRate int, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[strings.ToLower(name)] = registration{factory: f, defaultRate: defaultRate}
}

// Has reports whether name is a registered local codec.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[strings.ToLower(name)]

	return ok
}

// Valid reports whether name can be passed to voice initialization.
func (r *Registry) Valid(name string) bool {
	return IsCloud(name) || r.Has(name)
}

// DefaultSampleRate returns the preferred rate for name, 0 for the cloud
// codec (service optimal rate) and -1 when name is unknown.
func (r *Registry) DefaultSampleRate(name string) int {
	if IsCloud(name) {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return -1
	}

	return e.defaultRate
}

// New creates an uninitialized codec instance.
func (r *Registry) New(name string, sampleRate int) (Codec, error) {
	r.mu.RLock()
	e, ok := r.entries[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}

	c, err := e.factory(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("create codec %q: %w", name, err)
	}

	return c, nil
}

// Names lists registered local codecs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
