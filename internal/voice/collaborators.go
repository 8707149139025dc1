package voice

// SoundEngine plays receive channels and drives lip-sync for their
// entities.
type SoundEngine interface {
	Init() error
	Term()
	Idle(frameTime float64)

	// StartChannel begins pulling ch through GetOutputData and returns a
	// sound handle.
	StartChannel(ch, entity int, proximity bool, viewEntity int) int
	EndChannel(ch, entity int)
	IsSoundPlaying(handle int) bool

	// StartOverdrive ducks other sounds while anyone is speaking.
	StartOverdrive()
	EndOverdrive()

	InitMouth(entity int)
	MoveMouth(entity int, samples []int16)
	CloseMouth(entity int)
}

// SoundServices is the host application as seen by the voice subsystem.
type SoundServices interface {
	// OnChangeVoiceStatus reports talking state for an entity or for one of
	// the Status pseudo-entities.
	OnChangeVoiceStatus(entity int, talking bool)
	ViewEntity() int
	IsConnected() bool
	GameDir() string
	ClientTime() float64
}

// NopSoundServices is a standalone host: always connected, view entity 0,
// files written under the working directory.
type NopSoundServices struct{}

func (NopSoundServices) OnChangeVoiceStatus(int, bool) {}
func (NopSoundServices) ViewEntity() int               { return 0 }
func (NopSoundServices) IsConnected() bool             { return true }
func (NopSoundServices) GameDir() string               { return "." }
func (NopSoundServices) ClientTime() float64           { return 0 }
