package voice

import "go.uber.org/zap"

// Control identifies a setting exposed to the voice settings UI.
type Control int

const (
	ControlMicrophoneVolume Control = iota
	ControlOtherSpeakerScale
	ControlSpeakingVolume
	ControlMicBoost
)

// StartTweakMode loops the local microphone back through channel 0 so the
// user can hear themselves. Other voice channels are ended and new
// assignments are refused until EndTweakMode.
func (s *Subsystem) StartTweakMode() error {
	if s.tweaking {
		return ErrAlreadyTweaking
	}

	if !s.inited && s.enabled {
		s.ForceInit()
	}
	if !s.inited {
		return ErrNotInitialized
	}

	s.EndAllChannels()
	if err := s.RecordStart("", "", ""); err != nil {
		s.logger.Warn("Tweak mode started without capture", zap.Error(err))
	}

	s.AssignChannel(TweakModeEntity, false)
	s.tweaking = true

	return nil
}

func (s *Subsystem) EndTweakMode() error {
	if !s.tweaking {
		return ErrNotTweaking
	}

	s.tweaking = false

	return s.RecordStop()
}

// IsStillTweaking reports whether tweak mode is active.
func (s *Subsystem) IsStillTweaking() bool { return s.tweaking }

// SetControlFloat changes a voice setting. It does nothing before Init.
func (s *Subsystem) SetControlFloat(ctrl Control, v float64) {
	if !s.inited {
		return
	}

	switch ctrl {
	case ControlMicrophoneVolume:
		if s.controls != nil {
			s.controls.SetMicVolume(v)
		}
	case ControlMicBoost:
		if s.controls != nil {
			s.controls.SetMicBoost(v)
		}
	case ControlOtherSpeakerScale:
		s.cfg.MicVolumeScale = v
	}
}

// GetControlFloat reads a voice setting, initializing voice if needed.
// Unknown controls and controls the device does not support read as 1.
func (s *Subsystem) GetControlFloat(ctrl Control) float64 {
	s.ForceInit()
	if !s.inited {
		return 0
	}

	switch ctrl {
	case ControlMicrophoneVolume:
		if s.controls != nil {
			if v, ok := s.controls.MicVolume(); ok {
				return v
			}
		}
	case ControlMicBoost:
		if s.controls != nil {
			if v, ok := s.controls.MicBoost(); ok {
				return v
			}
		}
	case ControlOtherSpeakerScale:
		return s.cfg.MicVolumeScale
	case ControlSpeakingVolume:
		return float64(s.tweakVolume) / 32768
	}

	return 1
}

// Spatialize tracks the listener for the tweak mode loopback sound. It
// returns the view entity to spatialize handle against and whether it
// changed since the last call.
func (s *Subsystem) Spatialize(handle int) (int, bool) {
	c := &s.channels[0]
	if !s.tweaking || c.soundHandle != handle {
		return c.viewEntity, false
	}

	view := s.services.ViewEntity()
	if view == c.viewEntity {
		return view, false
	}

	s.logger.Debug("Voice tweak entity changed",
		zap.Int("from", c.viewEntity),
		zap.Int("to", view))
	c.viewEntity = view

	return view, true
}
