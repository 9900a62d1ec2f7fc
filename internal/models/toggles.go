package models

// Toggles is the feature switch set consulted by the engine and classifier.
// It is passed by value so a detection is a pure function of (message, toggles).
type Toggles struct {
	BotEnabled bool `json:"bot_enabled"`

	// Per-source-kind monitoring
	Channels bool `json:"channels"`
	Groups   bool `json:"groups"`
	Users    bool `json:"users"`

	// Per-platform reporting
	PumpFun  bool `json:"pumpfun"`
	Moonshot bool `json:"moonshot"`
	Raydium  bool `json:"raydium"`
	Birdeye  bool `json:"birdeye"`
	Native   bool `json:"native"`
}

// DefaultToggles enables everything
func DefaultToggles() Toggles {
	return Toggles{
		BotEnabled: true,
		Channels:   true,
		Groups:     true,
		Users:      true,
		PumpFun:    true,
		Moonshot:   true,
		Raydium:    true,
		Birdeye:    true,
		Native:     true,
	}
}

// MonitorsKind reports whether messages from the given source kind are processed
func (t Toggles) MonitorsKind(kind SourceKind) bool {
	switch kind {
	case SourceChannel:
		return t.Channels
	case SourceGroup:
		return t.Groups
	case SourceUser:
		return t.Users
	}
	return false
}

// HintEnabled reports whether the platform behind a hint may be reported
func (t Toggles) HintEnabled(h Hint) bool {
	switch h {
	case HintPumpFun:
		return t.PumpFun
	case HintMoonshot:
		return t.Moonshot
	case HintRaydium:
		return t.Raydium
	case HintBirdeye:
		return t.Birdeye
	}
	return false
}

// PlatformEnabled reports whether detections labeled p may be emitted.
// Unknown is only ever produced from Birdeye evidence.
func (t Toggles) PlatformEnabled(p Platform) bool {
	switch p {
	case PlatformPumpFun:
		return t.PumpFun
	case PlatformMoonshot:
		return t.Moonshot
	case PlatformRaydium:
		return t.Raydium
	case PlatformNative:
		return t.Native
	case PlatformUnknown:
		return t.Birdeye
	}
	return false
}
