package radio

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

// Defaults of ReceiverConfig.
const (
	DefaultMaxPendingCommands = 20
	DefaultAFCooldown         = 30 * time.Second
	DefaultTransactionTimeout = 2 * time.Second
	DefaultStartTimeout       = 10 * time.Second
	DefaultVolume             = 35
	DefaultRSSIThreshold      = 7
	DefaultWakeupDelay        = 20 * time.Millisecond
)

// ReceiverConfig holds the configuration needed by the Receiver.
type ReceiverConfig struct {
	Band            Band
	ChannelSpacing  ChannelSpacing
	Volume          uint8
	MuteMode        MuteMode
	RFDependentMute bool
	RSSIThreshold   uint8
	Deemphasis      Deemphasis
	MonoStereoMode  MonoStereoMode
	RDSSystem       RDSSystem
	RDSGroupMask    rds.GroupMask
	AFMode          AFMode

	// AudioTargets and DigitalAudio are used when audio routing is
	// enabled without explicit targets.
	AudioTargets audio.Target
	DigitalAudio audio.DigitalConfig

	// InitScript is sent to the chip during power on.
	InitScript []ScriptCommand

	MaxPendingCommands int
	AFCooldown         time.Duration
	TransactionTimeout time.Duration
	StartTimeout       time.Duration
	WakeupDelay        time.Duration

	// DisableSeekRetune drops the frequency write that ends every seek.
	// Some firmware revisions lose the tuned channel without it.
	DisableSeekRetune bool

	DebugMode bool
	Log       *zap.SugaredLogger

	// Audio is the audio routing coordinator. An in-process audio.Router
	// is used when nil.
	Audio audio.Coordinator

	// OnEvent, when set, receives every event in order.
	OnEvent func(Event)
}

// Validate ensures that our Receiver configuration is valid. Out of range
// values are adjusted and logged.
//
//noinspection GoUnnecessarilyExportedIdentifiers
func (c *ReceiverConfig) Validate() error {
	if c.Log == nil {
		c.Log = zap.NewNop().Sugar()
	}

	if !c.Band.Valid() {
		return fmt.Errorf("unknown band %d", c.Band)
	}

	if c.ChannelSpacing == 0 {
		c.ChannelSpacing = Spacing100kHz
	} else if !c.ChannelSpacing.Valid() {
		c.Log.Warnf("Channel spacing %d kHz not supported, defaulting to %d kHz", c.ChannelSpacing, Spacing100kHz)
		c.ChannelSpacing = Spacing100kHz
	}

	if c.Volume > MaxVolume {
		c.Log.Warnf("Volume %d > %d. Adjusting to maximum of %d.", c.Volume, MaxVolume, MaxVolume)
		c.Volume = MaxVolume
	}

	if c.RSSIThreshold < MinRSSIThreshold {
		c.RSSIThreshold = DefaultRSSIThreshold
	} else if c.RSSIThreshold > MaxRSSIThreshold {
		c.Log.Warnf("RSSI threshold %d > %d. Adjusting to maximum of %d.", c.RSSIThreshold, MaxRSSIThreshold, MaxRSSIThreshold)
		c.RSSIThreshold = MaxRSSIThreshold
	}

	if c.MuteMode < MuteOff || c.MuteMode > MuteAttenuate {
		return fmt.Errorf("unknown mute mode %d", c.MuteMode)
	}

	if c.RDSGroupMask == 0 {
		c.RDSGroupMask = rds.GroupMaskAll
	}

	if c.AudioTargets == audio.TargetNone {
		c.AudioTargets = audio.TargetAnalog
	}
	if c.DigitalAudio.SampleRate == 0 {
		c.DigitalAudio = audio.DigitalConfig{SampleRate: 48000, Channels: 2}
	}
	if err := c.DigitalAudio.Validate(); err != nil {
		return fmt.Errorf("digital audio: %w", err)
	}

	if c.MaxPendingCommands <= 0 {
		c.MaxPendingCommands = DefaultMaxPendingCommands
	}
	if c.AFCooldown <= 0 {
		c.AFCooldown = DefaultAFCooldown
	}
	if c.TransactionTimeout <= 0 {
		c.TransactionTimeout = DefaultTransactionTimeout
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.WakeupDelay <= 0 {
		c.WakeupDelay = DefaultWakeupDelay
	}

	if c.Audio == nil {
		c.Audio = audio.NewRouter(c.Log.Named("audio"))
	}

	return nil
}
