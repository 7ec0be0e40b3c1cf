package radio

import (
	"fmt"

	"fmreceiver/rds"
)

const channelStepKHz = 50

// Band is the frequency band of the receiver.
type Band int

// Bands.
const (
	BandEuropeUS Band = iota
	BandJapan
)

func (b Band) String() string {
	switch b {
	case BandEuropeUS:
		return "europe-us"
	case BandJapan:
		return "japan"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// Valid reports whether b is a known band.
func (b Band) Valid() bool {
	return b == BandEuropeUS || b == BandJapan
}

// Limits returns the first and last frequency of the band in kHz.
func (b Band) Limits() (first, last uint32) {
	if b == BandJapan {
		return 76000, 90000
	}
	return 87500, 108000
}

// Contains reports whether freq (kHz) is inside the band.
func (b Band) Contains(freq uint32) bool {
	first, last := b.Limits()
	return freq >= first && freq <= last
}

func (b Band) channelIndex(freq uint32) uint16 {
	first, _ := b.Limits()
	return uint16((freq - first) / channelStepKHz)
}

func (b Band) frequency(index uint16) uint32 {
	first, _ := b.Limits()
	return first + uint32(index)*channelStepKHz
}

func (b Band) maxIndex() uint16 {
	first, last := b.Limits()
	return uint16((last - first) / channelStepKHz)
}

func (b Band) tuning(freq uint32) rds.Tuning {
	first, _ := b.Limits()
	t := rds.Tuning{BandStart: first, MaxAFCode: rds.MaxAFCodeEurope, Frequency: freq}
	if b == BandJapan {
		t.MaxAFCode = rds.MaxAFCodeJapan
	}
	return t
}

// ChannelSpacing is the seek step in kHz.
type ChannelSpacing uint32

// Channel spacings.
const (
	Spacing50kHz  ChannelSpacing = 50
	Spacing100kHz ChannelSpacing = 100
	Spacing200kHz ChannelSpacing = 200
)

// Valid reports whether s is a supported spacing.
func (s ChannelSpacing) Valid() bool {
	return s == Spacing50kHz || s == Spacing100kHz || s == Spacing200kHz
}

// nextIndex moves one channel spacing from index, wrapping at the band
// edges.
func (s ChannelSpacing) nextIndex(b Band, index uint16, dir SeekDirection) uint16 {
	step := int(s / channelStepKHz)
	next := int(index)
	if dir == SeekUp {
		next += step
	} else {
		next -= step
	}
	last := int(b.maxIndex())
	switch {
	case next < 0:
		return uint16(last)
	case next > last:
		return 0
	}
	return uint16(next)
}

// SeekDirection of a seek.
type SeekDirection int

// Seek directions.
const (
	SeekUp SeekDirection = iota
	SeekDown
)

func (d SeekDirection) String() string {
	if d == SeekDown {
		return "down"
	}
	return "up"
}

// MonoStereoMode selects forced mono or stereo reception.
type MonoStereoMode int

// Mono/stereo modes. For EventMonoStereoChanged the value is the pilot
// indicator.
const (
	Stereo MonoStereoMode = iota
	Mono
)

func (m MonoStereoMode) String() string {
	if m == Mono {
		return "mono"
	}
	return "stereo"
}

// MuteMode of the audio output.
type MuteMode int

// Mute modes.
const (
	MuteOff MuteMode = iota
	MuteOn
	MuteAttenuate
)

func (m MuteMode) String() string {
	switch m {
	case MuteOff:
		return "off"
	case MuteOn:
		return "mute"
	case MuteAttenuate:
		return "attenuate"
	}
	return fmt.Sprintf("MuteMode(%d)", int(m))
}

func muteRegister(mode MuteMode, rfDependent bool) uint16 {
	var v uint16 = MUTE_OFF
	switch mode {
	case MuteOn:
		v = MUTE_AC
	case MuteAttenuate:
		v = MUTE_SOFT_FORCE
	}
	if rfDependent {
		v |= MUTE_RF_DEPENDENT
	}
	return v
}

// Deemphasis filter time constant.
type Deemphasis int

// De-emphasis filters.
const (
	Deemphasis50us Deemphasis = iota
	Deemphasis75us
)

// RDSSystem selects the European RDS or the American RBDS flavour.
type RDSSystem int

// RDS systems.
const (
	SystemRDS RDSSystem = iota
	SystemRBDS
)

// AFMode turns automatic alternate frequency switching on or off.
type AFMode int

// AF switch modes.
const (
	AFOff AFMode = iota
	AFOn
)

// MaxVolume is the highest volume step.
const MaxVolume = 70

func volumeGain(volume uint8) uint16 {
	gain := uint32(volume) * VOLUME_GAIN_STEP
	if gain > VOLUME_GAIN_MAX {
		gain = VOLUME_GAIN_MAX
	}
	return uint16(gain)
}

// RSSI threshold limits used by seek.
const (
	MinRSSIThreshold = 1
	MaxRSSIThreshold = 127
)
