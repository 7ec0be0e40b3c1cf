// Package config loads the configuration of the receiver application.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"fmreceiver/audio"
	"fmreceiver/radio"
	"fmreceiver/rds"
)

// Transport kinds.
const (
	TransportI2C    = "i2c"
	TransportPeriph = "periph"
	TransportSerial = "serial"
)

// Config represents the complete configuration of the receiver application
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Audio     AudioConfig     `yaml:"audio"`
	Display   DisplayConfig   `yaml:"display"`
	Log       LogConfig       `yaml:"log"`
	Debug     bool            `yaml:"debug"`
}

// TransportConfig selects how the chip is reached
type TransportConfig struct {
	Kind string `yaml:"kind"`

	// Bus and Address are used by the gobot I2C transport, PeriphBus by
	// the periph one.
	Bus       int    `yaml:"bus"`
	PeriphBus string `yaml:"periphBus"`
	Address   int    `yaml:"address"`
	IRQPin    string `yaml:"irqPin"`

	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baudRate"`

	// PollInterval is used when no interrupt source is available
	PollInterval time.Duration `yaml:"pollInterval"`
}

// ReceiverConfig holds the tuner settings
type ReceiverConfig struct {
	Band               string        `yaml:"band"`
	Frequency          uint32        `yaml:"frequency"`
	Spacing            uint32        `yaml:"spacing"`
	Volume             uint8         `yaml:"volume"`
	Mute               string        `yaml:"mute"`
	RFMute             bool          `yaml:"rfMute"`
	RSSIThreshold      uint8         `yaml:"rssiThreshold"`
	Deemphasis         string        `yaml:"deemphasis"`
	Mono               bool          `yaml:"mono"`
	RDS                bool          `yaml:"rds"`
	RDSSystem          string        `yaml:"rdsSystem"`
	AF                 bool          `yaml:"af"`
	AFCooldown         time.Duration `yaml:"afCooldown"`
	MaxPendingCommands int           `yaml:"maxPendingCommands"`
	TransactionTimeout time.Duration `yaml:"transactionTimeout"`
	DisableSeekRetune  bool          `yaml:"disableSeekRetune"`
	InitScript         []ScriptLine  `yaml:"initScript"`
}

// ScriptLine is one init script command, params as hex
type ScriptLine struct {
	Opcode uint16 `yaml:"opcode"`
	Params string `yaml:"params"`
}

// AudioConfig holds the audio routing settings
type AudioConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Targets    []string `yaml:"targets"`
	SampleRate uint32   `yaml:"sampleRate"`
	Channels   uint8    `yaml:"channels"`
}

// DisplayConfig holds the station display settings
type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
	Bus     int  `yaml:"bus"`
	Address int  `yaml:"address"`
}

// LogConfig holds the logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load loads the configuration from defaults, the given file (or the one
// named by FMRX_CONFIG) and environment variables.
func Load(filename string) (*Config, error) {
	cfg := getDefaultConfig()

	if filename == "" {
		filename = os.Getenv("FMRX_CONFIG")
	}
	if filename != "" {
		if err := loadFromFile(cfg, filename); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:         TransportI2C,
			Bus:          1,
			PeriphBus:    "",
			Address:      0x22,
			BaudRate:     115200,
			PollInterval: 50 * time.Millisecond,
		},
		Receiver: ReceiverConfig{
			Band:               "europe-us",
			Frequency:          87500,
			Spacing:            100,
			Volume:             radio.DefaultVolume,
			Mute:               "off",
			RSSIThreshold:      radio.DefaultRSSIThreshold,
			Deemphasis:         "50us",
			RDS:                true,
			RDSSystem:          "rds",
			AF:                 false,
			AFCooldown:         radio.DefaultAFCooldown,
			MaxPendingCommands: radio.DefaultMaxPendingCommands,
			TransactionTimeout: radio.DefaultTransactionTimeout,
		},
		Audio: AudioConfig{
			Enabled:    true,
			Targets:    []string{"analog"},
			SampleRate: 48000,
			Channels:   2,
		},
		Display: DisplayConfig{
			Bus:     1,
			Address: 0x27,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error

	if kind := os.Getenv("FMRX_TRANSPORT"); kind != "" {
		cfg.Transport.Kind = kind
	}
	if device := os.Getenv("FMRX_DEVICE"); device != "" {
		cfg.Transport.Device = device
	}
	if pin := os.Getenv("FMRX_IRQ_PIN"); pin != "" {
		cfg.Transport.IRQPin = pin
	}
	if freq := os.Getenv("FMRX_FREQUENCY"); freq != "" {
		v, err := strconv.ParseUint(freq, 10, 32)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("FMRX_FREQUENCY: %w", err))
		} else {
			cfg.Receiver.Frequency = uint32(v)
		}
	}
	if volume := os.Getenv("FMRX_VOLUME"); volume != "" {
		v, err := strconv.ParseUint(volume, 10, 8)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("FMRX_VOLUME: %w", err))
		} else {
			cfg.Receiver.Volume = uint8(v)
		}
	}
	if level := os.Getenv("FMRX_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv("FMRX_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if debug := os.Getenv("FMRX_DEBUG"); debug != "" {
		v, err := strconv.ParseBool(debug)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("FMRX_DEBUG: %w", err))
		} else {
			cfg.Debug = v
		}
	}

	return result.ErrorOrNil()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Transport.Kind {
	case TransportI2C, TransportPeriph:
		if c.Transport.Address <= 0 || c.Transport.Address > 0x7f {
			result = multierror.Append(result, fmt.Errorf("invalid i2c address 0x%x", c.Transport.Address))
		}
	case TransportSerial:
		if c.Transport.Device == "" {
			result = multierror.Append(result, fmt.Errorf("serial transport needs a device"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("invalid transport %q, must be one of: %v",
			c.Transport.Kind, []string{TransportI2C, TransportPeriph, TransportSerial}))
	}
	if c.Transport.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll interval %s must be positive", c.Transport.PollInterval))
	}

	if _, err := c.ReceiverConfig(nil); err != nil {
		result = multierror.Append(result, err)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid log level %q", c.Log.Level))
	}

	if c.Display.Enabled && (c.Display.Address <= 0 || c.Display.Address > 0x7f) {
		result = multierror.Append(result, fmt.Errorf("invalid display address 0x%x", c.Display.Address))
	}

	return result.ErrorOrNil()
}

// ReceiverConfig converts the settings into the engine configuration.
func (c *Config) ReceiverConfig(log *zap.SugaredLogger) (radio.ReceiverConfig, error) {
	var result *multierror.Error
	rc := c.Receiver

	out := radio.ReceiverConfig{
		ChannelSpacing:     radio.ChannelSpacing(rc.Spacing),
		Volume:             rc.Volume,
		RFDependentMute:    rc.RFMute,
		RSSIThreshold:      rc.RSSIThreshold,
		RDSGroupMask:       rds.GroupMaskAll,
		AFCooldown:         rc.AFCooldown,
		MaxPendingCommands: rc.MaxPendingCommands,
		TransactionTimeout: rc.TransactionTimeout,
		DisableSeekRetune:  rc.DisableSeekRetune,
		DebugMode:          c.Debug,
		Log:                log,
	}

	switch strings.ToLower(rc.Band) {
	case "europe-us", "europe", "us":
		out.Band = radio.BandEuropeUS
	case "japan":
		out.Band = radio.BandJapan
	default:
		result = multierror.Append(result, fmt.Errorf("invalid band %q", rc.Band))
	}
	if rc.Frequency != 0 && !out.Band.Contains(rc.Frequency) {
		result = multierror.Append(result, fmt.Errorf("frequency %d kHz outside of band %s", rc.Frequency, out.Band))
	}
	if !out.ChannelSpacing.Valid() {
		result = multierror.Append(result, fmt.Errorf("invalid channel spacing %d kHz", rc.Spacing))
	}
	if rc.Volume > radio.MaxVolume {
		result = multierror.Append(result, fmt.Errorf("volume %d above %d", rc.Volume, radio.MaxVolume))
	}
	if rc.RSSIThreshold < radio.MinRSSIThreshold || rc.RSSIThreshold > radio.MaxRSSIThreshold {
		result = multierror.Append(result, fmt.Errorf("rssi threshold %d outside [%d, %d]",
			rc.RSSIThreshold, radio.MinRSSIThreshold, radio.MaxRSSIThreshold))
	}

	switch strings.ToLower(rc.Mute) {
	case "off", "":
		out.MuteMode = radio.MuteOff
	case "on", "mute":
		out.MuteMode = radio.MuteOn
	case "attenuate":
		out.MuteMode = radio.MuteAttenuate
	default:
		result = multierror.Append(result, fmt.Errorf("invalid mute mode %q", rc.Mute))
	}

	switch rc.Deemphasis {
	case "50us":
		out.Deemphasis = radio.Deemphasis50us
	case "75us":
		out.Deemphasis = radio.Deemphasis75us
	default:
		result = multierror.Append(result, fmt.Errorf("invalid de-emphasis filter %q", rc.Deemphasis))
	}

	switch strings.ToLower(rc.RDSSystem) {
	case "rds":
		out.RDSSystem = radio.SystemRDS
	case "rbds":
		out.RDSSystem = radio.SystemRBDS
	default:
		result = multierror.Append(result, fmt.Errorf("invalid rds system %q", rc.RDSSystem))
	}

	if rc.Mono {
		out.MonoStereoMode = radio.Mono
	}
	if rc.AF {
		out.AFMode = radio.AFOn
	}

	for i, line := range rc.InitScript {
		params, err := parseHex(line.Params)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("init script line %d: %w", i, err))
			continue
		}
		out.InitScript = append(out.InitScript, radio.ScriptCommand{Opcode: line.Opcode, Params: params})
	}

	targets, err := ParseTargets(c.Audio.Targets)
	if err != nil {
		result = multierror.Append(result, err)
	}
	out.AudioTargets = targets
	out.DigitalAudio = audio.DigitalConfig{
		SampleRate: audio.SampleRate(c.Audio.SampleRate),
		Channels:   c.Audio.Channels,
	}
	if err = out.DigitalAudio.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err = result.ErrorOrNil(); err != nil {
		return radio.ReceiverConfig{}, err
	}
	return out, nil
}

// ParseTargets converts audio target names into a target mask.
func ParseTargets(names []string) (audio.Target, error) {
	var result *multierror.Error
	t := audio.TargetNone
	for _, name := range names {
		switch strings.ToLower(name) {
		case "i2s":
			t |= audio.TargetI2S
		case "analog":
			t |= audio.TargetAnalog
		case "pcm":
			t |= audio.TargetPCM
		case "fm-over-sco", "sco":
			t |= audio.TargetFMOverSCO
		case "fm-over-a2dp", "a2dp":
			t |= audio.TargetFMOverA2DP
		default:
			result = multierror.Append(result, fmt.Errorf("invalid audio target %q", name))
		}
	}
	return t, result.ErrorOrNil()
}

func parseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, " ", ""))
}
