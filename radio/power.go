package radio

import (
	"io"
)

// Power on stages.
const (
	powerOnOpen = iota
	powerOnReadASICID
	powerOnReadASICVersion
	powerOnScript
	powerOnDefaults
	powerOnEnableInt
	powerOnFinish
)

type registerWrite struct {
	opcode uint8
	value  uint16
}

// defaultWrites returns the configuration written after power on.
func (r *Receiver) defaultWrites() []registerWrite {
	s := &r.settings
	return []registerWrite{
		{REG_MOST_MODE_SET, uint16(s.monoStereo)},
		{REG_MOST_BLEND_SET, MOST_BLEND_ON},
		{REG_DEMPH_MODE_SET, uint16(s.deemphasis)},
		{REG_SEARCH_LVL_SET, uint16(s.rssiThreshold)},
		{REG_BAND_SET, uint16(s.band)},
		{REG_CHANNEL_SPACING_SET, uint16(s.spacing / channelStepKHz)},
		{REG_MUTE_STATUS_SET, muteRegister(s.mute, s.rfMute)},
		{REG_RDS_MEM_SET, RDS_THRESHOLD},
		{REG_RDS_SYSTEM_SET, uint16(s.rdsSystem)},
		{REG_VOLUME_SET, volumeGain(s.volume)},
		{REG_AUDIO_ENABLE, 0},
		{REG_INTX_CONFIG, INTX_ACTIVE_HIGH},
	}
}

func (r *Receiver) stepPowerOn(c *command) {
	switch c.stage {
	case powerOnOpen:
		if r.state != StateDisabled {
			r.finish(c, StatusFailed, 0)
			return
		}
		if o, ok := r.client.(Opener); ok {
			if err := o.Open(); err != nil {
				r.log.Errorw("opening transport failed", "error", err)
				r.finish(c, StatusInternalError, 0)
				return
			}
		}
		r.state = StateEnabling
		r.resetStation(FREQ_UNDEFINED)
		r.irq = interrupts{genMask: INT_MAL | INT_STIC}
		if r.settings.afMode == AFOn {
			r.irq.genMask |= INT_LEV
		}
		c.stage = powerOnReadASICID
		r.write(REG_POWER_SET, POWER_FM_ON)

	case powerOnReadASICID:
		// the chip needs some time to wake up
		c.stage = powerOnReadASICVersion
		r.readAfter(r.cfg.WakeupDelay, REG_ASIC_ID_GET, 2)

	case powerOnReadASICVersion:
		r.settings.asicID = r.lastValue
		r.parser.SetSwappedBytes(r.settings.asicID != ASIC_ID_NO_SWAP)
		c.stage = powerOnScript
		r.read(REG_ASIC_VER_GET, 2)

	case powerOnScript:
		if c.index == 0 {
			r.settings.asicVersion = r.lastValue
		}
		if c.index < len(r.cfg.InitScript) {
			cmd := r.cfg.InitScript[c.index]
			c.index++
			r.script(cmd.Opcode, cmd.Params)
			return
		}
		c.index = 0
		r.proceed(c, powerOnDefaults)

	case powerOnDefaults:
		writes := r.defaultWrites()
		if c.index < len(writes) {
			w := writes[c.index]
			c.index++
			r.write(w.opcode, w.value)
			return
		}
		r.proceed(c, powerOnEnableInt)

	case powerOnEnableInt:
		c.stage = powerOnFinish
		r.writeMask(r.irq.genMask)

	case powerOnFinish:
		r.state = StateEnabled
		r.log.Infow("receiver enabled", "asic_id", r.settings.asicID, "asic_version", r.settings.asicVersion)
		r.finish(c, StatusSuccess, 0)

	default:
		r.badStage(c)
	}
}

// Power off stages.
const (
	powerOffStart = iota
	powerOffClose
)

func (r *Receiver) stepPowerOff(c *command) {
	switch c.stage {
	case powerOffStart:
		r.state = StateDisabling
		r.irq.genMask = 0
		r.irq.opMask = 0
		r.af.stop()
		c.stage = powerOffClose
		r.write(REG_POWER_SET, POWER_OFF)

	case powerOffClose:
		if cl, ok := r.client.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				r.log.Warnw("closing transport failed", "error", err)
			}
		}
		for _, op := range r.settings.audioOps {
			r.audio.StopOperation(op)
		}
		r.settings.audioOps = nil
		r.settings.audioEnabled = false
		r.settings.rdsOn = false
		r.resetStation(FREQ_UNDEFINED)
		r.state = StateDisabled
		r.finish(c, StatusSuccess, 0)

	default:
		r.badStage(c)
	}
}
