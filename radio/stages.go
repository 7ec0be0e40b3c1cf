package radio

// Tune stages.
const (
	tuneSetFreq = iota
	tuneClearFlag
	tuneEnableInt
	tuneStart
	tuneWaitCC
	tuneReadFreq
	tuneRestoreInt
	tuneFinish
)

func (r *Receiver) stepTune(c *command) {
	switch c.stage {
	case tuneSetFreq:
		if !r.settings.band.Contains(c.freq) {
			r.finish(c, StatusInvalidParam, r.tunedFreq)
			return
		}
		c.stage = tuneClearFlag
		r.write(REG_FREQ_SET, r.settings.band.channelIndex(c.freq))

	case tuneClearFlag:
		c.stage = tuneEnableInt
		r.read(REG_FLAG_GET, 2)

	case tuneEnableInt:
		if r.retryPendingInterrupt() {
			return
		}
		c.stage = tuneStart
		r.irq.opMask = INT_FR
		r.writeMask(INT_FR)

	case tuneStart:
		c.stage = tuneWaitCC
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_PRESET)

	case tuneWaitCC:
		if !r.expect(c, reasonCmdComplete) {
			return
		}
		// the frequency ready interrupt follows
		c.stage = tuneReadFreq

	case tuneReadFreq:
		if !r.expect(c, reasonInterrupt) {
			return
		}
		c.stage = tuneRestoreInt
		r.read(REG_FREQ_SET, 2)

	case tuneRestoreInt:
		c.value = r.freqFromRegister()
		c.stage = tuneFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case tuneFinish:
		r.resetStation(c.value)
		r.finish(c, StatusSuccess, c.value)

	default:
		r.badStage(c)
	}
}

// RDS enable stages.
const (
	rdsOnPower = iota
	rdsOnFlush
	rdsOnThreshold
	rdsOnClearFlag
	rdsOnEnableInt
	rdsOnFinish
)

func (r *Receiver) stepEnableRDS(c *command) {
	switch c.stage {
	case rdsOnPower:
		c.stage = rdsOnFlush
		r.write(REG_POWER_SET, POWER_FM_RDS_ON)
	case rdsOnFlush:
		c.stage = rdsOnThreshold
		r.write(REG_RDS_CNTRL_SET, RDS_FLUSH_FIFO)
	case rdsOnThreshold:
		c.stage = rdsOnClearFlag
		r.write(REG_RDS_MEM_SET, RDS_THRESHOLD)
	case rdsOnClearFlag:
		c.stage = rdsOnEnableInt
		r.read(REG_FLAG_GET, 2)
	case rdsOnEnableInt:
		r.irq.genMask |= INT_RDS
		c.stage = rdsOnFinish
		r.writeMask(r.irq.genMask)
	case rdsOnFinish:
		r.settings.rdsOn = true
		r.finish(c, StatusSuccess, 0)
	default:
		r.badStage(c)
	}
}

// RDS disable stages.
const (
	rdsOffPower = iota
	rdsOffRestoreInt
	rdsOffFinish
)

func (r *Receiver) stepDisableRDS(c *command) {
	switch c.stage {
	case rdsOffPower:
		c.stage = rdsOffRestoreInt
		r.write(REG_POWER_SET, POWER_FM_ON)
	case rdsOffRestoreInt:
		r.irq.genMask &^= INT_RDS
		c.stage = rdsOffFinish
		r.writeMask(r.irq.genMask)
	case rdsOffFinish:
		r.settings.rdsOn = false
		r.parser.Reset(r.tunedFreq, false)
		r.finish(c, StatusSuccess, 0)
	default:
		r.badStage(c)
	}
}

// Stages of the single transaction commands.
const (
	simpleStart = iota
	simpleFinish
)

// stepSimple runs the commands made of at most one register transaction.
// Setters write the register then update the cached value; getters either
// answer from the cache or read the register.
func (r *Receiver) stepSimple(c *command) {
	s := &r.settings

	if c.stage == simpleStart {
		c.stage = simpleFinish
		switch c.typ {
		case CmdSetBand:
			r.write(REG_BAND_SET, uint16(c.param))
		case CmdSetMonoStereoMode:
			r.write(REG_MOST_MODE_SET, uint16(c.param))
		case CmdSetMuteMode:
			r.write(REG_MUTE_STATUS_SET, muteRegister(MuteMode(c.param), s.rfMute))
		case CmdSetRFDependentMute:
			r.write(REG_MUTE_STATUS_SET, muteRegister(s.mute, c.enabled))
		case CmdSetRSSIThreshold:
			r.write(REG_SEARCH_LVL_SET, uint16(c.param))
		case CmdSetDeemphasisFilter:
			r.write(REG_DEMPH_MODE_SET, uint16(c.param))
		case CmdSetVolume:
			r.write(REG_VOLUME_SET, volumeGain(uint8(c.param)))
		case CmdSetRDSSystem:
			r.write(REG_RDS_SYSTEM_SET, uint16(c.param))
		case CmdSetChannelSpacing:
			r.write(REG_CHANNEL_SPACING_SET, uint16(c.param/channelStepKHz))
		case CmdGetMonoStereoMode:
			r.read(REG_MOST_MODE_SET, 2)
		case CmdGetTunedFrequency:
			r.read(REG_FREQ_SET, 2)
		case CmdGetRSSI:
			r.read(REG_RSSI_LEVEL_GET, 2)
		case CmdGetChannelSpacing:
			r.read(REG_CHANNEL_SPACING_SET, 2)
		case CmdGetFirmwareVersion:
			r.read(REG_FIRM_VER_GET, 2)
		case CmdIsChannelValid:
			r.read(REG_RX_CHANNEL_GET, 2)
		default:
			// answered from the cache
			r.stepSimple(c)
		}
		return
	}

	if c.stage != simpleFinish {
		r.badStage(c)
		return
	}

	var value uint32
	switch c.typ {
	case CmdSetBand:
		s.band = Band(c.param)
		r.parser.SetTuning(s.band.tuning(r.tunedFreq))
		if r.tunedFreq != FREQ_UNDEFINED && !s.band.Contains(r.tunedFreq) {
			r.resetStation(FREQ_UNDEFINED)
		}
		value = c.param
	case CmdGetBand:
		value = uint32(s.band)
	case CmdSetMonoStereoMode:
		s.monoStereo = MonoStereoMode(c.param)
		value = c.param
	case CmdGetMonoStereoMode:
		value = uint32(r.lastValue)
	case CmdSetMuteMode:
		s.mute = MuteMode(c.param)
		value = c.param
	case CmdGetMuteMode:
		value = uint32(s.mute)
	case CmdSetRFDependentMute:
		s.rfMute = c.enabled
		value = boolValue(c.enabled)
	case CmdGetRFDependentMute:
		value = boolValue(s.rfMute)
	case CmdSetRSSIThreshold:
		s.rssiThreshold = uint8(c.param)
		value = c.param
	case CmdGetRSSIThreshold:
		value = uint32(s.rssiThreshold)
	case CmdSetDeemphasisFilter:
		s.deemphasis = Deemphasis(c.param)
		value = c.param
	case CmdGetDeemphasisFilter:
		value = uint32(s.deemphasis)
	case CmdSetVolume:
		s.volume = uint8(c.param)
		value = c.param
	case CmdGetVolume:
		value = uint32(s.volume)
	case CmdGetTunedFrequency:
		value = r.freqFromRegister()
	case CmdGetRSSI:
		// signed level
		value = uint32(int32(int16(r.lastValue)))
	case CmdSetRDSSystem:
		s.rdsSystem = RDSSystem(c.param)
		value = c.param
	case CmdGetRDSSystem:
		value = uint32(s.rdsSystem)
	case CmdSetRDSGroupMask:
		s.groupMask = c.groupMask
		value = uint32(c.groupMask)
	case CmdGetRDSGroupMask:
		value = uint32(s.groupMask)
	case CmdGetAFSwitchMode:
		value = uint32(s.afMode)
	case CmdSetChannelSpacing:
		s.spacing = ChannelSpacing(c.param)
		value = c.param
	case CmdGetChannelSpacing:
		value = uint32(r.lastValue) * channelStepKHz
	case CmdGetFirmwareVersion:
		s.firmware = r.lastValue
		value = uint32(r.lastValue)
	case CmdIsChannelValid:
		value = boolValue(r.lastValue&RX_CHANNEL_VALID != 0)
	default:
		r.badStage(c)
		return
	}
	r.finish(c, StatusSuccess, value)
}

func boolValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
