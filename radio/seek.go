package radio

// Seek stages. The stage is the next one to run, so the hardware search
// is running once the stage went past seekStart.
const (
	seekReadFreq = iota
	seekSetFreq
	seekSetDir
	seekClearFlag
	seekEnableInt
	seekStart
	seekWaitCC
	seekReadResult
	seekRetune
	seekRestoreInt
	seekFinish
)

// Stop seek stages.
const (
	stopSeekStart = iota
	stopSeekReadFreq
	stopSeekRestoreInt
	stopSeekFinish
	stopSeekBeforeStartRestoreInt
	stopSeekBeforeStartFinish
)

// stepSeek dispatches between the seek and the stop seek stages.
func (r *Receiver) stepSeek(c *command) {
	if r.reason == reasonUpperEvent && c.seek.phase == seeking {
		c.stopPending = r.activePending
		switch {
		case c.stage >= seekRetune:
			// the search already ended, finish normally
			r.reason = reasonCmdComplete
		case c.stage <= seekStart:
			c.seek.phase = stoppingSeek
			c.seek.stopStage = stopSeekBeforeStartRestoreInt
		default:
			c.seek.phase = stoppingSeek
			c.seek.stopStage = stopSeekStart
		}
	}

	if c.seek.phase == stoppingSeek {
		r.stepStopSeek(c)
		return
	}

	switch c.stage {
	case seekReadFreq:
		c.stage = seekSetFreq
		r.read(REG_FREQ_SET, 2)

	case seekSetFreq:
		c.seek.index = r.settings.spacing.nextIndex(r.settings.band, r.lastValue, c.seek.direction)
		c.stage = seekSetDir
		r.write(REG_FREQ_SET, c.seek.index)

	case seekSetDir:
		dir := uint16(SEARCH_DIR_UP)
		if c.seek.direction == SeekDown {
			dir = SEARCH_DIR_DOWN
		}
		c.stage = seekClearFlag
		r.write(REG_SEARCH_DIR_SET, dir)

	case seekClearFlag:
		c.stage = seekEnableInt
		r.read(REG_FLAG_GET, 2)

	case seekEnableInt:
		if r.retryPendingInterrupt() {
			return
		}
		c.stage = seekStart
		r.irq.opMask = INT_FR | INT_BL
		r.writeMask(INT_FR | INT_BL)

	case seekStart:
		c.stage = seekWaitCC
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_AUTO_SEARCH)

	case seekWaitCC:
		if !r.expect(c, reasonCmdComplete) {
			return
		}
		// the frequency ready or band limit interrupt follows
		c.stage = seekReadResult

	case seekReadResult:
		if !r.expect(c, reasonInterrupt) {
			return
		}
		c.status = StatusSuccess
		if r.irq.flag&INT_BL != 0 {
			c.status = StatusSeekReachedBandLimit
		}
		c.stage = seekRetune
		r.read(REG_FREQ_SET, 2)

	case seekRetune:
		c.seek.index = r.lastValue
		c.value = r.freqFromRegister()
		if r.cfg.DisableSeekRetune {
			r.proceed(c, seekRestoreInt)
			return
		}
		// Firmware workaround: the search can leave the tuner in a state
		// where the found channel is lost unless it is set once more.
		c.stage = seekRestoreInt
		r.write(REG_FREQ_SET, c.seek.index)

	case seekRestoreInt:
		c.stage = seekFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case seekFinish:
		r.resetStation(c.value)
		r.finish(c, c.status, c.value)

	default:
		r.badStage(c)
	}
}

func (r *Receiver) stepStopSeek(c *command) {
	switch c.seek.stopStage {
	case stopSeekStart:
		c.seek.stopStage = stopSeekReadFreq
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_STOP_SEARCH)

	case stopSeekReadFreq:
		// the tuner stays where the search was stopped
		c.seek.stopStage = stopSeekRestoreInt
		r.read(REG_FREQ_SET, 2)

	case stopSeekRestoreInt:
		c.value = r.freqFromRegister()
		c.seek.stopStage = stopSeekFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case stopSeekFinish:
		r.resetStation(c.value)
		r.finish(c, StatusSeekStopped, c.value)

	case stopSeekBeforeStartRestoreInt:
		// the search never started: nothing to stop on the chip
		c.seek.stopStage = stopSeekBeforeStartFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case stopSeekBeforeStartFinish:
		r.finish(c, StatusSeekStopped, r.tunedFreq)

	default:
		r.badStage(c)
	}
}
