package radio

import (
	"time"
)

// afController holds the AF cooldown timer. The timer is armed on every
// low signal trigger; low signal interrupts stay masked until it fires.
type afController struct {
	timer         *time.Timer
	generation    uint64
	timeoutQueued bool
}

func (a *afController) stop() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.generation++
}

func (r *Receiver) armAFTimer() {
	r.af.stop()
	gen := r.af.generation
	r.af.timer = time.AfterFunc(r.cfg.AFCooldown, func() {
		r.afTimerExpired(gen)
	})
}

func (r *Receiver) afTimerExpired(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.af.generation || r.state != StateEnabled {
		return
	}
	r.af.timer = nil
	if r.af.timeoutQueued {
		return
	}
	r.af.timeoutQueued = true
	r.queue.push(&command{typ: cmdAFTimeout})
	r.notify()
}

// AF timeout stages.
const (
	afTimeoutStart = iota
	afTimeoutFinish
)

func (r *Receiver) stepAFTimeout(c *command) {
	switch c.stage {
	case afTimeoutStart:
		if r.settings.afMode == AFOn {
			r.irq.genMask |= INT_LEV
		}
		c.stage = afTimeoutFinish
		r.writeMask(r.irq.genMask)
	case afTimeoutFinish:
		r.finish(c, StatusSuccess, 0)
	default:
		r.badStage(c)
	}
}

func (r *Receiver) afSwitchValid(list []uint32) bool {
	return r.settings.afMode == AFOn && r.tunedFreq != FREQ_UNDEFINED && len(list) > 0
}

// startAFSwitch handles a low signal interrupt. It reports whether a jump
// sequence was started.
func (r *Receiver) startAFSwitch(c *command) bool {
	r.armAFTimer()
	r.irq.genMask &^= INT_LEV

	st := r.parser.Station()
	if !r.afSwitchValid(st.AF) || !st.HasPI {
		if r.debugMode {
			r.log.Debugw("low signal without AF candidates", "freq", r.tunedFreq, "af", st.AF)
		}
		return false
	}

	c.gen.phase = genAFJump
	c.gen.afStage = afSetPI
	c.gen.afIndex = 0
	c.gen.afList = st.AF
	c.gen.prevPI = st.PI
	c.gen.preFreq = r.tunedFreq

	r.emit(Event{Type: EventAFSwitchStart, Status: StatusAFInProgress, PI: st.PI, Freq: r.tunedFreq, AF: st.AF})
	r.stepAFJump(c)
	return true
}

// AF jump stages.
const (
	afSetPI = iota
	afSetPIMask
	afSetFreq
	afEnableInt
	afStart
	afWaitCC
	afReadFreq
	afResult
)

func (r *Receiver) stepAFJump(c *command) {
	g := &c.gen
	switch g.afStage {
	case afSetPI:
		g.afStage = afSetPIMask
		r.write(REG_RDS_PI_SET, g.prevPI)

	case afSetPIMask:
		g.afStage = afSetFreq
		r.write(REG_RDS_PI_MASK_SET, RDS_PI_MASK_ALL)

	case afSetFreq:
		g.afStage = afEnableInt
		r.write(REG_AF_FREQ_SET, r.settings.band.channelIndex(g.afList[g.afIndex]))

	case afEnableInt:
		if r.retryPendingInterrupt() {
			return
		}
		g.afStage = afStart
		r.irq.opMask = INT_FR
		r.writeMask(INT_FR)

	case afStart:
		g.afStage = afWaitCC
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_AF_JUMP)

	case afWaitCC:
		if !r.expect(c, reasonCmdComplete) {
			return
		}
		// the frequency ready interrupt follows
		g.afStage = afReadFreq

	case afReadFreq:
		if !r.expect(c, reasonInterrupt) {
			return
		}
		g.afStage = afResult
		r.read(REG_FREQ_SET, 2)

	case afResult:
		r.irq.opMask = 0
		freq := r.freqFromRegister()
		candidate := g.afList[g.afIndex]

		if freq != g.preFreq {
			r.tunedFreq = freq
			r.parser.SetTuning(r.settings.band.tuning(freq))
			r.parser.Reset(freq, true)
			r.emit(Event{Type: EventAFSwitchComplete, Status: StatusSuccess, PI: g.prevPI, PrevFreq: g.preFreq, Freq: freq})
			r.endAFSwitch(c)
			return
		}

		g.afIndex++
		status := StatusAFInProgress
		if g.afIndex >= len(g.afList) {
			status = StatusFailed
		}
		r.emit(Event{Type: EventAFSwitchToFreqFailed, Status: status, PI: g.prevPI, PrevFreq: g.preFreq, Freq: candidate})

		if g.afIndex >= len(g.afList) {
			r.emit(Event{Type: EventAFSwitchComplete, Status: StatusAFSwitchFailedListExhausted, PI: g.prevPI, PrevFreq: g.preFreq, Freq: g.preFreq})
			r.endAFSwitch(c)
			return
		}
		g.afStage = afSetPI
		r.stepAFJump(c)

	default:
		r.badStage(c)
	}
}

// endAFSwitch returns to the general interrupt stages after a jump.
func (r *Receiver) endAFSwitch(c *command) {
	c.gen.phase = genChecking
	c.gen.afList = nil
	c.stage = genRestoreInt
	r.stepGeneralInterrupt(c)
}

// Set AF mode stages.
const (
	afModeWriteMask = iota
	afModeFinish
)

func (r *Receiver) stepSetAFMode(c *command) {
	switch c.stage {
	case afModeWriteMask:
		mode := AFMode(c.param)
		if mode == AFOn {
			r.irq.genMask |= INT_LEV
		} else {
			r.irq.genMask &^= INT_LEV
			r.af.stop()
		}
		r.settings.afMode = mode
		c.stage = afModeFinish
		r.writeMask(r.irq.genMask)
	case afModeFinish:
		r.finish(c, StatusSuccess, c.param)
	default:
		r.badStage(c)
	}
}
