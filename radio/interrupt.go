package radio

import (
	"fmt"
)

// interrupts holds the interrupt multiplexer state.
type interrupts struct {
	// genMask holds the general interrupts enabled while idle, opMask the
	// interrupts awaited by the current command and fmMask what was last
	// written to the chip.
	genMask uint16
	opMask  uint16
	fmMask  uint16

	flag    uint16
	pending bool
	reading bool

	// genQueued is set while a general interrupt command is queued or
	// running, genBits collects the bits it has to handle.
	genQueued bool
	genBits   uint16
}

func (r *Receiver) processInterrupts() {
	if res := r.intResult; res != nil {
		r.intResult = nil
		r.irq.reading = false
		if res.err != nil {
			r.log.Errorw("reading interrupt flags failed", "error", res.err)
			r.notify()
			return
		}
		r.dispatchInterrupt(beUint16(res.data))
		r.notify()
		return
	}

	// completions are drained before a new interrupt is dispatched
	if !r.irq.pending || r.irq.reading || r.waitingCC {
		return
	}
	r.irq.pending = false
	if r.state != StateEnabled {
		return
	}
	r.irq.reading = true
	r.submit(transaction{kind: txRead, opcode: REG_FLAG_GET, length: 2, forInterrupt: true})
}

// dispatchInterrupt hands the flags to the waiting command or to the
// general interrupt command.
func (r *Receiver) dispatchInterrupt(flag uint16) {
	r.irq.flag = flag
	set := flag & r.irq.fmMask
	if r.debugMode {
		r.log.Debugw("interrupt", "flag", fmt.Sprintf("0x%04x", flag), "mask", fmt.Sprintf("0x%04x", r.irq.fmMask), "op", fmt.Sprintf("0x%04x", r.irq.opMask))
	}

	if set&r.irq.opMask != 0 && r.curr != nil {
		r.invoke(reasonInterrupt, upperNone)
		return
	}

	// zero bits still go through the general path so that the mask is
	// written again
	r.irq.genBits |= set & r.irq.genMask
	if r.irq.genQueued {
		return
	}
	r.irq.genQueued = true
	r.queue.push(&command{typ: cmdGeneralInterrupt})
}

func (r *Receiver) generalInterruptDone() {
	r.irq.genQueued = false
	if r.irq.genBits != 0 {
		r.irq.genQueued = true
		r.queue.push(&command{typ: cmdGeneralInterrupt})
	}
}

// General interrupt stages.
const (
	genStart = iota
	genMalfunction
	genStereo
	genStereoRead
	genRDS
	genRDSRead
	genRDSFlagCleared
	genLowSignal
	genRestoreInt
	genFinish
)

func (r *Receiver) stepGeneralInterrupt(c *command) {
	if c.gen.phase == genAFJump {
		r.stepAFJump(c)
		return
	}

	for {
		switch c.stage {
		case genStart:
			c.gen.bits = r.irq.genBits
			r.irq.genBits = 0
			c.stage = genMalfunction

		case genMalfunction:
			if c.gen.bits&INT_MAL != 0 {
				r.log.Errorw("chip reported a malfunction", "flag", fmt.Sprintf("0x%04x", r.irq.flag))
			}
			c.stage = genStereo

		case genStereo:
			if c.gen.bits&INT_STIC == 0 {
				c.stage = genRDS
				continue
			}
			c.stage = genStereoRead
			r.read(REG_STEREO_GET, 2)
			return

		case genStereoRead:
			mode := Stereo
			if r.lastValue == 0 {
				mode = Mono
			}
			r.emit(Event{Type: EventMonoStereoChanged, Status: StatusSuccess, Mode: mode, Value: uint32(mode)})
			c.stage = genRDS

		case genRDS:
			if c.gen.bits&INT_RDS == 0 || !r.settings.rdsOn {
				c.stage = genLowSignal
				continue
			}
			c.stage = genRDSRead
			r.read(REG_RDS_DATA_GET, RDS_THRESHOLD*rdsBlockSize)
			return

		case genRDSRead:
			if r.last != nil {
				for _, e := range r.parser.Feed(r.last.data, r.settings.groupMask) {
					r.emit(fromRDS(e))
				}
			}
			// reading the flags avoids an empty RDS interrupt
			c.stage = genRDSFlagCleared
			r.read(REG_FLAG_GET, 2)
			return

		case genRDSFlagCleared:
			c.stage = genLowSignal

		case genLowSignal:
			c.stage = genRestoreInt
			if c.gen.bits&INT_LEV != 0 && r.startAFSwitch(c) {
				return
			}

		case genRestoreInt:
			// must stay the last action so no general interrupt is lost
			c.stage = genFinish
			r.irq.opMask = 0
			r.writeMask(r.irq.genMask)
			return

		case genFinish:
			r.finish(c, StatusSuccess, 0)
			return

		default:
			r.badStage(c)
			return
		}
	}
}
