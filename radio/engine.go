package radio

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"fmreceiver/audio"
)

// callReason tells a stage why it is being invoked.
type callReason int

const (
	reasonStart callReason = iota
	reasonCmdComplete
	reasonInterrupt
	reasonUpperEvent
)

func (c callReason) String() string {
	switch c {
	case reasonStart:
		return "start"
	case reasonCmdComplete:
		return "command-complete"
	case reasonInterrupt:
		return "interrupt"
	case reasonUpperEvent:
		return "upper-event"
	}
	return fmt.Sprintf("callReason(%d)", int(c))
}

// upperEvent is an out of band request for the running command.
type upperEvent int

const (
	upperNone upperEvent = iota
	upperStopSeek
	upperScanProgress
	upperStopScan
)

func (u upperEvent) String() string {
	switch u {
	case upperNone:
		return "none"
	case upperStopSeek:
		return "stop-seek"
	case upperScanProgress:
		return "complete-scan-progress"
	case upperStopScan:
		return "stop-complete-scan"
	}
	return fmt.Sprintf("upperEvent(%d)", int(u))
}

func (u upperEvent) command() CommandType {
	switch u {
	case upperStopSeek:
		return CmdStopSeek
	case upperScanProgress:
		return CmdCompleteScanProgress
	}
	return CmdStopCompleteScan
}

type txKind int

const (
	txWrite txKind = iota
	txRead
	txScript
	txAudio
)

type transaction struct {
	id           uint64
	kind         txKind
	opcode       uint8
	value        uint16
	length       int
	script       uint16
	params       []byte
	delay        time.Duration
	forInterrupt bool
}

// completion is the result of a transaction, or of a pending audio
// coordinator operation.
type completion struct {
	id           uint64
	kind         txKind
	forInterrupt bool
	data         []byte
	err          error

	audio       audio.Result
	unavailable []audio.Resource
}

// process runs one scheduling round: completions and upper events first,
// then the queue head, then interrupts.
func (r *Receiver) process() {
	if !r.irq.reading {
		r.processEvents()
		r.processCommands()
	}
	r.processInterrupts()
}

func (r *Receiver) processEvents() {
	if res := r.cmdResult; res != nil {
		r.cmdResult = nil
		r.waitingCC = false
		if res.err != nil {
			r.transportFailed(res.err)
			return
		}

		r.last = res
		r.lastValue = beUint16(res.data)

		if r.deferred {
			// the upper event replaces the completion, which the stage
			// handles as already received
			r.deferred = false
			up, p := r.takeUpper()
			if r.upperApplies(up) {
				r.upperAfterCC = true
				r.invokeUpper(up, p)
				return
			}
			r.rejectUpper(up, p)
		}
		r.invoke(reasonCmdComplete, upperNone)
		return
	}

	if r.upper != upperNone && !r.deferred {
		if r.waitingCC {
			r.deferred = true
			return
		}
		up, p := r.takeUpper()
		if r.upperApplies(up) {
			r.upperAfterCC = false
			r.invokeUpper(up, p)
			return
		}
		r.rejectUpper(up, p)
	}
}

func (r *Receiver) takeUpper() (upperEvent, *Pending) {
	up, p := r.upper, r.upperPending
	r.upper = upperNone
	r.upperPending = nil
	return up, p
}

func (r *Receiver) invokeUpper(up upperEvent, p *Pending) {
	r.activePending = p
	r.invoke(reasonUpperEvent, up)
	r.activePending = nil
}

// rejectUpper answers an upper event that no longer matches the running
// command.
func (r *Receiver) rejectUpper(up upperEvent, p *Pending) {
	if r.debugMode {
		r.log.Debugw("dropping upper event", "event", up)
	}
	status := StatusCompleteScanNotInProgress
	if up == upperStopSeek {
		status = StatusSeekNotInProgress
	}
	r.emit(Event{Type: EventCmdDone, Cmd: up.command(), Status: status, Value: r.tunedFreq}, p)
}

func (r *Receiver) upperApplies(up upperEvent) bool {
	c := r.curr
	if c == nil || c.failed {
		return false
	}
	switch up {
	case upperStopSeek:
		return c.typ == CmdSeek && c.seek.phase == seeking
	case upperScanProgress:
		return c.typ == CmdCompleteScan && c.scan.phase == scanning
	case upperStopScan:
		return c.typ == CmdCompleteScan && c.scan.phase != stoppingScan
	}
	return false
}

func (r *Receiver) processCommands() {
	if r.curr != nil || r.queue.len() == 0 {
		return
	}
	c := r.queue.pop()
	r.curr = c
	if c.typ != CmdEnable && r.state != StateEnabled {
		// a disable ran before the command got its turn
		r.finish(c, StatusContextNotEnabled, r.tunedFreq)
		return
	}
	if r.debugMode {
		r.log.Debugw("starting command", "cmd", c.typ.String(), "queued", r.queue.len())
	}
	r.invoke(reasonStart, upperNone)
}

// invoke calls the step function of the current command.
func (r *Receiver) invoke(reason callReason, up upperEvent) {
	if r.curr == nil {
		return
	}
	r.reason = reason
	r.active = up
	r.step(r.curr)
}

// proceed runs the next stage right away, keeping the call reason.
func (r *Receiver) proceed(c *command, stage int) {
	c.stage = stage
	r.step(c)
}

func (r *Receiver) step(c *command) {
	if c.failed {
		r.finish(c, StatusInternalError, 0)
		return
	}
	switch c.typ {
	case CmdEnable:
		r.stepPowerOn(c)
	case CmdDisable:
		r.stepPowerOff(c)
	case CmdTune:
		r.stepTune(c)
	case CmdSeek:
		r.stepSeek(c)
	case CmdCompleteScan:
		r.stepCompleteScan(c)
	case CmdEnableRDS:
		r.stepEnableRDS(c)
	case CmdDisableRDS:
		r.stepDisableRDS(c)
	case CmdSetAFSwitchMode:
		r.stepSetAFMode(c)
	case CmdEnableAudio:
		r.stepEnableAudio(c)
	case CmdDisableAudio:
		r.stepDisableAudio(c)
	case CmdChangeAudioTarget:
		r.stepChangeAudioTarget(c)
	case CmdChangeDigitalAudioConfig:
		r.stepChangeDigitalAudio(c)
	case cmdGeneralInterrupt:
		r.stepGeneralInterrupt(c)
	case cmdAFTimeout:
		r.stepAFTimeout(c)
	default:
		r.stepSimple(c)
	}
}

// expect asserts the call reason of a stage. A mismatch panics in debug
// mode and fails the command otherwise.
func (r *Receiver) expect(c *command, reason callReason) bool {
	if r.reason == reason {
		return true
	}
	r.violation(c, fmt.Sprintf("stage %d called with %s, expected %s", c.stage, r.reason, reason))
	return false
}

func (r *Receiver) badStage(c *command) {
	r.violation(c, fmt.Sprintf("unknown stage %d", c.stage))
}

func (r *Receiver) violation(c *command, msg string) {
	if r.debugMode {
		panic(fmt.Sprintf("radio: %s: %s", c.typ, msg))
	}
	r.log.Errorw("sequencing violation", "cmd", c.typ.String(), "error", msg)
	r.fail(c)
}

func (r *Receiver) transportFailed(err error) {
	c := r.curr
	if c == nil {
		r.log.Warnw("transaction failed without a command", "error", err)
		return
	}
	r.log.Errorw("transaction failed", "cmd", c.typ.String(), "stage", c.stage, "error", err)

	switch c.typ {
	case CmdEnable:
		r.state = StateDisabled
	case CmdDisable:
		r.state = StateDisabled
		r.resetStation(FREQ_UNDEFINED)
	}
	r.fail(c)
}

// fail ends c with an internal error. When c left the chip with its own
// interrupt mask, the general mask is written back first and the terminal
// event follows that write.
func (r *Receiver) fail(c *command) {
	r.irq.opMask = 0
	if c.failed || r.state != StateEnabled || r.irq.fmMask == r.irq.genMask {
		r.finish(c, StatusInternalError, 0)
		return
	}
	c.failed = true
	r.writeMask(r.irq.genMask)
}

func (r *Receiver) submit(t transaction) {
	r.txSeq++
	t.id = r.txSeq
	r.outstanding = t.id
	if !t.forInterrupt {
		r.waitingCC = true
	}
	if r.debugMode {
		r.log.Debugw("transaction", "id", t.id, "kind", t.kind, "opcode", fmt.Sprintf("0x%02x", t.opcode), "value", fmt.Sprintf("0x%04x", t.value), "length", t.length)
	}
	go r.perform(t)
}

func (r *Receiver) perform(t transaction) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-r.quit:
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.TransactionTimeout)
	defer cancel()

	res := completion{id: t.id, kind: t.kind, forInterrupt: t.forInterrupt}
	switch t.kind {
	case txWrite:
		res.err = r.client.Write(ctx, t.opcode, t.value)
	case txRead:
		res.data, res.err = r.client.Read(ctx, t.opcode, t.length)
		if res.err == nil && len(res.data) < t.length {
			res.err = fmt.Errorf("short read of register 0x%02x: %d of %d bytes", t.opcode, len(res.data), t.length)
		}
	case txScript:
		res.err = r.client.Script(ctx, t.script, t.params)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete(res)
}

func (r *Receiver) complete(res completion) {
	if res.id != r.outstanding || r.state == StateDestroyed {
		r.log.Warnw("dropping stale completion", "id", res.id, "outstanding", r.outstanding)
		return
	}
	r.outstanding = 0
	if res.forInterrupt {
		r.intResult = &res
	} else {
		r.cmdResult = &res
	}
	r.notify()
}

func (r *Receiver) write(opcode uint8, value uint16) {
	r.submit(transaction{kind: txWrite, opcode: opcode, value: value})
}

func (r *Receiver) read(opcode uint8, length int) {
	r.submit(transaction{kind: txRead, opcode: opcode, length: length})
}

func (r *Receiver) readAfter(delay time.Duration, opcode uint8, length int) {
	r.submit(transaction{kind: txRead, opcode: opcode, length: length, delay: delay})
}

func (r *Receiver) script(opcode uint16, params []byte) {
	r.submit(transaction{kind: txScript, script: opcode, params: params})
}

func (r *Receiver) writeMask(mask uint16) {
	r.irq.fmMask = mask
	r.write(REG_INT_MASK_SET, mask)
}

// retryPendingInterrupt clears a latched interrupt before operation
// interrupts are enabled. The calling stage runs again once the flag
// register was read.
func (r *Receiver) retryPendingInterrupt() bool {
	if !r.irq.pending {
		return false
	}
	r.irq.pending = false
	r.read(REG_FLAG_GET, 2)
	return true
}

func (r *Receiver) terminalEvent(c *command, status Status, value uint32) Event {
	ev := Event{Type: EventCmdDone, Cmd: c.typ, Status: status, Value: value}
	switch c.typ {
	case CmdCompleteScan:
		ev.Type = EventCompleteScanDone
		ev.Channels = c.scan.channels
	case CmdEnableAudio, CmdDisableAudio, CmdChangeAudioTarget, CmdChangeDigitalAudioConfig:
		ev.Targets = r.settings.audioTargets
		ev.Unavailable = c.routing.unavailable
	}
	return ev
}

// finish ends the command with its single terminal event.
func (r *Receiver) finish(c *command, status Status, value uint32) {
	if r.curr == c {
		r.curr = nil
	}
	switch c.typ {
	case cmdGeneralInterrupt:
		r.generalInterruptDone()
	case cmdAFTimeout:
		r.af.timeoutQueued = false
	default:
		r.emit(r.terminalEvent(c, status, value), c.pending, c.stopPending)
	}
	r.notify()
}

func (r *Receiver) resetStation(freq uint32) {
	r.tunedFreq = freq
	r.parser.SetTuning(r.settings.band.tuning(freq))
	r.parser.Reset(freq, false)
}

func (r *Receiver) freqFromRegister() uint32 {
	return r.settings.band.frequency(r.lastValue)
}

func beUint16(data []byte) uint16 {
	switch len(data) {
	case 0:
		return 0
	case 1:
		return uint16(data[0])
	}
	return binary.BigEndian.Uint16(data)
}
