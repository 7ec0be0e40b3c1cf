package radio

import (
	"time"

	"fmreceiver/audio"
)

// audioEnableParam returns the AUDIO_ENABLE value for the targets.
func audioEnableParam(t audio.Target) uint16 {
	var v uint16
	if t&(audio.TargetI2S|audio.TargetPCM|audio.TargetFMOverSCO|audio.TargetFMOverA2DP) != 0 {
		v |= AUDIO_ENABLE_I2S
	}
	if t&audio.TargetAnalog != 0 {
		v |= AUDIO_ENABLE_ANALOG
	}
	return v
}

// btOperation returns the Bluetooth operation feeding the targets.
func btOperation(t audio.Target) (audio.Operation, bool) {
	switch {
	case t&audio.TargetFMOverSCO != 0:
		return audio.OpFMOverSCO, true
	case t&audio.TargetFMOverA2DP != 0:
		return audio.OpFMOverA2DP, true
	}
	return 0, false
}

// audioOperations lists the coordinator operations the targets need.
func audioOperations(t audio.Target) []audio.Operation {
	var ops []audio.Operation
	if t&audio.RxTargets != 0 {
		ops = append(ops, audio.OpFMRx)
	}
	if op, ok := btOperation(t); ok {
		ops = append(ops, op)
	}
	return ops
}

func containsOperation(ops []audio.Operation, op audio.Operation) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func (r *Receiver) audioRunning(op audio.Operation) bool {
	return containsOperation(r.settings.audioOps, op)
}

// vacResult moves a routing command on according to a coordinator result.
// A pending result parks the command until audioCompleted is called.
func (r *Receiver) vacResult(c *command, op audio.Operation, res audio.Result, unavailable []audio.Resource, next, last int) {
	switch res {
	case audio.Success:
		r.proceed(c, next)
	case audio.Pending:
		c.stage = next
		c.routing.awaiting = true
		r.awaitAudio(op)
	case audio.UnavailableResources:
		c.status = StatusAudioOperationUnavailableResources
		c.routing.unavailable = unavailable
		r.proceed(c, last)
	default:
		r.log.Warnw("audio operation failed", "operation", op.String(), "result", res.String())
		c.status = StatusInternalError
		r.proceed(c, last)
	}
}

// vacFailed checks the outcome of a coordinator operation that completed
// asynchronously.
func (r *Receiver) vacFailed(c *command, last int) bool {
	if !c.routing.awaiting {
		return false
	}
	c.routing.awaiting = false
	if r.last == nil || r.last.kind != txAudio || r.last.audio == audio.Success {
		return false
	}
	if r.last.audio == audio.UnavailableResources {
		c.status = StatusAudioOperationUnavailableResources
		c.routing.unavailable = r.last.unavailable
	} else {
		c.status = StatusInternalError
	}
	r.proceed(c, last)
	return true
}

func (r *Receiver) awaitAudio(op audio.Operation) {
	r.txSeq++
	id := r.txSeq
	r.outstanding = id
	r.audioTx = id
	r.audioOp = op
	r.waitingCC = true

	// an operation the coordinator never completes counts as failed
	r.audioTimer = time.AfterFunc(r.cfg.TransactionTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.audioTx != id {
			return
		}
		r.audioTx = 0
		r.log.Errorw("audio operation timed out", "operation", op.String())
		r.complete(completion{id: id, kind: txAudio, audio: audio.Failed})
	})
}

// audioCompleted is the coordinator listener. The result goes through the
// same completion path as register transactions.
func (r *Receiver) audioCompleted(op audio.Operation, res audio.Result, unavailable []audio.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.audioTx == 0 || op != r.audioOp {
		r.log.Warnw("unexpected audio completion", "operation", op.String(), "result", res.String())
		return
	}
	id := r.audioTx
	r.audioTx = 0
	if r.audioTimer != nil {
		r.audioTimer.Stop()
	}
	r.complete(completion{id: id, kind: txAudio, audio: res, unavailable: unavailable})
}

func (r *Receiver) audioPathChanged() {
	r.emit(Event{Type: EventAudioPathChanged, Status: StatusSuccess, Value: uint32(r.settings.audioTargets), Targets: r.settings.audioTargets})
}

// Enable audio stages.
const (
	audioOnStartRx = iota
	audioOnStartBT
	audioOnEnable
	audioOnFinish
)

func (r *Receiver) stepEnableAudio(c *command) {
	targets := r.settings.audioTargets
	switch c.stage {
	case audioOnStartRx:
		if r.settings.audioEnabled {
			r.finish(c, StatusSuccess, uint32(targets))
			return
		}
		if targets&audio.RxTargets == 0 {
			r.proceed(c, audioOnStartBT)
			return
		}
		c.routing.started = append(c.routing.started, audio.OpFMRx)
		res, busy := r.audio.StartOperation(audio.OpFMRx, targets, r.settings.digitalAudio)
		r.vacResult(c, audio.OpFMRx, res, busy, audioOnStartBT, audioOnFinish)

	case audioOnStartBT:
		if r.vacFailed(c, audioOnFinish) {
			return
		}
		op, ok := btOperation(targets)
		if !ok {
			r.proceed(c, audioOnEnable)
			return
		}
		c.routing.started = append(c.routing.started, op)
		res, busy := r.audio.StartOperation(op, targets, r.settings.digitalAudio)
		r.vacResult(c, op, res, busy, audioOnEnable, audioOnFinish)

	case audioOnEnable:
		if r.vacFailed(c, audioOnFinish) {
			return
		}
		c.stage = audioOnFinish
		r.write(REG_AUDIO_ENABLE, audioEnableParam(targets))

	case audioOnFinish:
		if c.status != StatusSuccess {
			// give back what this command acquired
			for _, op := range c.routing.started {
				r.audio.StopOperation(op)
			}
			r.finish(c, c.status, uint32(targets))
			return
		}
		r.settings.audioEnabled = true
		r.settings.audioOps = c.routing.started
		r.audioPathChanged()
		r.finish(c, StatusSuccess, uint32(targets))

	default:
		r.badStage(c)
	}
}

// Disable audio stages.
const (
	audioOffWrite = iota
	audioOffStopRx
	audioOffStopBT
	audioOffFinish
)

func (r *Receiver) stepDisableAudio(c *command) {
	switch c.stage {
	case audioOffWrite:
		if !r.settings.audioEnabled {
			r.finish(c, StatusSuccess, uint32(r.settings.audioTargets))
			return
		}
		c.stage = audioOffStopRx
		r.write(REG_AUDIO_ENABLE, 0)

	case audioOffStopRx:
		if !r.audioRunning(audio.OpFMRx) {
			r.proceed(c, audioOffStopBT)
			return
		}
		r.vacResult(c, audio.OpFMRx, r.audio.StopOperation(audio.OpFMRx), nil, audioOffStopBT, audioOffFinish)

	case audioOffStopBT:
		if r.vacFailed(c, audioOffFinish) {
			return
		}
		op, ok := btOperation(r.settings.audioTargets)
		if !ok || !r.audioRunning(op) {
			r.proceed(c, audioOffFinish)
			return
		}
		r.vacResult(c, op, r.audio.StopOperation(op), nil, audioOffFinish, audioOffFinish)

	case audioOffFinish:
		if r.vacFailed(c, audioOffFinish) {
			return
		}
		// the outputs are off whatever the coordinator answered
		r.settings.audioEnabled = false
		r.settings.audioOps = nil
		r.audioPathChanged()
		r.finish(c, c.status, uint32(r.settings.audioTargets))

	default:
		r.badStage(c)
	}
}

// Change audio target stages.
const (
	targetChangeRx = iota
	targetStopBT
	targetStartBT
	targetEnable
	targetFinish
)

func (r *Receiver) stepChangeAudioTarget(c *command) {
	next := c.routing.targets
	prev := r.settings.audioTargets

	switch c.stage {
	case targetChangeRx:
		if !r.settings.audioEnabled {
			// applied on the next enable
			r.settings.audioTargets = next
			r.settings.digitalAudio = c.routing.digital
			r.finish(c, StatusSuccess, uint32(next))
			return
		}
		switch {
		case next&audio.RxTargets != 0 && r.audioRunning(audio.OpFMRx):
			res, busy := r.audio.ChangeResource(audio.OpFMRx, next, c.routing.digital)
			r.vacResult(c, audio.OpFMRx, res, busy, targetStopBT, targetFinish)
		case next&audio.RxTargets != 0:
			res, busy := r.audio.StartOperation(audio.OpFMRx, next, c.routing.digital)
			r.vacResult(c, audio.OpFMRx, res, busy, targetStopBT, targetFinish)
		case r.audioRunning(audio.OpFMRx):
			c.routing.stopped = append(c.routing.stopped, audio.OpFMRx)
			r.vacResult(c, audio.OpFMRx, r.audio.StopOperation(audio.OpFMRx), nil, targetStopBT, targetFinish)
		default:
			r.proceed(c, targetStopBT)
		}

	case targetStopBT:
		if r.vacFailed(c, targetFinish) {
			return
		}
		old, hadBT := btOperation(prev)
		op, wantBT := btOperation(next)
		if !hadBT || !r.audioRunning(old) || (wantBT && op == old) {
			r.proceed(c, targetStartBT)
			return
		}
		c.routing.stopped = append(c.routing.stopped, old)
		r.vacResult(c, old, r.audio.StopOperation(old), nil, targetStartBT, targetFinish)

	case targetStartBT:
		if r.vacFailed(c, targetFinish) {
			return
		}
		op, ok := btOperation(next)
		if !ok || r.audioRunning(op) {
			r.proceed(c, targetEnable)
			return
		}
		res, busy := r.audio.StartOperation(op, next, c.routing.digital)
		r.vacResult(c, op, res, busy, targetEnable, targetFinish)

	case targetEnable:
		if r.vacFailed(c, targetFinish) {
			return
		}
		c.stage = targetFinish
		r.write(REG_AUDIO_ENABLE, audioEnableParam(next))

	case targetFinish:
		if c.status != StatusSuccess {
			// the previous targets stay, minus what was already stopped
			var ops []audio.Operation
			for _, op := range r.settings.audioOps {
				if !containsOperation(c.routing.stopped, op) {
					ops = append(ops, op)
				}
			}
			r.settings.audioOps = ops
			r.finish(c, c.status, uint32(prev))
			return
		}
		r.settings.audioTargets = next
		r.settings.digitalAudio = c.routing.digital
		r.settings.audioOps = audioOperations(next)
		r.audioPathChanged()
		r.finish(c, StatusSuccess, uint32(next))

	default:
		r.badStage(c)
	}
}

// Change digital audio configuration stages.
const (
	digitalChange = iota
	digitalEnable
	digitalFinish
)

func (r *Receiver) stepChangeDigitalAudio(c *command) {
	targets := r.settings.audioTargets

	switch c.stage {
	case digitalChange:
		op, ok := btOperation(targets)
		if !ok && targets&(audio.TargetI2S|audio.TargetPCM) != 0 {
			op, ok = audio.OpFMRx, true
		}
		if !r.settings.audioEnabled || !ok {
			r.settings.digitalAudio = c.routing.digital
			r.finish(c, StatusSuccess, uint32(targets))
			return
		}
		r.vacResult(c, op, r.audio.ChangeConfiguration(op, c.routing.digital), nil, digitalEnable, digitalFinish)

	case digitalEnable:
		if r.vacFailed(c, digitalFinish) {
			return
		}
		c.stage = digitalFinish
		r.write(REG_AUDIO_ENABLE, audioEnableParam(targets))

	case digitalFinish:
		if c.status == StatusSuccess {
			r.settings.digitalAudio = c.routing.digital
		}
		r.finish(c, c.status, uint32(targets))

	default:
		r.badStage(c)
	}
}
