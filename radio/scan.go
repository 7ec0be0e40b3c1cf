package radio

import (
	"encoding/binary"
)

// Complete scan stages.
const (
	scanClearFlag = iota
	scanEnableInt
	scanStart
	scanWaitCC
	scanReadCount
	scanReadChannels
	scanRestoreInt
	scanFinish
)

// Stop complete scan stages.
const (
	stopScanStart = iota
	stopScanReadFreq
	stopScanRestoreInt
	stopScanFinish
	stopScanBeforeStartRestoreInt
	stopScanBeforeStartFinish
)

// scanRunning reports whether the chip is scanning at the given stage.
func scanRunning(stage int) bool {
	return stage == scanWaitCC || stage == scanReadCount
}

// stepCompleteScan dispatches between the scan, the progress report and
// the stop stages.
func (r *Receiver) stepCompleteScan(c *command) {
	if c.scan.phase == scanProgress && (r.reason == reasonCmdComplete || r.reason == reasonUpperEvent) {
		// the frequency read for the progress report completed
		r.answerProgress(c, r.freqFromRegister())
		c.scan.phase = scanning
		if r.reason == reasonCmdComplete {
			// back to waiting for the end of the scan
			return
		}
	}

	if r.reason == reasonUpperEvent && c.scan.phase == scanning {
		switch r.active {
		case upperScanProgress:
			r.scanProgressRequested(c)
			return
		case upperStopScan:
			c.stopPending = r.activePending
			switch {
			case c.stage >= scanReadChannels:
				r.reason = reasonCmdComplete
			case scanRunning(c.stage):
				c.scan.phase = stoppingScan
				c.scan.stopStage = stopScanStart
			default:
				c.scan.phase = stoppingScan
				c.scan.stopStage = stopScanBeforeStartRestoreInt
			}
		}
	}

	if c.scan.phase == stoppingScan {
		r.stepStopScan(c)
		return
	}

	switch c.stage {
	case scanClearFlag:
		c.stage = scanEnableInt
		r.read(REG_FLAG_GET, 2)

	case scanEnableInt:
		if r.retryPendingInterrupt() {
			return
		}
		c.stage = scanStart
		r.irq.opMask = INT_FR
		r.writeMask(INT_FR)

	case scanStart:
		c.stage = scanWaitCC
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_COMPLETE_SCAN)

	case scanWaitCC:
		if !r.expect(c, reasonCmdComplete) {
			return
		}
		// the frequency ready interrupt ends the scan
		c.stage = scanReadCount

	case scanReadCount:
		if !r.expect(c, reasonInterrupt) {
			return
		}
		c.stage = scanReadChannels
		r.read(REG_RX_CHANNEL_GET, 2)

	case scanReadChannels:
		c.scan.count = int(r.lastValue & RX_CHANNEL_COUNT_MASK)
		if c.scan.count == 0 {
			r.proceed(c, scanRestoreInt)
			return
		}
		c.stage = scanRestoreInt
		r.read(REG_RDS_DATA_GET, c.scan.count*2)

	case scanRestoreInt:
		if c.scan.count > 0 && r.last != nil {
			c.scan.channels = r.decodeChannels(r.last.data, c.scan.count)
		}
		c.stage = scanFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case scanFinish:
		r.finish(c, StatusSuccess, uint32(len(c.scan.channels)))

	default:
		r.badStage(c)
	}
}

// scanProgressRequested reads the frequency the scan currently is at. Out
// of the hardware scan the last tuned frequency is reported right away.
func (r *Receiver) scanProgressRequested(c *command) {
	if !scanRunning(c.stage) {
		r.answerProgress(c, r.tunedFreq)
		r.scanResume(c)
		return
	}
	if c.stage == scanWaitCC && r.upperAfterCC {
		// the start command already completed
		c.stage = scanReadCount
	}
	c.scan.phase = scanProgress
	c.scan.progress = r.activePending
	r.read(REG_FREQ_SET, 2)
}

// scanResume runs the current stage again for the completion the upper
// event took the place of.
func (r *Receiver) scanResume(c *command) {
	if !r.upperAfterCC {
		return
	}
	r.reason = reasonCmdComplete
	r.stepCompleteScan(c)
}

func (r *Receiver) answerProgress(c *command, freq uint32) {
	p := c.scan.progress
	if p == nil {
		p = r.activePending
	}
	c.scan.progress = nil
	r.emit(Event{Type: EventCmdDone, Cmd: CmdCompleteScanProgress, Status: StatusSuccess, Value: freq}, p)
}

func (r *Receiver) stepStopScan(c *command) {
	switch c.scan.stopStage {
	case stopScanStart:
		c.scan.stopStage = stopScanReadFreq
		r.write(REG_TUNER_MODE_SET, TUNER_MODE_STOP_SEARCH)

	case stopScanReadFreq:
		c.scan.stopStage = stopScanRestoreInt
		r.read(REG_FREQ_SET, 2)

	case stopScanRestoreInt:
		c.value = r.freqFromRegister()
		c.scan.stopStage = stopScanFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case stopScanFinish:
		r.resetStation(c.value)
		r.finish(c, StatusCompleteScanStopped, c.value)

	case stopScanBeforeStartRestoreInt:
		c.scan.stopStage = stopScanBeforeStartFinish
		r.irq.opMask = 0
		r.writeMask(r.irq.genMask)

	case stopScanBeforeStartFinish:
		r.finish(c, StatusCompleteScanStopped, r.tunedFreq)

	default:
		r.badStage(c)
	}
}

// decodeChannels converts the little endian channel indexes reported by the
// chip into frequencies.
func (r *Receiver) decodeChannels(data []byte, count int) []uint32 {
	channels := make([]uint32, 0, count)
	for i := 0; i < count && 2*i+1 < len(data); i++ {
		idx := binary.LittleEndian.Uint16(data[2*i:])
		channels = append(channels, r.settings.band.frequency(idx))
	}
	return channels
}
