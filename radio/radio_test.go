package radio

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/gobottest"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

var _ gobot.Device = (*Receiver)(nil)

const testPI = 0x54A8

// rdsGroup encodes four block words with error free status bytes.
func rdsGroup(a, b, c, d uint16) []byte {
	return []byte{
		byte(a >> 8), byte(a), rds.BlockA,
		byte(b >> 8), byte(b), rds.BlockB,
		byte(c >> 8), byte(c), rds.BlockC,
		byte(d >> 8), byte(d), rds.BlockD,
	}
}

// psGroups encodes a full PS name as four 0A groups carrying AF codes.
func psGroups(name string, afCodes ...[2]byte) []byte {
	var out []byte
	for i := 0; i < 4; i++ {
		var c uint16 = 0xE0CD
		if i < len(afCodes) {
			c = uint16(afCodes[i][0])<<8 | uint16(afCodes[i][1])
		}
		out = append(out, rdsGroup(testPI, uint16(i), c, uint16(name[i*2])<<8|uint16(name[i*2+1]))...)
	}
	return out
}

func TestReceiverConfigValidate(t *testing.T) {
	cfg := ReceiverConfig{Volume: 200, RSSIThreshold: 200, ChannelSpacing: 75}
	gobottest.Assert(t, cfg.Validate(), nil)
	gobottest.Assert(t, cfg.Volume, uint8(MaxVolume))
	gobottest.Assert(t, cfg.RSSIThreshold, uint8(MaxRSSIThreshold))
	gobottest.Assert(t, cfg.ChannelSpacing, Spacing100kHz)
	gobottest.Assert(t, cfg.RDSGroupMask, rds.GroupMaskAll)
	gobottest.Assert(t, cfg.MaxPendingCommands, DefaultMaxPendingCommands)
	gobottest.Assert(t, cfg.AFCooldown, DefaultAFCooldown)
	gobottest.Refute(t, cfg.Audio, nil)

	cfg = ReceiverConfig{Band: Band(7)}
	gobottest.Refute(t, cfg.Validate(), nil)

	cfg = ReceiverConfig{DigitalAudio: audio.DigitalConfig{SampleRate: 1234, Channels: 2}}
	gobottest.Refute(t, cfg.Validate(), nil)
}

func TestNewReceiverNilClient(t *testing.T) {
	_, err := NewReceiver(nil, ReceiverConfig{})
	gobottest.Refute(t, err, nil)
}

func TestReceiverEnable(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.InitScript = []ScriptCommand{{Opcode: 0x1234}, {Opcode: 0x5678}}
		c.Volume = 10
	})

	gobottest.Assert(t, r.State(), StateEnabled)
	gobottest.Assert(t, r.TunedFrequency(), uint32(FREQ_UNDEFINED))
	gobottest.Assert(t, chip.written(REG_POWER_SET), []uint16{POWER_FM_ON})
	gobottest.Assert(t, chip.script, []uint16{0x1234, 0x5678})
	gobottest.Assert(t, chip.written(REG_VOLUME_SET), []uint16{10 * VOLUME_GAIN_STEP})
	gobottest.Assert(t, chip.written(REG_INT_MASK_SET), []uint16{INT_MAL | INT_STIC})

	gobottest.Assert(t, r.Halt(), nil)
	gobottest.Assert(t, r.State(), StateDisabled)
	gobottest.Assert(t, chip.written(REG_POWER_SET), []uint16{POWER_FM_ON, POWER_OFF})
}

func TestReceiverRejectsWhenDisabled(t *testing.T) {
	r, _ := newTestReceiver(t, newFakeChip())

	_, err := r.SetVolume(3)
	gobottest.Assert(t, errors.Is(err, ErrNotEnabled), true)

	// queued behind the enable
	p, err := r.Enable()
	gobottest.Assert(t, err, nil)
	q, err := r.SetVolume(3)
	gobottest.Assert(t, err, nil)
	waitEvent(t)(p, nil)
	gobottest.Assert(t, waitEvent(t)(q, nil).Status, StatusSuccess)

	_, err = r.Enable()
	gobottest.Assert(t, errors.Is(err, ErrAlreadyEnabled), true)
}

func TestReceiverTune(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	ev := waitEvent(t)(r.Tune(98500))
	gobottest.Assert(t, ev.Type, EventCmdDone)
	gobottest.Assert(t, ev.Cmd, CmdTune)
	gobottest.Assert(t, ev.Status, StatusSuccess)
	gobottest.Assert(t, ev.Value, uint32(98500))
	gobottest.Assert(t, r.TunedFrequency(), uint32(98500))
	gobottest.Assert(t, chip.written(REG_FREQ_SET), []uint16{220})
	gobottest.Assert(t, chip.written(REG_INT_MASK_SET), []uint16{INT_MAL | INT_STIC, INT_FR, INT_MAL | INT_STIC})

	ev = waitEvent(t)(r.GetTunedFrequency())
	gobottest.Assert(t, ev.Value, uint32(98500))
}

func TestReceiverTuneInvalidFrequency(t *testing.T) {
	r, _ := enabledReceiver(t, newFakeChip())

	_, err := r.Tune(120000)
	gobottest.Assert(t, errors.Is(err, ErrInvalidParam), true)
	_, err = r.SetVolume(MaxVolume + 1)
	gobottest.Assert(t, errors.Is(err, ErrInvalidParam), true)
	_, err = r.SetRSSIThreshold(0)
	gobottest.Assert(t, errors.Is(err, ErrInvalidParam), true)
}

func TestReceiverCommandsRunInOrder(t *testing.T) {
	chip := newFakeChip()
	r, events := enabledReceiver(t, chip)

	var pending []*Pending
	for _, f := range []func() (*Pending, error){
		func() (*Pending, error) { return r.SetVolume(20) },
		r.GetVolume,
		func() (*Pending, error) { return r.SetMuteMode(MuteOn) },
		r.GetMuteMode,
		func() (*Pending, error) { return r.SetRFDependentMute(true) },
		r.GetRFDependentMute,
	} {
		p, err := f()
		gobottest.Assert(t, err, nil)
		pending = append(pending, p)
	}

	gobottest.Assert(t, waitEvent(t)(pending[5], nil).Value, uint32(1))
	gobottest.Assert(t, pending[1].Event().Value, uint32(20))
	gobottest.Assert(t, pending[3].Event().Value, uint32(MuteOn))

	done := events.waitFor(t, EventCmdDone, 7)
	var got []CommandType
	for _, ev := range done[1:] {
		got = append(got, ev.Cmd)
	}
	gobottest.Assert(t, got, []CommandType{
		CmdSetVolume, CmdGetVolume, CmdSetMuteMode, CmdGetMuteMode,
		CmdSetRFDependentMute, CmdGetRFDependentMute,
	})
	gobottest.Assert(t, chip.written(REG_MUTE_STATUS_SET), []uint16{MUTE_OFF, MUTE_AC, MUTE_AC | MUTE_RF_DEPENDENT})
}

func TestReceiverQueueLimit(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.MaxPendingCommands = 2
	})

	chip.block(REG_VOLUME_SET)
	first, err := r.SetVolume(1)
	gobottest.Assert(t, err, nil)
	chip.waitBlocked(t)

	second, err := r.GetVolume()
	gobottest.Assert(t, err, nil)
	_, err = r.GetVolume()
	gobottest.Assert(t, errors.Is(err, ErrTooManyPendingCommands), true)

	chip.release()
	waitEvent(t)(first, nil)
	gobottest.Assert(t, waitEvent(t)(second, nil).Value, uint32(1))
}

func TestReceiverExclusiveCommands(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.block(REG_FREQ_SET)
	p, err := r.Tune(98500)
	gobottest.Assert(t, err, nil)
	chip.waitBlocked(t)

	_, err = r.Tune(99000)
	gobottest.Assert(t, errors.Is(err, ErrCommandAlreadyPending), true)

	chip.release()
	waitEvent(t)(p, nil)
}

func TestReceiverSeek(t *testing.T) {
	chip := newFakeChip()
	r, events := enabledReceiver(t, chip)
	waitEvent(t)(r.Tune(98500))
	waitEvent(t)(r.EnableRDS())

	chip.QueueRDS(append(psGroups("RADIO 1 ", [2]byte{226, 112}, [2]byte{120, 110}), psGroups("RADIO 1 ")...))
	events.waitFor(t, EventPSChanged, 1)
	gobottest.Assert(t, r.Station().AF, []uint32{98700, 99500})

	chip.mtx.Lock()
	chip.seekIndex = 224
	chip.mtx.Unlock()
	ev := waitEvent(t)(r.Seek(SeekUp))
	gobottest.Assert(t, ev.Cmd, CmdSeek)
	gobottest.Assert(t, ev.Status, StatusSuccess)
	gobottest.Assert(t, ev.Value, uint32(98700))
	gobottest.Assert(t, r.TunedFrequency(), uint32(98700))

	// the new station starts without RDS data
	st := r.Station()
	gobottest.Assert(t, st.HasPI, false)
	gobottest.Assert(t, st.HasPS, false)
	gobottest.Assert(t, len(st.AF), 0)

	// start one channel up, then the retune
	gobottest.Assert(t, chip.written(REG_FREQ_SET), []uint16{220, 222, 224})
	gobottest.Assert(t, chip.written(REG_SEARCH_DIR_SET), []uint16{SEARCH_DIR_UP})
}

func TestReceiverSeekBandLimit(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.DisableSeekRetune = true
	})
	waitEvent(t)(r.Tune(107900))

	chip.seekBandLimit = true
	ev := waitEvent(t)(r.Seek(SeekUp))
	gobottest.Assert(t, ev.Status, StatusSeekReachedBandLimit)
	gobottest.Assert(t, chip.written(REG_FREQ_SET), []uint16{408, 410})
}

func TestReceiverStopSeekBeforeStart(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)
	waitEvent(t)(r.Tune(98500))

	chip.block(REG_SEARCH_DIR_SET)
	seek, err := r.Seek(SeekDown)
	gobottest.Assert(t, err, nil)
	chip.waitBlocked(t)

	stop, err := r.StopSeek()
	gobottest.Assert(t, err, nil)
	chip.release()

	ev := waitEvent(t)(seek, nil)
	gobottest.Assert(t, ev.Cmd, CmdSeek)
	gobottest.Assert(t, ev.Status, StatusSeekStopped)
	gobottest.Assert(t, ev.Value, uint32(98500))
	gobottest.Assert(t, waitEvent(t)(stop, nil), ev)

	// the search was never started nor stopped
	gobottest.Assert(t, chip.written(REG_TUNER_MODE_SET), []uint16{TUNER_MODE_PRESET})
	gobottest.Assert(t, r.TunedFrequency(), uint32(98500))
}

func TestReceiverStopSeekWhileSearching(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)
	waitEvent(t)(r.Tune(98500))

	chip.holdSearch = true
	seek, err := r.Seek(SeekUp)
	gobottest.Assert(t, err, nil)
	waitUntil(t, chip.isSearching)

	stop, err := r.StopSeek()
	gobottest.Assert(t, err, nil)

	ev := waitEvent(t)(seek, nil)
	gobottest.Assert(t, ev.Status, StatusSeekStopped)
	gobottest.Assert(t, ev.Value, uint32(98600))
	gobottest.Assert(t, waitEvent(t)(stop, nil).Status, StatusSeekStopped)
	gobottest.Assert(t, chip.written(REG_TUNER_MODE_SET), []uint16{TUNER_MODE_PRESET, TUNER_MODE_AUTO_SEARCH, TUNER_MODE_STOP_SEARCH})
	gobottest.Assert(t, r.TunedFrequency(), uint32(98600))
}

func TestReceiverStopSeekWithoutSeek(t *testing.T) {
	r, _ := enabledReceiver(t, newFakeChip())
	_, err := r.StopSeek()
	gobottest.Assert(t, errors.Is(err, ErrSeekNotInProgress), true)
}

func TestReceiverRDS(t *testing.T) {
	chip := newFakeChip()
	r, events := enabledReceiver(t, chip)
	waitEvent(t)(r.Tune(98500))
	waitEvent(t)(r.EnableRDS())
	gobottest.Assert(t, chip.written(REG_POWER_SET), []uint16{POWER_FM_ON, POWER_FM_RDS_ON})

	chip.QueueRDS(append(psGroups("RADIO 1 "), psGroups("RADIO 1 ")...))

	ps := events.waitFor(t, EventPSChanged, 1)
	gobottest.Assert(t, ps[0].PS, "RADIO 1 ")
	gobottest.Assert(t, ps[0].PI, uint16(testPI))
	pi := events.waitFor(t, EventPIChanged, 1)
	gobottest.Assert(t, pi[0].PI, uint16(testPI))

	st := r.Station()
	gobottest.Assert(t, st.PS, "RADIO 1 ")
	gobottest.Assert(t, st.HasPI, true)

	// the station is forgotten on the next tune
	waitEvent(t)(r.Tune(99000))
	gobottest.Assert(t, r.Station().HasPI, false)
}

func TestReceiverStereoInterrupt(t *testing.T) {
	chip := newFakeChip()
	_, events := enabledReceiver(t, chip)

	chip.stereo = 0
	chip.Raise(INT_STIC)
	ev := events.waitFor(t, EventMonoStereoChanged, 1)
	gobottest.Assert(t, ev[0].Mode, Mono)
}

func afReceiver(t *testing.T, chip *fakeChip, cooldown time.Duration) (*Receiver, *eventLog) {
	r, events := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.AFMode = AFOn
		c.AFCooldown = cooldown
	})
	waitEvent(t)(r.Tune(98500))
	waitEvent(t)(r.EnableRDS())

	// two AFs: 98.7 and 99.5 MHz
	chip.QueueRDS(psGroups("RADIO 1 ", [2]byte{226, 112}, [2]byte{120, 110}))
	af := events.waitFor(t, EventAFListChanged, 2)
	gobottest.Assert(t, af[len(af)-1].AF, []uint32{98700, 99500})
	return r, events
}

func TestReceiverAFListExhausted(t *testing.T) {
	chip := newFakeChip()
	r, events := afReceiver(t, chip, time.Hour)

	chip.Raise(INT_LEV)
	done := events.waitFor(t, EventAFSwitchComplete, 1)
	gobottest.Assert(t, done[0].Status, StatusAFSwitchFailedListExhausted)

	start := events.ofType(EventAFSwitchStart)
	gobottest.Assert(t, len(start), 1)
	gobottest.Assert(t, start[0].Status, StatusAFInProgress)
	gobottest.Assert(t, start[0].PI, uint16(testPI))

	failed := events.ofType(EventAFSwitchToFreqFailed)
	gobottest.Assert(t, len(failed), 2)
	gobottest.Assert(t, failed[0].Freq, uint32(98700))
	gobottest.Assert(t, failed[0].Status, StatusAFInProgress)
	gobottest.Assert(t, failed[1].Freq, uint32(99500))
	gobottest.Assert(t, failed[1].Status, StatusFailed)

	gobottest.Assert(t, r.TunedFrequency(), uint32(98500))
	gobottest.Assert(t, chip.written(REG_AF_FREQ_SET), []uint16{224, 240})
	gobottest.Assert(t, chip.written(REG_RDS_PI_SET), []uint16{testPI, testPI})

	// low signal stays masked during the cooldown
	waitUntil(t, func() bool {
		masks := chip.written(REG_INT_MASK_SET)
		return masks[len(masks)-1] == INT_MAL|INT_STIC|INT_RDS
	})
}

func TestReceiverAFSwitch(t *testing.T) {
	chip := newFakeChip()
	chip.afAccept = func(index uint16) bool { return index == 240 }
	r, events := afReceiver(t, chip, 20*time.Millisecond)

	chip.Raise(INT_LEV)
	done := events.waitFor(t, EventAFSwitchComplete, 1)
	gobottest.Assert(t, done[0].Status, StatusSuccess)
	gobottest.Assert(t, done[0].PrevFreq, uint32(98500))
	gobottest.Assert(t, done[0].Freq, uint32(99500))
	gobottest.Assert(t, len(events.ofType(EventAFSwitchToFreqFailed)), 1)

	gobottest.Assert(t, r.TunedFrequency(), uint32(99500))
	st := r.Station()
	gobottest.Assert(t, st.HasPI, true)
	gobottest.Assert(t, st.PI, uint16(testPI))
	gobottest.Assert(t, len(st.AF), 0)

	// low signal is enabled again once the cooldown expired
	waitUntil(t, func() bool {
		masks := chip.written(REG_INT_MASK_SET)
		return masks[len(masks)-1]&INT_LEV != 0
	})
}

func TestReceiverCompleteScan(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.scanChannels = []uint16{40, 220, 400}
	ev := waitEvent(t)(r.CompleteScan())
	gobottest.Assert(t, ev.Type, EventCompleteScanDone)
	gobottest.Assert(t, ev.Status, StatusSuccess)
	gobottest.Assert(t, ev.Value, uint32(3))
	gobottest.Assert(t, ev.Channels, []uint32{89500, 98500, 107500})
}

func TestReceiverCompleteScanProgressAndStop(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.holdSearch = true
	scan, err := r.CompleteScan()
	gobottest.Assert(t, err, nil)
	waitUntil(t, chip.isSearching)

	chip.mtx.Lock()
	chip.regs[REG_FREQ_SET] = 100
	chip.mtx.Unlock()

	ev := waitEvent(t)(r.CompleteScanProgress())
	gobottest.Assert(t, ev.Cmd, CmdCompleteScanProgress)
	gobottest.Assert(t, ev.Value, uint32(92500))

	stop, err := r.StopCompleteScan()
	gobottest.Assert(t, err, nil)
	ev = waitEvent(t)(scan, nil)
	gobottest.Assert(t, ev.Type, EventCompleteScanDone)
	gobottest.Assert(t, ev.Status, StatusCompleteScanStopped)
	gobottest.Assert(t, ev.Value, uint32(92500))
	gobottest.Assert(t, waitEvent(t)(stop, nil).Status, StatusCompleteScanStopped)

	_, err = r.StopCompleteScan()
	gobottest.Assert(t, errors.Is(err, ErrCompleteScanNotInProgress), true)
}

func TestReceiverTransportFailure(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.mtx.Lock()
	chip.failOp = REG_FREQ_SET
	chip.failErr = errBus
	chip.mtx.Unlock()
	ev := waitEvent(t)(r.Tune(98500))
	gobottest.Assert(t, ev.Status, StatusInternalError)

	// the engine keeps running
	chip.mtx.Lock()
	chip.failErr = nil
	chip.mtx.Unlock()
	ev = waitEvent(t)(r.GetVolume())
	gobottest.Assert(t, ev.Status, StatusSuccess)
}

func TestReceiverFailureRestoresInterruptMask(t *testing.T) {
	chip := newFakeChip()
	r, events := enabledReceiver(t, chip)
	waitEvent(t)(r.Tune(98500))
	waitEvent(t)(r.EnableRDS())

	chip.mtx.Lock()
	chip.failOp = REG_TUNER_MODE_SET
	chip.failErr = errBus
	chip.mtx.Unlock()
	ev := waitEvent(t)(r.Tune(99000))
	gobottest.Assert(t, ev.Status, StatusInternalError)

	masks := chip.written(REG_INT_MASK_SET)
	gobottest.Assert(t, masks[len(masks)-2:], []uint16{INT_FR, INT_MAL | INT_STIC | INT_RDS})

	chip.mtx.Lock()
	chip.failErr = nil
	chip.mtx.Unlock()

	// general interrupts still arrive
	chip.QueueRDS(append(psGroups("RADIO 2 "), psGroups("RADIO 2 ")...))
	ps := events.waitFor(t, EventPSChanged, 1)
	gobottest.Assert(t, ps[0].PS, "RADIO 2 ")
}

func TestReceiverSequencingViolation(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	// a tune waiting for its command complete gets an interrupt instead
	r.mu.Lock()
	r.irq.opMask = INT_FR
	r.writeMask(INT_FR)
	r.mu.Unlock()
	waitUntil(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return !r.waitingCC
	})

	c := &command{typ: CmdTune, stage: tuneWaitCC, pending: newPending(CmdTune)}
	r.mu.Lock()
	r.curr = c
	r.invoke(reasonInterrupt, upperNone)
	r.mu.Unlock()

	ev := waitEvent(t)(c.pending, nil)
	gobottest.Assert(t, ev.Cmd, CmdTune)
	gobottest.Assert(t, ev.Status, StatusInternalError)
	masks := chip.written(REG_INT_MASK_SET)
	gobottest.Assert(t, masks[len(masks)-1], uint16(INT_MAL|INT_STIC))

	// the engine keeps running
	ev = waitEvent(t)(r.GetVolume())
	gobottest.Assert(t, ev.Status, StatusSuccess)
}

func TestReceiverSequencingViolationPanicsInDebugMode(t *testing.T) {
	r, _ := enabledReceiver(t, newFakeChip(), func(c *ReceiverConfig) {
		c.DebugMode = true
	})

	var recovered interface{}
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		defer func() {
			recovered = recover()
			r.curr = nil
		}()
		r.curr = &command{typ: CmdTune, stage: tuneWaitCC, pending: newPending(CmdTune)}
		r.invoke(reasonInterrupt, upperNone)
	}()
	gobottest.Refute(t, recovered, nil)
	gobottest.Assert(t, strings.Contains(recovered.(string), "expected"), true)
}

func TestReceiverAudioRouting(t *testing.T) {
	router := audio.NewRouter(zap.NewNop().Sugar())
	chip := newFakeChip()
	r, events := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.Audio = router
		c.AudioTargets = audio.TargetAnalog | audio.TargetI2S
	})

	ev := waitEvent(t)(r.EnableAudio())
	gobottest.Assert(t, ev.Status, StatusSuccess)
	gobottest.Assert(t, chip.written(REG_AUDIO_ENABLE), []uint16{0, AUDIO_ENABLE_ANALOG | AUDIO_ENABLE_I2S})
	owner, ok := router.Owner(audio.ResourceFMAnalog)
	gobottest.Assert(t, ok, true)
	gobottest.Assert(t, owner, audio.OpFMRx.String())
	gobottest.Assert(t, len(events.waitFor(t, EventAudioPathChanged, 1)), 1)

	// the SCO link is held by someone else
	gobottest.Assert(t, len(router.Reserve("headset", audio.ResourceSCOLink)), 0)
	cfg := audio.DigitalConfig{SampleRate: 8000, Channels: 1}
	ev = waitEvent(t)(r.ChangeAudioTarget(audio.TargetFMOverSCO, cfg))
	gobottest.Assert(t, ev.Status, StatusAudioOperationUnavailableResources)
	gobottest.Assert(t, ev.Unavailable, []audio.Resource{audio.ResourceSCOLink})
	gobottest.Assert(t, ev.Targets, audio.TargetAnalog|audio.TargetI2S)

	ev = waitEvent(t)(r.DisableAudio())
	gobottest.Assert(t, ev.Status, StatusSuccess)
	_, ok = router.Running(audio.OpFMRx)
	gobottest.Assert(t, ok, false)
}

func TestReceiverAudioPendingLink(t *testing.T) {
	router := audio.NewRouter(zap.NewNop().Sugar())
	router.LinkSetup = 10 * time.Millisecond
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.Audio = router
		c.AudioTargets = audio.TargetFMOverA2DP
	})

	ev := waitEvent(t)(r.EnableAudio())
	gobottest.Assert(t, ev.Status, StatusSuccess)
	targets, ok := router.Running(audio.OpFMOverA2DP)
	gobottest.Assert(t, ok, true)
	gobottest.Assert(t, targets, audio.TargetFMOverA2DP)
	gobottest.Assert(t, chip.written(REG_AUDIO_ENABLE), []uint16{0, AUDIO_ENABLE_I2S})
}

func TestReceiverAudioCoordinatorTimeout(t *testing.T) {
	router := audio.NewRouter(zap.NewNop().Sugar())
	router.LinkSetup = time.Hour
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip, func(c *ReceiverConfig) {
		c.Audio = router
		c.AudioTargets = audio.TargetFMOverA2DP
		c.TransactionTimeout = 50 * time.Millisecond
	})

	ev := waitEvent(t)(r.EnableAudio())
	gobottest.Assert(t, ev.Status, StatusInternalError)
	_, ok := router.Running(audio.OpFMOverA2DP)
	gobottest.Assert(t, ok, false)

	ev = waitEvent(t)(r.GetVolume())
	gobottest.Assert(t, ev.Status, StatusSuccess)
}

func TestReceiverCloseAbortsQueuedCommands(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.block(REG_VOLUME_SET)
	first, err := r.SetVolume(5)
	gobottest.Assert(t, err, nil)
	chip.waitBlocked(t)
	second, err := r.GetVolume()
	gobottest.Assert(t, err, nil)

	gobottest.Assert(t, r.Close(), nil)
	chip.release()

	gobottest.Assert(t, waitEvent(t)(first, nil).Status, StatusContextNotEnabled)
	gobottest.Assert(t, waitEvent(t)(second, nil).Status, StatusContextNotEnabled)

	_, err = r.GetVolume()
	gobottest.Assert(t, errors.Is(err, ErrDestroyed), true)
}

func TestReceiverCommander(t *testing.T) {
	r, _ := enabledReceiver(t, newFakeChip())

	res := r.Command("tune")(map[string]interface{}{"frequency": float64(101100)})
	gobottest.Assert(t, res, map[string]interface{}{"status": "success", "value": uint32(101100)})

	station := r.Command("station")(nil).(map[string]interface{})
	gobottest.Assert(t, station["frequency"], uint32(101100))
}

func TestReceiverChipQueries(t *testing.T) {
	chip := newFakeChip()
	r, _ := enabledReceiver(t, chip)

	chip.mtx.Lock()
	chip.regs[REG_RSSI_LEVEL_GET] = 0xfff6
	chip.regs[REG_FIRM_VER_GET] = 0x0109
	chip.regs[REG_RX_CHANNEL_GET] = RX_CHANNEL_VALID | 0x0003
	chip.mtx.Unlock()

	p, err := r.GetRSSI()
	gobottest.Assert(t, waitEvent(t)(p, err).Value, uint32(0xfffffff6))

	p, err = r.GetFirmwareVersion()
	gobottest.Assert(t, waitEvent(t)(p, err).Value, uint32(0x0109))

	p, err = r.IsChannelValid()
	gobottest.Assert(t, waitEvent(t)(p, err).Value, uint32(1))

	chip.mtx.Lock()
	chip.regs[REG_RX_CHANNEL_GET] = 0
	chip.mtx.Unlock()

	p, err = r.IsChannelValid()
	gobottest.Assert(t, waitEvent(t)(p, err).Value, uint32(0))
}
