package radio

import (
	"errors"
	"fmt"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

// Errors returned when a request is rejected before it is queued.
var (
	ErrInvalidParam              = errors.New("invalid parameter")
	ErrNotEnabled                = errors.New("receiver not enabled")
	ErrAlreadyEnabled            = errors.New("receiver already enabled")
	ErrTooManyPendingCommands    = errors.New("too many pending commands")
	ErrCommandAlreadyPending     = errors.New("command already pending")
	ErrSeekNotInProgress         = errors.New("seek not in progress")
	ErrCompleteScanNotInProgress = errors.New("complete scan not in progress")
	ErrDestroyed                 = errors.New("receiver destroyed")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParam, fmt.Sprintf(format, args...))
}

// enabling reports whether commands may be queued: the receiver is enabled
// or an enable is on its way.
func (r *Receiver) enabling() bool {
	if r.state == StateEnabled || r.state == StateEnabling {
		return true
	}
	return r.queue.has(CmdEnable)
}

func (r *Receiver) pendingCount() int {
	n := r.queue.len()
	if r.curr != nil && !r.curr.typ.internal() {
		n++
	}
	for _, c := range r.queue.items {
		if c.typ.internal() {
			n--
		}
	}
	return n
}

func (r *Receiver) enqueue(c *command) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return nil, ErrDestroyed
	}
	if c.typ != CmdEnable && !r.enabling() {
		return nil, ErrNotEnabled
	}
	if c.typ == CmdEnable && r.state != StateDisabled && !r.queue.has(CmdDisable) {
		return nil, ErrAlreadyEnabled
	}
	if r.pendingCount() >= r.queue.limit {
		return nil, ErrTooManyPendingCommands
	}
	if c.typ.exclusive() && (r.queue.has(c.typ) || (r.curr != nil && r.curr.typ == c.typ)) {
		return nil, fmt.Errorf("%s: %w", c.typ, ErrCommandAlreadyPending)
	}

	c.pending = newPending(c.typ)
	r.queue.push(c)
	if r.debugMode {
		r.log.Debugw("queued command", "cmd", c.typ.String(), "queued", r.queue.len())
	}
	r.notify()
	return c.pending, nil
}

func (r *Receiver) set(typ CommandType, param uint32) (*Pending, error) {
	return r.enqueue(&command{typ: typ, param: param})
}

func (r *Receiver) get(typ CommandType) (*Pending, error) {
	return r.enqueue(&command{typ: typ})
}

// Enable powers the receiver on, runs the init script and writes the
// configured defaults.
func (r *Receiver) Enable() (*Pending, error) {
	return r.get(CmdEnable)
}

// Disable powers the receiver off.
func (r *Receiver) Disable() (*Pending, error) {
	return r.get(CmdDisable)
}

// SetBand selects the band.
func (r *Receiver) SetBand(b Band) (*Pending, error) {
	if !b.Valid() {
		return nil, invalid("band %d", b)
	}
	return r.set(CmdSetBand, uint32(b))
}

// GetBand returns the band.
func (r *Receiver) GetBand() (*Pending, error) {
	return r.get(CmdGetBand)
}

// SetMonoStereoMode forces mono or allows stereo reception.
func (r *Receiver) SetMonoStereoMode(m MonoStereoMode) (*Pending, error) {
	if m != Stereo && m != Mono {
		return nil, invalid("mono/stereo mode %d", m)
	}
	return r.set(CmdSetMonoStereoMode, uint32(m))
}

// GetMonoStereoMode reads the mono/stereo mode.
func (r *Receiver) GetMonoStereoMode() (*Pending, error) {
	return r.get(CmdGetMonoStereoMode)
}

// SetMuteMode sets the mute mode.
func (r *Receiver) SetMuteMode(m MuteMode) (*Pending, error) {
	if m < MuteOff || m > MuteAttenuate {
		return nil, invalid("mute mode %d", m)
	}
	return r.set(CmdSetMuteMode, uint32(m))
}

// GetMuteMode returns the mute mode.
func (r *Receiver) GetMuteMode() (*Pending, error) {
	return r.get(CmdGetMuteMode)
}

// SetRFDependentMute turns the RF dependent mute on or off.
func (r *Receiver) SetRFDependentMute(on bool) (*Pending, error) {
	return r.enqueue(&command{typ: CmdSetRFDependentMute, enabled: on})
}

// GetRFDependentMute returns 1 when the RF dependent mute is on.
func (r *Receiver) GetRFDependentMute() (*Pending, error) {
	return r.get(CmdGetRFDependentMute)
}

// SetRSSIThreshold sets the level a seek stops at.
func (r *Receiver) SetRSSIThreshold(level uint8) (*Pending, error) {
	if level < MinRSSIThreshold || level > MaxRSSIThreshold {
		return nil, invalid("rssi threshold %d", level)
	}
	return r.set(CmdSetRSSIThreshold, uint32(level))
}

// GetRSSIThreshold returns the seek threshold.
func (r *Receiver) GetRSSIThreshold() (*Pending, error) {
	return r.get(CmdGetRSSIThreshold)
}

// SetDeemphasisFilter selects the de-emphasis filter.
func (r *Receiver) SetDeemphasisFilter(d Deemphasis) (*Pending, error) {
	if d != Deemphasis50us && d != Deemphasis75us {
		return nil, invalid("de-emphasis filter %d", d)
	}
	return r.set(CmdSetDeemphasisFilter, uint32(d))
}

// GetDeemphasisFilter returns the de-emphasis filter.
func (r *Receiver) GetDeemphasisFilter() (*Pending, error) {
	return r.get(CmdGetDeemphasisFilter)
}

// SetVolume sets the volume, 0 to MaxVolume.
func (r *Receiver) SetVolume(volume uint8) (*Pending, error) {
	if volume > MaxVolume {
		return nil, invalid("volume %d", volume)
	}
	return r.set(CmdSetVolume, uint32(volume))
}

// GetVolume returns the volume.
func (r *Receiver) GetVolume() (*Pending, error) {
	return r.get(CmdGetVolume)
}

// Tune tunes to freq, in kHz.
func (r *Receiver) Tune(freq uint32) (*Pending, error) {
	r.mu.Lock()
	band := r.settings.band
	r.mu.Unlock()
	if !band.Contains(freq) {
		return nil, invalid("frequency %d kHz outside of band %s", freq, band)
	}
	return r.enqueue(&command{typ: CmdTune, freq: freq})
}

// GetTunedFrequency reads the tuned frequency from the chip.
func (r *Receiver) GetTunedFrequency() (*Pending, error) {
	return r.get(CmdGetTunedFrequency)
}

// Seek searches the next station in the given direction. The value of the
// terminal event is the frequency the seek stopped at.
func (r *Receiver) Seek(dir SeekDirection) (*Pending, error) {
	if dir != SeekUp && dir != SeekDown {
		return nil, invalid("seek direction %d", dir)
	}
	return r.enqueue(&command{typ: CmdSeek, seek: seekState{direction: dir}})
}

// StopSeek stops a running or queued seek. The returned handle resolves
// with the terminal event of the seek.
func (r *Receiver) StopSeek() (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return nil, ErrDestroyed
	}
	p := newPending(CmdStopSeek)
	if c := r.queue.remove(CmdSeek); c != nil {
		// never started
		r.emit(r.terminalEvent(c, StatusSeekStopped, r.tunedFreq), c.pending, p)
		return p, nil
	}
	if r.curr == nil || r.curr.typ != CmdSeek || r.curr.seek.phase != seeking {
		return nil, ErrSeekNotInProgress
	}
	if r.upper != upperNone {
		return nil, fmt.Errorf("%s: %w", r.upper, ErrCommandAlreadyPending)
	}
	r.upper = upperStopSeek
	r.upperPending = p
	r.notify()
	return p, nil
}

// GetRSSI reads the signal level of the tuned channel.
func (r *Receiver) GetRSSI() (*Pending, error) {
	return r.get(CmdGetRSSI)
}

// EnableRDS turns RDS reception on.
func (r *Receiver) EnableRDS() (*Pending, error) {
	return r.get(CmdEnableRDS)
}

// DisableRDS turns RDS reception off.
func (r *Receiver) DisableRDS() (*Pending, error) {
	return r.get(CmdDisableRDS)
}

// SetRDSSystem selects RDS or RBDS.
func (r *Receiver) SetRDSSystem(s RDSSystem) (*Pending, error) {
	if s != SystemRDS && s != SystemRBDS {
		return nil, invalid("rds system %d", s)
	}
	return r.set(CmdSetRDSSystem, uint32(s))
}

// GetRDSSystem returns the RDS system.
func (r *Receiver) GetRDSSystem() (*Pending, error) {
	return r.get(CmdGetRDSSystem)
}

// SetRDSGroupMask selects the groups reported as raw RDS events and decoded.
func (r *Receiver) SetRDSGroupMask(m rds.GroupMask) (*Pending, error) {
	return r.enqueue(&command{typ: CmdSetRDSGroupMask, groupMask: m})
}

// GetRDSGroupMask returns the RDS group mask.
func (r *Receiver) GetRDSGroupMask() (*Pending, error) {
	return r.get(CmdGetRDSGroupMask)
}

// SetAFSwitchMode turns automatic AF switching on or off.
func (r *Receiver) SetAFSwitchMode(m AFMode) (*Pending, error) {
	if m != AFOff && m != AFOn {
		return nil, invalid("af switch mode %d", m)
	}
	return r.set(CmdSetAFSwitchMode, uint32(m))
}

// GetAFSwitchMode returns the AF switch mode.
func (r *Receiver) GetAFSwitchMode() (*Pending, error) {
	return r.get(CmdGetAFSwitchMode)
}

// EnableAudio starts audio routing to the configured targets.
func (r *Receiver) EnableAudio() (*Pending, error) {
	return r.get(CmdEnableAudio)
}

// DisableAudio stops audio routing.
func (r *Receiver) DisableAudio() (*Pending, error) {
	return r.get(CmdDisableAudio)
}

func validTargets(t audio.Target) error {
	all := audio.RxTargets | audio.TargetFMOverSCO | audio.TargetFMOverA2DP
	if t&^all != 0 {
		return invalid("audio targets 0x%x", uint32(t))
	}
	if t&audio.TargetFMOverSCO != 0 && t&audio.TargetFMOverA2DP != 0 {
		return invalid("fm over sco and fm over a2dp are exclusive")
	}
	return nil
}

// ChangeAudioTarget moves the audio output to targets. When audio routing
// is off the targets are only stored.
func (r *Receiver) ChangeAudioTarget(targets audio.Target, cfg audio.DigitalConfig) (*Pending, error) {
	if err := validTargets(targets); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, invalid("digital audio: %s", err)
	}
	return r.enqueue(&command{typ: CmdChangeAudioTarget, routing: routingState{targets: targets, digital: cfg}})
}

// ChangeDigitalAudioConfig changes the digital audio format.
func (r *Receiver) ChangeDigitalAudioConfig(cfg audio.DigitalConfig) (*Pending, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalid("digital audio: %s", err)
	}
	return r.enqueue(&command{typ: CmdChangeDigitalAudioConfig, routing: routingState{digital: cfg}})
}

// SetChannelSpacing sets the seek step.
func (r *Receiver) SetChannelSpacing(s ChannelSpacing) (*Pending, error) {
	if !s.Valid() {
		return nil, invalid("channel spacing %d kHz", s)
	}
	return r.set(CmdSetChannelSpacing, uint32(s))
}

// GetChannelSpacing reads the seek step in kHz.
func (r *Receiver) GetChannelSpacing() (*Pending, error) {
	return r.get(CmdGetChannelSpacing)
}

// GetFirmwareVersion reads the firmware version.
func (r *Receiver) GetFirmwareVersion() (*Pending, error) {
	return r.get(CmdGetFirmwareVersion)
}

// IsChannelValid reports 1 when the tuned channel carries a station.
func (r *Receiver) IsChannelValid() (*Pending, error) {
	return r.get(CmdIsChannelValid)
}

// CompleteScan scans the whole band. The terminal EventCompleteScanDone
// carries the channels found.
func (r *Receiver) CompleteScan() (*Pending, error) {
	return r.get(CmdCompleteScan)
}

// CompleteScanProgress asks for the frequency a running complete scan is
// at.
func (r *Receiver) CompleteScanProgress() (*Pending, error) {
	return r.scanRequest(CmdCompleteScanProgress, upperScanProgress)
}

// StopCompleteScan stops a running or queued complete scan. The returned
// handle resolves with the terminal event of the scan.
func (r *Receiver) StopCompleteScan() (*Pending, error) {
	return r.scanRequest(CmdStopCompleteScan, upperStopScan)
}

func (r *Receiver) scanRequest(typ CommandType, up upperEvent) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDestroyed {
		return nil, ErrDestroyed
	}
	p := newPending(typ)
	if r.queue.has(CmdCompleteScan) {
		if up == upperScanProgress {
			r.emit(Event{Type: EventCmdDone, Cmd: typ, Status: StatusSuccess, Value: r.tunedFreq}, p)
			return p, nil
		}
		c := r.queue.remove(CmdCompleteScan)
		r.emit(r.terminalEvent(c, StatusCompleteScanStopped, r.tunedFreq), c.pending, p)
		return p, nil
	}
	if r.curr == nil || r.curr.typ != CmdCompleteScan || r.curr.scan.phase == stoppingScan {
		return nil, ErrCompleteScanNotInProgress
	}
	if r.upper != upperNone {
		return nil, fmt.Errorf("%s: %w", r.upper, ErrCommandAlreadyPending)
	}
	r.upper = up
	r.upperPending = p
	r.notify()
	return p, nil
}
