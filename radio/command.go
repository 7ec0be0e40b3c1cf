package radio

import (
	"fmt"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

// CommandType identifies a receiver command.
type CommandType int

// Public commands.
const (
	CmdEnable CommandType = iota
	CmdDisable
	CmdSetBand
	CmdGetBand
	CmdSetMonoStereoMode
	CmdGetMonoStereoMode
	CmdSetMuteMode
	CmdGetMuteMode
	CmdSetRFDependentMute
	CmdGetRFDependentMute
	CmdSetRSSIThreshold
	CmdGetRSSIThreshold
	CmdSetDeemphasisFilter
	CmdGetDeemphasisFilter
	CmdSetVolume
	CmdGetVolume
	CmdTune
	CmdGetTunedFrequency
	CmdSeek
	CmdStopSeek
	CmdGetRSSI
	CmdEnableRDS
	CmdDisableRDS
	CmdSetRDSSystem
	CmdGetRDSSystem
	CmdSetRDSGroupMask
	CmdGetRDSGroupMask
	CmdSetAFSwitchMode
	CmdGetAFSwitchMode
	CmdEnableAudio
	CmdDisableAudio
	CmdChangeAudioTarget
	CmdChangeDigitalAudioConfig
	CmdSetChannelSpacing
	CmdGetChannelSpacing
	CmdGetFirmwareVersion
	CmdIsChannelValid
	CmdCompleteScan
	CmdCompleteScanProgress
	CmdStopCompleteScan

	// internal commands, never reported to the application
	cmdGeneralInterrupt
	cmdAFTimeout
)

var commandNames = []string{
	CmdEnable:                   "enable",
	CmdDisable:                  "disable",
	CmdSetBand:                  "set-band",
	CmdGetBand:                  "get-band",
	CmdSetMonoStereoMode:        "set-mono-stereo-mode",
	CmdGetMonoStereoMode:        "get-mono-stereo-mode",
	CmdSetMuteMode:              "set-mute-mode",
	CmdGetMuteMode:              "get-mute-mode",
	CmdSetRFDependentMute:       "set-rf-dependent-mute",
	CmdGetRFDependentMute:       "get-rf-dependent-mute",
	CmdSetRSSIThreshold:         "set-rssi-threshold",
	CmdGetRSSIThreshold:         "get-rssi-threshold",
	CmdSetDeemphasisFilter:      "set-deemphasis-filter",
	CmdGetDeemphasisFilter:      "get-deemphasis-filter",
	CmdSetVolume:                "set-volume",
	CmdGetVolume:                "get-volume",
	CmdTune:                     "tune",
	CmdGetTunedFrequency:        "get-tuned-frequency",
	CmdSeek:                     "seek",
	CmdStopSeek:                 "stop-seek",
	CmdGetRSSI:                  "get-rssi",
	CmdEnableRDS:                "enable-rds",
	CmdDisableRDS:               "disable-rds",
	CmdSetRDSSystem:             "set-rds-system",
	CmdGetRDSSystem:             "get-rds-system",
	CmdSetRDSGroupMask:          "set-rds-group-mask",
	CmdGetRDSGroupMask:          "get-rds-group-mask",
	CmdSetAFSwitchMode:          "set-af-switch-mode",
	CmdGetAFSwitchMode:          "get-af-switch-mode",
	CmdEnableAudio:              "enable-audio",
	CmdDisableAudio:             "disable-audio",
	CmdChangeAudioTarget:        "change-audio-target",
	CmdChangeDigitalAudioConfig: "change-digital-audio-config",
	CmdSetChannelSpacing:        "set-channel-spacing",
	CmdGetChannelSpacing:        "get-channel-spacing",
	CmdGetFirmwareVersion:       "get-firmware-version",
	CmdIsChannelValid:           "is-channel-valid",
	CmdCompleteScan:             "complete-scan",
	CmdCompleteScanProgress:     "complete-scan-progress",
	CmdStopCompleteScan:         "stop-complete-scan",
	cmdGeneralInterrupt:         "general-interrupt",
	cmdAFTimeout:                "af-timeout",
}

func (c CommandType) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("CommandType(%d)", int(c))
}

func (c CommandType) internal() bool {
	return c == cmdGeneralInterrupt || c == cmdAFTimeout
}

// exclusive commands are queued at most once.
func (c CommandType) exclusive() bool {
	switch c {
	case CmdEnable, CmdDisable, CmdTune, CmdSeek, CmdCompleteScan:
		return true
	}
	return false
}

// ScriptCommand is one entry of the firmware init script.
type ScriptCommand struct {
	Opcode uint16
	Params []byte
}

type seekPhase int

const (
	seeking seekPhase = iota
	stoppingSeek
)

type seekState struct {
	phase     seekPhase
	stopStage int
	direction SeekDirection
	index     uint16
}

type scanPhase int

const (
	scanning scanPhase = iota
	scanProgress
	stoppingScan
)

type scanState struct {
	phase     scanPhase
	stopStage int
	count     int
	channels  []uint32
	progress  *Pending
}

type genPhase int

const (
	genChecking genPhase = iota
	genAFJump
)

type genState struct {
	phase   genPhase
	bits    uint16
	afStage int
	afIndex int
	afList  []uint32
	prevPI  uint16
	preFreq uint32
}

type routingState struct {
	awaiting    bool
	started     []audio.Operation
	stopped     []audio.Operation
	targets     audio.Target
	digital     audio.DigitalConfig
	unavailable []audio.Resource
}

// command is one queued request. The parameter fields used depend on typ.
type command struct {
	typ     CommandType
	stage   int
	status  Status
	value   uint32
	index   int
	pending *Pending

	// stopPending is the handle of the stop request that ended a seek or
	// a complete scan; it resolves with the same terminal event.
	stopPending *Pending

	// failed is set while the general interrupt mask is written back
	// after a failure.
	failed bool

	freq      uint32
	param     uint32
	enabled   bool
	groupMask rds.GroupMask

	seek    seekState
	scan    scanState
	gen     genState
	routing routingState
}

// commandQueue is the bounded FIFO of commands waiting to run.
type commandQueue struct {
	items []*command
	limit int
}

func (q *commandQueue) len() int {
	return len(q.items)
}

func (q *commandQueue) push(c *command) {
	q.items = append(q.items, c)
}

func (q *commandQueue) pop() *command {
	if len(q.items) == 0 {
		return nil
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return c
}

func (q *commandQueue) has(typ CommandType) bool {
	for _, c := range q.items {
		if c.typ == typ {
			return true
		}
	}
	return false
}

// remove takes the first queued command of the given type out of the queue.
func (q *commandQueue) remove(typ CommandType) *command {
	for i, c := range q.items {
		if c.typ == typ {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return c
		}
	}
	return nil
}

func (q *commandQueue) drain() []*command {
	items := q.items
	q.items = nil
	return items
}
