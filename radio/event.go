package radio

import (
	"context"
	"fmt"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

// Status is the outcome carried by every event.
type Status int

// Event statuses.
const (
	StatusSuccess Status = iota
	StatusFailed
	StatusPending
	StatusInvalidParam
	StatusInternalError
	StatusTooManyPendingCommands
	StatusContextNotEnabled
	StatusSeekInProgress
	StatusSeekNotInProgress
	StatusAFInProgress
	StatusRDSNotEnabled
	StatusSeekReachedBandLimit
	StatusSeekStopped
	StatusAFSwitchFailedListExhausted
	StatusCompleteScanNotInProgress
	StatusCompleteScanStopped
	StatusAudioOperationUnavailableResources
)

var statusNames = map[Status]string{
	StatusSuccess:                            "success",
	StatusFailed:                             "failed",
	StatusPending:                            "pending",
	StatusInvalidParam:                       "invalid-param",
	StatusInternalError:                      "internal-error",
	StatusTooManyPendingCommands:             "too-many-pending-commands",
	StatusContextNotEnabled:                  "context-not-enabled",
	StatusSeekInProgress:                     "seek-in-progress",
	StatusSeekNotInProgress:                  "seek-not-in-progress",
	StatusAFInProgress:                       "af-in-progress",
	StatusRDSNotEnabled:                      "rds-not-enabled",
	StatusSeekReachedBandLimit:               "seek-reached-band-limit",
	StatusSeekStopped:                        "seek-stopped",
	StatusAFSwitchFailedListExhausted:        "af-switch-failed-list-exhausted",
	StatusCompleteScanNotInProgress:          "complete-scan-not-in-progress",
	StatusCompleteScanStopped:                "complete-scan-stopped",
	StatusAudioOperationUnavailableResources: "audio-operation-unavailable-resources",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// EventType identifies an application event. Its String value is the name
// the event is published under on the gobot Eventer.
type EventType int

// Application events.
const (
	EventCmdDone EventType = iota
	EventMonoStereoChanged
	EventPIChanged
	EventAFSwitchStart
	EventAFSwitchToFreqFailed
	EventAFSwitchComplete
	EventAFListChanged
	EventPSChanged
	EventRadioText
	EventRawRDS
	EventAudioPathChanged
	EventPTYChanged
	EventCompleteScanDone
)

var eventNames = []string{
	EventCmdDone:              "cmd-done",
	EventMonoStereoChanged:    "mono-stereo-changed",
	EventPIChanged:            "pi-changed",
	EventAFSwitchStart:        "af-switch-start",
	EventAFSwitchToFreqFailed: "af-switch-to-freq-failed",
	EventAFSwitchComplete:     "af-switch-complete",
	EventAFListChanged:        "af-list-changed",
	EventPSChanged:            "ps-changed",
	EventRadioText:            "radio-text",
	EventRawRDS:               "raw-rds",
	EventAudioPathChanged:     "audio-path-changed",
	EventPTYChanged:           "pty-changed",
	EventCompleteScanDone:     "complete-scan-done",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is delivered to the application. Type selects which of the
// payload fields are meaningful.
type Event struct {
	Type   EventType
	Cmd    CommandType
	Status Status

	// Value is the result of a command: a frequency in kHz or the
	// requested setting.
	Value uint32

	// RDS payload.
	PI         uint16
	PTY        uint8
	PS         string
	Text       string
	TextStart  int
	NewMessage bool
	Repertoire rds.Repertoire
	AF         []uint32
	Group      rds.GroupType
	Raw        [8]byte

	// Mode is the stereo indicator of EventMonoStereoChanged.
	Mode MonoStereoMode

	// PrevFreq and Freq describe AF switching.
	PrevFreq uint32
	Freq     uint32

	// Channels found by a complete scan.
	Channels []uint32

	// Audio routing payload.
	Targets     audio.Target
	Unavailable []audio.Resource
}

// Pending is the handle of an accepted command. It resolves with the
// command's terminal event.
type Pending struct {
	cmd   CommandType
	done  chan struct{}
	event Event
}

func newPending(cmd CommandType) *Pending {
	return &Pending{cmd: cmd, done: make(chan struct{})}
}

func (p *Pending) resolve(ev Event) {
	p.event = ev
	close(p.done)
}

// Command returns the command the handle belongs to.
func (p *Pending) Command() CommandType {
	return p.cmd
}

// Done is closed once the terminal event was delivered.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Event returns the terminal event. It is only valid after Done is closed.
func (p *Pending) Event() Event {
	<-p.done
	return p.event
}

// Wait blocks until the terminal event arrives or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Event, error) {
	select {
	case <-p.done:
		return p.event, nil
	case <-ctx.Done():
		return Event{}, fmt.Errorf("waiting for %s: %w", p.cmd, ctx.Err())
	}
}

func fromRDS(e rds.Event) Event {
	ev := Event{
		PI:         e.PI,
		PTY:        e.PTY,
		PS:         e.PS,
		Text:       e.Text,
		TextStart:  e.TextStart,
		NewMessage: e.NewMessage,
		Repertoire: e.Repertoire,
		AF:         e.AF,
		Group:      e.Group,
		Raw:        e.Raw,
	}
	switch e.Kind {
	case rds.PIChanged:
		ev.Type = EventPIChanged
	case rds.PTYChanged:
		ev.Type = EventPTYChanged
	case rds.PSChanged:
		ev.Type = EventPSChanged
	case rds.RadioText:
		ev.Type = EventRadioText
	case rds.AFListChanged:
		ev.Type = EventAFListChanged
	case rds.RawGroup:
		ev.Type = EventRawRDS
	}
	return ev
}
