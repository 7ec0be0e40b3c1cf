// Package audio arbitrates the audio resources shared by the FM receiver
// and the other users of the chip (Bluetooth voice and media links).
//
// The receiver engine reaches it through the Coordinator interface. An
// operation either starts at once, completes later through the registered
// Listener, or is refused with the list of resources held by someone else.
package audio

import (
	"fmt"
	"strings"
)

// Result of a coordinator call.
type Result int

// Coordinator results.
const (
	Success Result = iota
	Pending
	UnavailableResources
	NotSupported
	Failed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Pending:
		return "pending"
	case UnavailableResources:
		return "unavailable-resources"
	case NotSupported:
		return "not-supported"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Operation is an audio use case owning a set of resources.
type Operation int

// Operations of the FM receiver.
const (
	// OpFMRx routes the receiver output to the local sinks (analog, I2S, PCM).
	OpFMRx Operation = iota

	// OpFMOverSCO routes the receiver output to a Bluetooth voice link.
	OpFMOverSCO

	// OpFMOverA2DP routes the receiver output to a Bluetooth media link.
	OpFMOverA2DP
)

func (o Operation) String() string {
	switch o {
	case OpFMRx:
		return "fm-rx"
	case OpFMOverSCO:
		return "fm-over-sco"
	case OpFMOverA2DP:
		return "fm-over-a2dp"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Resource is a physical audio resource.
type Resource int

// Known resources.
const (
	ResourceFMAnalog Resource = iota
	ResourceI2S
	ResourcePCM
	ResourceFMRxPath
	ResourceSCOLink
	ResourceA2DPLink
)

func (r Resource) String() string {
	switch r {
	case ResourceFMAnalog:
		return "fm-analog"
	case ResourceI2S:
		return "i2s"
	case ResourcePCM:
		return "pcm"
	case ResourceFMRxPath:
		return "fm-rx-path"
	case ResourceSCOLink:
		return "sco-link"
	case ResourceA2DPLink:
		return "a2dp-link"
	}
	return fmt.Sprintf("Resource(%d)", int(r))
}

// Target is a bit mask of the sinks the receiver output goes to.
type Target uint32

// Audio targets.
const (
	TargetI2S Target = 1 << iota
	TargetAnalog
	TargetPCM
	TargetFMOverSCO
	TargetFMOverA2DP

	// TargetNone disables every sink.
	TargetNone Target = 0
)

// RxTargets are the targets served by OpFMRx.
const RxTargets = TargetI2S | TargetAnalog | TargetPCM

func (t Target) String() string {
	if t == TargetNone {
		return "none"
	}
	var names []string
	for _, n := range []struct {
		t    Target
		name string
	}{
		{TargetI2S, "i2s"},
		{TargetAnalog, "analog"},
		{TargetPCM, "pcm"},
		{TargetFMOverSCO, "fm-over-sco"},
		{TargetFMOverA2DP, "fm-over-a2dp"},
	} {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Resources returns the resources needed to feed the targets.
func (t Target) Resources() []Resource {
	var res []Resource
	if t&TargetAnalog != 0 {
		res = append(res, ResourceFMAnalog)
	}
	if t&TargetI2S != 0 {
		res = append(res, ResourceI2S)
	}
	if t&(TargetPCM|TargetFMOverSCO) != 0 {
		res = append(res, ResourcePCM)
	}
	if t&TargetFMOverSCO != 0 {
		res = append(res, ResourceSCOLink)
	}
	if t&TargetFMOverA2DP != 0 {
		res = append(res, ResourceI2S, ResourceA2DPLink)
	}
	return res
}

// SampleRate of the digital audio interface in Hz.
type SampleRate uint32

// DigitalConfig describes the digital audio interface format.
type DigitalConfig struct {
	SampleRate SampleRate
	Channels   uint8
}

// Validate checks the digital configuration.
func (c DigitalConfig) Validate() error {
	switch c.SampleRate {
	case 8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("unsupported channel count %d", c.Channels)
	}
	return nil
}

// Listener receives the completion of a Pending operation.
type Listener func(op Operation, res Result, unavailable []Resource)

// Coordinator is the audio routing arbiter used by the receiver engine.
type Coordinator interface {
	// SetListener registers the callback for pending operations.
	SetListener(l Listener)

	// StartOperation acquires the resources of op for the targets.
	StartOperation(op Operation, targets Target, cfg DigitalConfig) (Result, []Resource)

	// StopOperation releases the resources of op.
	StopOperation(op Operation) Result

	// ChangeResource moves a running op to a new set of targets.
	ChangeResource(op Operation, targets Target, cfg DigitalConfig) (Result, []Resource)

	// ChangeConfiguration changes the digital format of a running op.
	ChangeConfiguration(op Operation, cfg DigitalConfig) Result
}
