// Package rds decodes the Radio Data System sub-channel as it is delivered
// by the receiver chip: a stream of 3 byte blocks, each made of two data
// bytes and one status byte.
//
// Complete groups are turned into station facts (PI, PTY, PS name,
// RadioText and the alternate frequency list). The Parser keeps the
// reassembly state between calls and only reports changes.
//
// To read about the RDS standard, see IEC 62106 or the older
// CENELEC EN 50067 document.
package rds

import (
	"fmt"

	"go.uber.org/zap"
)

// Block types reported in the low bits of the block status byte.
//
//goland:noinspection GoUnusedConst
const (
	BlockA = iota
	BlockB
	BlockC
	BlockCPrime
	BlockD
	BlockE
)

// Limits of the decoded station data.
const (
	// MaxAFListSize is the largest AF list a station can announce.
	MaxAFListSize = 25

	// PSLength is the length of the program service name.
	PSLength = 8

	// MaxRadioTextLength is the largest RadioText message (version A groups).
	MaxRadioTextLength = 64
)

const (
	blockSize      = 3
	groupSize      = 8
	blockTypeMask  = 0x07
	blockErrorMask = 0x18
	unknownBlock   = -1
	lastBlockIndex = 3
)

// GroupType identifies one of the 32 RDS groups: the 4 bit group type
// followed by the version bit (0 = A, 1 = B).
type GroupType uint8

// Group types the parser knows about.
//
//goland:noinspection GoUnusedConst
const (
	Group0A GroupType = 0
	Group0B GroupType = 1
	Group1A GroupType = 2
	Group1B GroupType = 3
	Group2A GroupType = 4
	Group2B GroupType = 5
)

// Mask returns the one-hot mask bit of the group.
func (g GroupType) Mask() GroupMask {
	return GroupMask(1) << g
}

// VersionB reports whether the group is a version B group.
func (g GroupType) VersionB() bool {
	return g&1 == 1
}

func (g GroupType) String() string {
	return fmt.Sprintf("%d%c", g>>1, 'A'+byte(g&1))
}

// GroupMask is a set of group types, one bit per GroupType.
type GroupMask uint32

// GroupMaskAll accepts every group.
const GroupMaskAll GroupMask = 0xFFFFFFFF

// Has reports whether the group is part of the mask.
func (m GroupMask) Has(g GroupType) bool {
	return m&g.Mask() != 0
}

// Repertoire is the character table selected by the station.
type Repertoire uint8

// Character repertoires.
const (
	RepertoireG0 Repertoire = iota
	RepertoireG1
	RepertoireG2
)

func (r Repertoire) String() string {
	switch r {
	case RepertoireG1:
		return "G1"
	case RepertoireG2:
		return "G2"
	default:
		return "G0"
	}
}

// repertoireMarker detects the two byte code table selector that may open
// a PS name or a RadioText message.
func repertoireMarker(b0, b1 byte) (Repertoire, bool) {
	switch {
	case b0 == 0x0F && b1 == 0x0F:
		return RepertoireG0, true
	case b0 == 0x0E && b1 == 0x0E:
		return RepertoireG1, true
	case b0 == 0x1B && b1 == 0x6E:
		return RepertoireG2, true
	}
	return RepertoireG0, false
}

// EventKind is the kind of fact reported by the parser.
type EventKind int

// Parser events.
const (
	PIChanged EventKind = iota
	PTYChanged
	PSChanged
	RadioText
	AFListChanged
	RawGroup
)

func (k EventKind) String() string {
	switch k {
	case PIChanged:
		return "pi-changed"
	case PTYChanged:
		return "pty-changed"
	case PSChanged:
		return "ps-changed"
	case RadioText:
		return "radio-text"
	case AFListChanged:
		return "af-list-changed"
	case RawGroup:
		return "raw-group"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a single decoded change. Only the fields matching Kind are set.
type Event struct {
	Kind EventKind

	PI  uint16
	PTY uint8
	PS  string

	// Text holds the RadioText bytes, TextStart their position in the
	// message and NewMessage is set when the A/B flag toggled.
	Text       string
	TextStart  int
	NewMessage bool
	Repertoire Repertoire

	AF []uint32

	Group GroupType
	Raw   [groupSize]byte
}

// Tuning holds the receiver band data needed to decode AF codes.
type Tuning struct {
	// BandStart is the first frequency of the band in kHz.
	BandStart uint32

	// MaxAFCode is the last valid AF code for the band.
	MaxAFCode uint8

	// Frequency is the currently tuned frequency in kHz.
	Frequency uint32
}

// Station is a snapshot of the decoded data of the tuned station.
type Station struct {
	PI     uint16
	HasPI  bool
	PTY    uint8
	HasPTY bool
	PS     string
	HasPS  bool

	AF         []uint32
	AFExpected int
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report dropped blocks and groups.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// WithSwappedBytes makes the parser swap the two data bytes of each block.
// Some chip revisions deliver them in little endian order.
func WithSwappedBytes(swap bool) Option {
	return func(p *Parser) {
		p.swap = swap
	}
}

// WithTuning sets the initial band data.
func WithTuning(t Tuning) Option {
	return func(p *Parser) {
		p.tuning = t
	}
}

// Parser reassembles RDS groups and tracks the tuned station.
// It is not safe for concurrent use.
type Parser struct {
	log    *zap.SugaredLogger
	swap   bool
	tuning Tuning

	lastBlock int
	group     [groupSize]byte

	pi      uint16
	havePI  bool
	pty     uint8
	havePTY bool

	ps ps
	af af
	rt radioText
}

// NewParser returns a parser with empty station data.
func NewParser(options ...Option) *Parser {
	p := &Parser{
		log:       zap.NewNop().Sugar(),
		lastBlock: unknownBlock,
	}
	for _, option := range options {
		option(p)
	}
	p.ps.reset()
	return p
}

// SetSwappedBytes changes the byte order handling, see WithSwappedBytes.
func (p *Parser) SetSwappedBytes(swap bool) {
	p.swap = swap
}

// SetTuning updates the band data. The station data is left untouched.
func (p *Parser) SetTuning(t Tuning) {
	p.tuning = t
}

// Reset drops all station data and reassembly state after a frequency
// change. keepPI preserves the PI code, which is the case after a
// successful AF jump.
func (p *Parser) Reset(freq uint32, keepPI bool) {
	p.tuning.Frequency = freq
	p.lastBlock = unknownBlock
	if !keepPI {
		p.pi = 0
		p.havePI = false
	}
	p.pty = 0
	p.havePTY = false
	p.ps.reset()
	p.af.reset()
	p.rt.reset()
}

// Station returns a copy of the decoded station data.
func (p *Parser) Station() Station {
	st := Station{
		PI:         p.pi,
		HasPI:      p.havePI,
		PTY:        p.pty,
		HasPTY:     p.havePTY,
		HasPS:      p.ps.published,
		AFExpected: p.af.expected,
	}
	if p.ps.published {
		st.PS = string(p.ps.name[:])
	}
	if len(p.af.list) > 0 {
		st.AF = append([]uint32(nil), p.af.list...)
	}
	return st
}

// Feed consumes raw blocks and returns the resulting events in order.
// Groups whose type is not part of mask are only used for PI and PTY.
// A trailing partial block is ignored.
func (p *Parser) Feed(data []byte, mask GroupMask) []Event {
	var events []Event
	for off := 0; off+blockSize <= len(data); off += blockSize {
		status := data[off+2]
		blockType := int(status & blockTypeMask)
		idx := blockType
		if blockType > BlockC {
			idx = blockType - 1
		}

		if status&blockErrorMask != 0 ||
			(idx != 0 && (idx != p.lastBlock+1 || idx > lastBlockIndex)) {
			if p.lastBlock != unknownBlock {
				p.log.Debugw("dropping rds group", "block", blockType, "status", fmt.Sprintf("0x%02x", status), "last", p.lastBlock)
			}
			p.lastBlock = unknownBlock
			continue
		}

		hi, lo := data[off], data[off+1]
		if p.swap {
			hi, lo = lo, hi
		}
		p.group[idx*2] = hi
		p.group[idx*2+1] = lo
		p.lastBlock = idx

		if idx == lastBlockIndex {
			events = p.handleGroup(events, mask)
			p.lastBlock = unknownBlock
		}
	}
	return events
}

func (p *Parser) handleGroup(events []Event, mask GroupMask) []Event {
	g := p.group

	pi := uint16(g[0])<<8 | uint16(g[1])
	if !p.havePI || pi != p.pi {
		p.pi = pi
		p.havePI = true
		events = append(events, Event{Kind: PIChanged, PI: pi})
	}

	groupType := GroupType((g[2] & 0xF8) >> 3)
	blockB := uint16(g[2])<<8 | uint16(g[3])

	pty := uint8((blockB & 0x03E0) >> 5)
	if !p.havePTY || pty != p.pty {
		p.pty = pty
		p.havePTY = true
		events = append(events, Event{Kind: PTYChanged, PI: pi, PTY: pty})
	}

	if !mask.Has(groupType) {
		return events
	}
	events = append(events, Event{Kind: RawGroup, PI: pi, Group: groupType, Raw: g})

	switch groupType {
	case Group0A, Group0B:
		events = p.handlePS(events, groupType, blockB)
	case Group2A, Group2B:
		events = p.handleRadioText(events, groupType, blockB)
	default:
		p.log.Debugw("ignoring rds group", "group", groupType.String(), "pi", fmt.Sprintf("0x%04x", pi))
	}
	return events
}
