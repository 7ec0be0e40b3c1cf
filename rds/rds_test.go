package rds

import (
	"testing"

	"gobot.io/x/gobot/gobottest"
)

const testPI = 0x54A8

var europe = Tuning{BandStart: 87500, MaxAFCode: MaxAFCodeEurope, Frequency: 98500}

// group encodes four block words with error free status bytes.
func group(a, b, c, d uint16) []byte {
	return []byte{
		byte(a >> 8), byte(a), BlockA,
		byte(b >> 8), byte(b), BlockB,
		byte(c >> 8), byte(c), BlockC,
		byte(d >> 8), byte(d), BlockD,
	}
}

func psGroups(name string, afCodes ...[2]byte) []byte {
	var out []byte
	for i := 0; i < 4; i++ {
		var c uint16 = 0xE0CD
		if i < len(afCodes) {
			c = uint16(afCodes[i][0])<<8 | uint16(afCodes[i][1])
		}
		out = append(out, group(testPI, 0x0000|uint16(i), c, uint16(name[i*2])<<8|uint16(name[i*2+1]))...)
	}
	return out
}

func rt2B(ab bool, seg int, b0, b1 byte) []byte {
	b := uint16(0x2800 | seg)
	if ab {
		b |= 0x10
	}
	return group(testPI, b, testPI, uint16(b0)<<8|uint16(b1))
}

func rt2A(ab bool, seg int, text string) []byte {
	b := uint16(0x2000 | seg)
	if ab {
		b |= 0x10
	}
	return group(testPI, b, uint16(text[0])<<8|uint16(text[1]), uint16(text[2])<<8|uint16(text[3]))
}

func filter(events []Event, kind EventKind) []Event {
	var res []Event
	for _, e := range events {
		if e.Kind == kind {
			res = append(res, e)
		}
	}
	return res
}

func TestPIAndPTYChangeOnce(t *testing.T) {
	p := NewParser(WithTuning(europe))

	events := p.Feed(append(group(testPI, 0x0140, 0, 0), group(testPI, 0x0140, 0, 0)...), GroupMaskAll)
	pi := filter(events, PIChanged)
	gobottest.Assert(t, len(pi), 1)
	gobottest.Assert(t, pi[0].PI, uint16(testPI))

	pty := filter(events, PTYChanged)
	gobottest.Assert(t, len(pty), 1)
	gobottest.Assert(t, pty[0].PTY, uint8(10))

	events = p.Feed(group(0x1234, 0x0140, 0, 0), GroupMaskAll)
	gobottest.Assert(t, len(filter(events, PIChanged)), 1)
	gobottest.Assert(t, len(filter(events, PTYChanged)), 0)
}

func TestPSPublishedAfterTwoPasses(t *testing.T) {
	p := NewParser(WithTuning(europe))

	events := p.Feed(psGroups("RADIO 1 "), GroupMaskAll)
	gobottest.Assert(t, len(filter(events, PSChanged)), 0)
	gobottest.Assert(t, p.Station().HasPS, false)

	events = p.Feed(psGroups("RADIO 1 "), GroupMaskAll)
	ps := filter(events, PSChanged)
	gobottest.Assert(t, len(ps), 1)
	gobottest.Assert(t, ps[0].PS, "RADIO 1 ")
	gobottest.Assert(t, p.Station().PS, "RADIO 1 ")

	events = p.Feed(psGroups("RADIO 1 "), GroupMaskAll)
	gobottest.Assert(t, len(filter(events, PSChanged)), 0)
}

func TestPSOutOfSequenceDiscarded(t *testing.T) {
	p := NewParser(WithTuning(europe))

	full := psGroups("ABCDEFGH")
	// segments 0, 2, 3: segment 1 missing
	broken := append(append([]byte{}, full[:12]...), full[24:]...)
	for i := 0; i < 3; i++ {
		events := p.Feed(broken, GroupMaskAll)
		gobottest.Assert(t, len(filter(events, PSChanged)), 0)
	}
}

func TestBlockErrorDropsGroup(t *testing.T) {
	p := NewParser(WithTuning(europe))

	data := group(testPI, 0x0000, 0, 0)
	data[8] |= 0x08
	events := p.Feed(data, GroupMaskAll)
	gobottest.Assert(t, len(events), 0)

	// block D without B and C
	events = p.Feed([]byte{0x54, 0xA8, BlockA, 0x00, 0x00, BlockD}, GroupMaskAll)
	gobottest.Assert(t, len(events), 0)

	events = p.Feed(group(testPI, 0x0000, 0, 0), GroupMaskAll)
	gobottest.Assert(t, len(filter(events, PIChanged)), 1)
}

func TestSwappedBytes(t *testing.T) {
	p := NewParser(WithTuning(europe), WithSwappedBytes(true))

	data := group(0xA854, 0x0000, 0, 0)
	events := p.Feed(data, GroupMaskAll)
	pi := filter(events, PIChanged)
	gobottest.Assert(t, len(pi), 1)
	gobottest.Assert(t, pi[0].PI, uint16(testPI))
}

func TestRadioTextEndOfTextTypeB(t *testing.T) {
	p := NewParser(WithTuning(europe))

	var data []byte
	data = append(data, rt2B(false, 0, 'H', 'e')...)
	data = append(data, rt2B(false, 1, 'l', 'l')...)
	data = append(data, rt2B(false, 2, 'o', endOfText)...)
	for seg := 3; seg < 16; seg++ {
		data = append(data, rt2B(false, seg, 0, 0)...)
	}

	rt := filter(p.Feed(data, GroupMaskAll), RadioText)
	gobottest.Assert(t, len(rt), 1)
	gobottest.Assert(t, rt[0].Text, "Hello")
	gobottest.Assert(t, len(rt[0].Text), 5)
	gobottest.Assert(t, rt[0].TextStart, 0)
	gobottest.Assert(t, rt[0].NewMessage, true)
}

func TestRadioTextMaxLengthTypeA(t *testing.T) {
	p := NewParser(WithTuning(europe))

	msg := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	var data []byte
	for seg := 0; seg < 16; seg++ {
		data = append(data, rt2A(true, seg, msg[seg*4:seg*4+4])...)
	}

	rt := filter(p.Feed(data, GroupMaskAll), RadioText)
	gobottest.Assert(t, len(rt), 1)
	gobottest.Assert(t, rt[0].Text, msg)
}

func TestRadioTextFlushOnToggleAndGap(t *testing.T) {
	p := NewParser(WithTuning(europe))

	var data []byte
	data = append(data, rt2A(false, 0, "Good")...)
	data = append(data, rt2A(false, 1, " mor")...)
	// A/B toggles: the partial message is flushed
	data = append(data, rt2A(true, 0, "News")...)
	// segment 2 skipped
	data = append(data, rt2A(true, 2, "oops")...)

	rt := filter(p.Feed(data, GroupMaskAll), RadioText)
	gobottest.Assert(t, len(rt), 2)
	gobottest.Assert(t, rt[0].Text, "Good mor")
	gobottest.Assert(t, rt[1].Text, "News")
	gobottest.Assert(t, rt[1].NewMessage, true)

	rt = filter(p.Feed(rt2A(true, 3, "\r   "), GroupMaskAll), RadioText)
	gobottest.Assert(t, len(rt), 1)
	gobottest.Assert(t, rt[0].Text, "oops")
	gobottest.Assert(t, rt[0].TextStart, 8)
	gobottest.Assert(t, rt[0].NewMessage, false)
}

func TestRadioTextRepertoireExcluded(t *testing.T) {
	p := NewParser(WithTuning(europe))

	var data []byte
	data = append(data, rt2A(false, 0, "\x0e\x0eHi")...)
	data = append(data, rt2A(false, 1, "!\r  ")...)

	rt := filter(p.Feed(data, GroupMaskAll), RadioText)
	gobottest.Assert(t, len(rt), 1)
	gobottest.Assert(t, rt[0].Text, "Hi!")
	gobottest.Assert(t, rt[0].Repertoire, RepertoireG1)
}

func TestGroupMaskFiltersHandlers(t *testing.T) {
	p := NewParser(WithTuning(europe))

	events := p.Feed(rt2A(false, 0, "\rxxx"), Group0A.Mask())
	gobottest.Assert(t, len(filter(events, RawGroup)), 0)
	gobottest.Assert(t, len(filter(events, PIChanged)), 1)

	events = p.Feed(group(testPI, 0x0000, 0xE0CD, 0x4142), Group0A.Mask())
	raw := filter(events, RawGroup)
	gobottest.Assert(t, len(raw), 1)
	gobottest.Assert(t, raw[0].Group, Group0A)
	gobottest.Assert(t, raw[0].Group.String(), "0A")
}

func TestAFListIdempotent(t *testing.T) {
	p := NewParser(WithTuning(europe))

	// 227: three AFs follow, 112 -> 98.7 MHz, 110 -> 98.5 MHz (tuned)
	events := p.Feed(psGroups("STATION ", [2]byte{227, 112}, [2]byte{112, 110}, [2]byte{120, 205}), GroupMaskAll)
	af := filter(events, AFListChanged)
	gobottest.Assert(t, len(af), 2)
	gobottest.Assert(t, af[1].PI, uint16(testPI))
	gobottest.Assert(t, af[1].AF, []uint32{98700, 99500})

	st := p.Station()
	gobottest.Assert(t, st.AF, []uint32{98700, 99500})
	gobottest.Assert(t, st.AFExpected, 3)

	events = p.Feed(psGroups("STATION ", [2]byte{112, 112}), GroupMaskAll)
	gobottest.Assert(t, len(filter(events, AFListChanged)), 0)
	gobottest.Assert(t, len(p.Station().AF), 2)
}

func TestAFListBoundedByDeclaredCount(t *testing.T) {
	p := NewParser(WithTuning(europe))

	p.Feed(psGroups("STATION ", [2]byte{225, 112}, [2]byte{113, 114}), GroupMaskAll)
	gobottest.Assert(t, p.Station().AF, []uint32{98700})
}

func TestResetKeepsPI(t *testing.T) {
	p := NewParser(WithTuning(europe))
	p.Feed(psGroups("STATION ", [2]byte{226, 112}), GroupMaskAll)
	p.Feed(psGroups("STATION "), GroupMaskAll)
	gobottest.Assert(t, p.Station().HasPS, true)

	p.Reset(98700, true)
	st := p.Station()
	gobottest.Assert(t, st.HasPI, true)
	gobottest.Assert(t, st.PI, uint16(testPI))
	gobottest.Assert(t, st.HasPS, false)
	gobottest.Assert(t, len(st.AF), 0)

	p.Reset(98700, false)
	gobottest.Assert(t, p.Station().HasPI, false)
}
