package rds

const (
	psSegments  = 4
	psResetNext = 9
	endOfText   = 0x0D
)

// ps assembles the program service name. A name must be received twice in
// a row before it is published.
type ps struct {
	name       [PSLength]byte
	published  bool
	candidate  [PSLength]byte
	work       [PSLength]byte
	next       int
	same       int
	repertoire Repertoire
}

func (s *ps) reset() {
	*s = ps{}
	for i := range s.work {
		s.work[i] = ' '
	}
}

func (p *Parser) handlePS(events []Event, groupType GroupType, blockB uint16) []Event {
	g := p.group
	if groupType == Group0A {
		events = p.handleAF(events, g[4], g[5])
	}

	s := &p.ps
	idx := int(blockB & 0x03)
	if idx != s.next && idx != 0 {
		s.next = psResetNext
		return events
	}

	if idx == 0 {
		if rep, ok := repertoireMarker(g[6], g[7]); ok {
			s.repertoire = rep
		}
	}
	s.work[idx*2] = g[6]
	s.work[idx*2+1] = g[7]
	s.next = idx + 1
	if s.next < psSegments {
		return events
	}

	if s.work != s.candidate {
		s.candidate = s.work
		s.same = 1
		return events
	}
	if s.same > 1 {
		return events
	}
	s.same++
	if s.same == 2 && (!s.published || s.name != s.candidate) {
		s.name = s.candidate
		s.published = true
		events = append(events, Event{Kind: PSChanged, PI: p.pi, PS: string(s.name[:]), Repertoire: s.repertoire})
	}
	return events
}

// radioText assembles RadioText messages. Whatever was accumulated is
// flushed as one event on every message boundary.
type radioText struct {
	buf        [MaxRadioTextLength]byte
	length     int
	start      int
	next       int
	versionB   bool
	ab         bool
	haveAB     bool
	abChanged  bool
	ended      bool
	repertoire Repertoire
}

func (rt *radioText) reset() {
	*rt = radioText{}
}

func (rt *radioText) flush(events []Event, pi uint16) []Event {
	if rt.length > 0 {
		events = append(events, Event{
			Kind:       RadioText,
			PI:         pi,
			Text:       string(rt.buf[:rt.length]),
			TextStart:  rt.start,
			NewMessage: rt.abChanged,
			Repertoire: rt.repertoire,
		})
		rt.abChanged = false
	}
	rt.length = 0
	rt.start = 0
	rt.next = 0
	return events
}

func (p *Parser) handleRadioText(events []Event, groupType GroupType, blockB uint16) []Event {
	rt := &p.rt
	g := p.group
	versionB := groupType.VersionB()
	seg := int(blockB & 0x0F)
	ab := blockB&0x10 != 0

	width, limit := 4, MaxRadioTextLength
	chars := []byte{g[4], g[5], g[6], g[7]}
	if versionB {
		width, limit = 2, MaxRadioTextLength/2
		chars = chars[2:]
	}

	toggled := !rt.haveAB || ab != rt.ab
	if rt.ended {
		// padding after the end of text byte
		if !toggled && seg != 0 {
			return events
		}
		rt.ended = false
	}

	switch {
	case toggled:
		events = rt.flush(events, p.pi)
		rt.ab = ab
		rt.haveAB = true
		rt.abChanged = true
	case rt.length > 0 && versionB != rt.versionB:
		events = rt.flush(events, p.pi)
	case seg != rt.next:
		events = rt.flush(events, p.pi)
	}

	if rt.length == 0 {
		rt.start = seg * width
		rt.versionB = versionB
	}

	if seg == 0 {
		if rep, ok := repertoireMarker(chars[0], chars[1]); ok {
			rt.repertoire = rep
			chars = chars[2:]
		}
	}

	for _, c := range chars {
		if c == endOfText {
			events = rt.flush(events, p.pi)
			rt.ended = true
			return events
		}
		if rt.start+rt.length < limit {
			rt.buf[rt.length] = c
			rt.length++
		}
	}

	rt.next = seg + 1
	if rt.next*width >= limit {
		events = rt.flush(events, p.pi)
	}
	return events
}
