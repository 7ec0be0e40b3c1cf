package rds

// AF code ranges.
const (
	afCodeMin        = 1
	afCountCodeFirst = 225
	afCountCodeLast  = 249
	afCountCodeBase  = 224
	afStepKHz        = 100

	// MaxAFCodeEurope is the last AF code of the 87.5 to 108 MHz band.
	MaxAFCodeEurope = 204

	// MaxAFCodeJapan is the last AF code of the 76 to 90 MHz band.
	MaxAFCodeJapan = 140
)

type af struct {
	list     []uint32
	expected int
}

func (a *af) reset() {
	a.list = a.list[:0]
	a.expected = 0
}

func (p *Parser) handleAF(events []Event, codes ...byte) []Event {
	changed := false
	for _, code := range codes {
		if p.checkAF(code) {
			changed = true
		}
	}
	if changed {
		events = append(events, Event{
			Kind: AFListChanged,
			PI:   p.pi,
			AF:   append([]uint32(nil), p.af.list...),
		})
	}
	return events
}

// checkAF applies one AF code to the list and reports whether it changed.
func (p *Parser) checkAF(code byte) bool {
	a := &p.af
	switch {
	case code >= afCountCodeFirst && code <= afCountCodeLast:
		a.expected = int(code - afCountCodeBase)
		a.list = a.list[:0]
		return true

	case code >= afCodeMin && code <= p.tuning.MaxAFCode:
		freq := p.tuning.BandStart + uint32(code)*afStepKHz
		if freq == p.tuning.Frequency {
			return false
		}
		for _, f := range a.list {
			if f == freq {
				return false
			}
		}
		if len(a.list) >= a.expected || len(a.list) >= MaxAFListSize {
			return false
		}
		a.list = append(a.list, freq)
		return true
	}
	// filler and "no AF" codes
	return false
}
