package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"fmreceiver/radio"
)

// statusPrinter prints one line per receiver event, colored when stdout
// is a terminal.
type statusPrinter struct {
	mtx sync.Mutex
	out io.Writer

	freqColor  *color.Color
	psColor    *color.Color
	textColor  *color.Color
	infoColor  *color.Color
	errorColor *color.Color
}

func newStatusPrinter(f *os.File) *statusPrinter {
	s := &statusPrinter{
		out:        f,
		freqColor:  color.New(color.FgHiWhite, color.Bold),
		psColor:    color.New(color.FgHiWhite),
		textColor:  color.New(color.FgCyan),
		infoColor:  color.New(color.FgHiBlack),
		errorColor: color.New(color.FgHiWhite),
	}
	s.psColor.Add(color.BgBlue)
	s.errorColor.Add(color.BgRed)

	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		for _, c := range []*color.Color{s.freqColor, s.psColor, s.textColor, s.infoColor, s.errorColor} {
			c.DisableColor()
		}
	}
	return s
}

func (s *statusPrinter) event(ev radio.Event) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	switch ev.Type {
	case radio.EventCmdDone:
		if ev.Status != radio.StatusSuccess {
			s.errorColor.Fprintf(s.out, " %s: %s ", ev.Cmd, ev.Status)
			fmt.Fprintln(s.out)
			return
		}
		switch ev.Cmd {
		case radio.CmdTune, radio.CmdSeek, radio.CmdGetTunedFrequency:
			s.freqColor.Fprintf(s.out, "%s\n", frequency(ev.Value))
		default:
			s.infoColor.Fprintf(s.out, "%s: %d\n", ev.Cmd, ev.Value)
		}
	case radio.EventCompleteScanDone:
		var freqs []string
		for _, f := range ev.Channels {
			freqs = append(freqs, frequency(f))
		}
		s.freqColor.Fprintf(s.out, "%d channels: %s\n", len(ev.Channels), strings.Join(freqs, ", "))
	case radio.EventPIChanged:
		s.infoColor.Fprintf(s.out, "PI %04X\n", ev.PI)
	case radio.EventPTYChanged:
		s.infoColor.Fprintf(s.out, "PTY %d\n", ev.PTY)
	case radio.EventPSChanged:
		s.psColor.Fprintf(s.out, " %s ", ev.PS)
		fmt.Fprintln(s.out)
	case radio.EventRadioText:
		s.textColor.Fprintf(s.out, "%s\n", strings.TrimSpace(ev.Text))
	case radio.EventMonoStereoChanged:
		s.infoColor.Fprintf(s.out, "%s\n", ev.Mode)
	case radio.EventAFListChanged:
		var freqs []string
		for _, f := range ev.AF {
			freqs = append(freqs, frequency(f))
		}
		s.infoColor.Fprintf(s.out, "AF %s\n", strings.Join(freqs, " "))
	case radio.EventAFSwitchStart:
		s.infoColor.Fprintf(s.out, "AF switch from %s\n", frequency(ev.PrevFreq))
	case radio.EventAFSwitchToFreqFailed:
		s.infoColor.Fprintf(s.out, "AF %s failed\n", frequency(ev.Freq))
	case radio.EventAFSwitchComplete:
		if ev.Status != radio.StatusSuccess {
			s.errorColor.Fprintf(s.out, " AF switch: %s ", ev.Status)
			fmt.Fprintln(s.out)
			return
		}
		s.freqColor.Fprintf(s.out, "%s (AF)\n", frequency(ev.Freq))
	case radio.EventAudioPathChanged:
		s.infoColor.Fprintf(s.out, "audio %s\n", ev.Targets)
	}
}

func frequency(khz uint32) string {
	if khz == radio.FREQ_UNDEFINED {
		return "---.--MHz"
	}
	return fmt.Sprintf("%.2fMHz", float64(khz)/1000)
}
