// Package display shows the tuned station on a SunFounder LCD1602.
package display

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"

	"fmreceiver/radio"
)

const (
	// command signals that we want to send a command to the screen
	command = 0x04

	// data signals that we want to send a command to the screen
	data = 0x05

	// address is our default address
	address = 0x27

	// width is the number of characters per line
	width = 16
)

// StationDisplay renders the frequency, the PS name and the radio text of
// the tuned station.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type StationDisplay struct {
	name         string
	i2cConnector i2c.Connector
	i2c.Config
	gobot.Commander

	mtx              sync.Mutex
	conn             i2c.Connection
	backlightEnabled bool
	shown            [2]string

	freq   uint32
	ps     string
	text   string
	stereo bool
}

// NewStationDisplay creates a new gobot driver for the station display.
func NewStationDisplay(connector i2c.Connector, options ...func(i2c.Config)) *StationDisplay {
	d := &StationDisplay{
		name:             gobot.DefaultName("StationDisplay"),
		i2cConnector:     connector,
		Config:           i2c.NewConfig(),
		Commander:        gobot.NewCommander(),
		backlightEnabled: true,
		freq:             radio.FREQ_UNDEFINED,
	}

	for _, option := range options {
		option(d)
	}

	d.AddCommand("message", func(params map[string]interface{}) interface{} {
		msg, _ := params["message"].(string)
		return d.Message(msg)
	})
	d.AddCommand("backlight", func(params map[string]interface{}) interface{} {
		on, _ := params["on"].(bool)
		return d.SetBacklight(on)
	})

	return d
}

// Name of our device
func (d *StationDisplay) Name() string {
	return d.name
}

// SetName set the name of our device
func (d *StationDisplay) SetName(name string) {
	d.name = name
}

// Start initializes the screen in 4 bit mode
func (d *StationDisplay) Start() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	bus := d.GetBusOrDefault(d.i2cConnector.GetDefaultBus())
	var err error
	d.conn, err = d.i2cConnector.GetConnection(d.GetAddressOrDefault(address), bus)
	if err != nil {
		return err
	}

	for _, cmd := range []byte{0x33, 0x32, 0x28, 0x0C} {
		if err = d.sendCommand(cmd); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}

	return d.clear()
}

// Halt clears the screen and turns the backlight off
func (d *StationDisplay) Halt() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.conn == nil {
		return nil
	}
	d.backlightEnabled = false
	return d.clear()
}

// Connection retrieves the i2c connection to the device
func (d *StationDisplay) Connection() gobot.Connection {
	c, _ := d.i2cConnector.(gobot.Connection)
	return c
}

// Follow updates the display from the events of r.
func (d *StationDisplay) Follow(r *radio.Receiver) error {
	for _, t := range []radio.EventType{
		radio.EventCmdDone,
		radio.EventPSChanged,
		radio.EventRadioText,
		radio.EventMonoStereoChanged,
		radio.EventAFSwitchComplete,
		radio.EventCompleteScanDone,
	} {
		if err := r.On(t.String(), func(s interface{}) {
			if ev, ok := s.(radio.Event); ok {
				_ = d.Update(ev)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a receiver event and redraws what changed.
func (d *StationDisplay) Update(ev radio.Event) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	switch ev.Type {
	case radio.EventCmdDone:
		switch ev.Cmd {
		case radio.CmdTune, radio.CmdSeek, radio.CmdGetTunedFrequency:
			if ev.Status != radio.StatusSuccess && ev.Status != radio.StatusSeekStopped {
				return nil
			}
			d.tuned(ev.Value)
		case radio.CmdDisable:
			d.tuned(radio.FREQ_UNDEFINED)
		default:
			return nil
		}
	case radio.EventCompleteScanDone:
		if ev.Status == radio.StatusCompleteScanStopped {
			d.tuned(ev.Value)
		}
	case radio.EventAFSwitchComplete:
		d.tuned(ev.Freq)
	case radio.EventPSChanged:
		d.ps = strings.TrimSpace(ev.PS)
	case radio.EventRadioText:
		d.text = strings.TrimSpace(ev.Text)
	case radio.EventMonoStereoChanged:
		d.stereo = ev.Mode == radio.Stereo
	default:
		return nil
	}
	return d.render()
}

func (d *StationDisplay) tuned(freq uint32) {
	if freq == d.freq {
		return
	}
	d.freq = freq
	d.ps = ""
	d.text = ""
}

// Message shows msg over both lines until the next station update.
func (d *StationDisplay) Message(msg string) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	msg = pad(msg, 2*width)
	return d.show(msg[:width], msg[width:2*width])
}

// SetBacklight turns the screen backlight on or off
func (d *StationDisplay) SetBacklight(on bool) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.backlightEnabled = on
	if d.conn == nil {
		return nil
	}
	err := d.write(0)
	time.Sleep(2 * time.Millisecond)
	return err
}

// stationLines formats the two lines of the current station.
func (d *StationDisplay) stationLines() (string, string) {
	if d.freq == radio.FREQ_UNDEFINED {
		return pad("Not tuned", width), pad("", width)
	}
	mode := " "
	if d.stereo {
		mode = "S"
	}
	top := fmt.Sprintf("%6.2fMHz%s", float64(d.freq)/1000, mode)
	top = pad(top+d.ps, width)[:width]
	return top, pad(d.text, width)[:width]
}

func (d *StationDisplay) render() error {
	top, bottom := d.stationLines()
	return d.show(top, bottom)
}

// show writes the lines that differ from what is on screen.
func (d *StationDisplay) show(lines ...string) error {
	if d.conn == nil {
		return nil
	}
	for y, line := range lines {
		if d.shown[y] == line {
			continue
		}
		// Move cursor
		if err := d.sendCommand(byte(0x80 + 0x40*y)); err != nil {
			return err
		}
		for _, ch := range []byte(line) {
			if err := d.sendData(ch); err != nil {
				return err
			}
		}
		d.shown[y] = line
	}
	return nil
}

func (d *StationDisplay) clear() error {
	// The screen clearing commands needs to be
	// sent with the backlight turned on
	tmp := d.backlightEnabled
	d.backlightEnabled = true
	if err := d.sendCommand(0x01); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	d.backlightEnabled = tmp
	d.shown = [2]string{}
	return d.write(0)
}

// Send a command to the LCD
func (d *StationDisplay) sendCommand(cmd byte) error {
	return d.communicate(command, cmd)
}

// Send data to the LCD
func (d *StationDisplay) sendData(b byte) error {
	return d.communicate(data, b)
}

// write handles the actual data writing to the LCD i2c connection
func (d *StationDisplay) write(b byte) error {
	if d.backlightEnabled {
		b |= 0x08
	} else {
		b &^= 0x08
	}
	return d.conn.WriteByte(b)
}

// communicate sends a byte as two nibbles, each latched by a falling EN
func (d *StationDisplay) communicate(cmdType byte, b byte) error {
	for _, nibble := range []byte{b & 0xF0, (b & 0x0F) << 4} {
		buf := nibble | cmdType // RS = 0, RW = 0, EN = 1
		if err := d.write(buf); err != nil {
			return err
		}
		time.Sleep(2 * time.Millisecond)

		buf &= 0xFB // Make EN = 0
		if err := d.write(buf); err != nil {
			return err
		}
	}
	return nil
}

// pad fills s with spaces up to n characters; only ASCII is shown.
func pad(s string, n int) string {
	b := make([]byte, 0, n)
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		b = append(b, byte(r))
	}
	for len(b) < n {
		b = append(b, ' ')
	}
	return string(b)
}
