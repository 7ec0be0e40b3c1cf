package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"

	"fmreceiver/config"
	"fmreceiver/display"
	"fmreceiver/radio"
	"fmreceiver/transport"
)

// interruptSource is implemented by transports that report chip
// interrupts themselves.
type interruptSource interface {
	SetInterruptHandler(f func())
}

// station wires the receiver to its transport, interrupt source and
// optional display.
type station struct {
	receiver *radio.Receiver
	adaptor  *raspi.Adaptor
	display  *display.StationDisplay
	poller   *transport.Poller
}

func newStation(onEvent func(radio.Event)) (*station, error) {
	s := &station{}

	var client radio.RegisterClient
	irq := false
	switch cfg.Transport.Kind {
	case config.TransportI2C:
		s.adaptor = raspi.NewAdaptor()
		client = transport.NewI2C(s.adaptor, log.Named("i2c"),
			i2c.WithBus(cfg.Transport.Bus), i2c.WithAddress(cfg.Transport.Address))
	case config.TransportPeriph:
		client = transport.NewPeriph(cfg.Transport.PeriphBus, uint16(cfg.Transport.Address), cfg.Transport.IRQPin, log.Named("periph"))
		irq = cfg.Transport.IRQPin != ""
	case config.TransportSerial:
		client = transport.NewSerial(cfg.Transport.Device, cfg.Transport.BaudRate, log.Named("serial"))
		irq = true
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}

	rc, err := cfg.ReceiverConfig(log.Named("radio"))
	if err != nil {
		return nil, err
	}
	rc.OnEvent = onEvent

	if s.receiver, err = radio.NewReceiver(client, rc); err != nil {
		return nil, err
	}
	if src, ok := client.(interruptSource); ok && irq {
		src.SetInterruptHandler(s.receiver.Interrupt)
	} else {
		s.poller = transport.NewPoller(cfg.Transport.PollInterval, s.receiver.Interrupt)
	}

	if cfg.Display.Enabled {
		if s.adaptor == nil {
			s.adaptor = raspi.NewAdaptor()
		}
		s.display = display.NewStationDisplay(s.adaptor,
			i2c.WithBus(cfg.Display.Bus), i2c.WithAddress(cfg.Display.Address))
		if err = s.display.Follow(s.receiver); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// robot runs work once every device started and stops on SIGINT.
func (s *station) robot(work func()) *gobot.Robot {
	var connections []gobot.Connection
	if s.adaptor != nil {
		connections = append(connections, s.adaptor)
	}
	devices := []gobot.Device{s.receiver}
	if s.display != nil {
		devices = append(devices, s.display)
	}
	return gobot.NewRobot("FM receiver", connections, devices, work)
}

// start powers the receiver on without a robot, for one shot commands.
func (s *station) start() error {
	if s.adaptor != nil {
		if err := s.adaptor.Connect(); err != nil {
			return err
		}
	}
	if s.display != nil {
		if err := s.display.Start(); err != nil {
			return err
		}
	}
	if err := s.receiver.Start(); err != nil {
		return err
	}
	s.startPolling()
	return nil
}

func (s *station) startPolling() {
	if s.poller != nil {
		s.poller.Start()
	}
}

// tune tunes the configured frequency and enables RDS and audio as
// configured.
func (s *station) tune(ctx context.Context, freq uint32) error {
	steps := []func() (*radio.Pending, error){
		func() (*radio.Pending, error) { return s.receiver.Tune(freq) },
	}
	if cfg.Receiver.RDS {
		steps = append(steps, s.receiver.EnableRDS)
	}
	if cfg.Audio.Enabled {
		steps = append(steps, s.receiver.EnableAudio)
	}
	for _, step := range steps {
		if _, err := wait(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// stop powers the receiver off and releases everything.
func (s *station) stop() error {
	var result *multierror.Error
	if s.poller != nil {
		s.poller.Stop()
	}
	if err := s.receiver.Halt(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.receiver.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.display != nil {
		if err := s.display.Halt(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.adaptor != nil {
		if err := s.adaptor.Finalize(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// wait queues a request and waits for a successful terminal event.
func wait(ctx context.Context, request func() (*radio.Pending, error)) (radio.Event, error) {
	p, err := request()
	if err != nil {
		return radio.Event{}, err
	}
	ev, err := p.Wait(ctx)
	if err != nil {
		return ev, err
	}
	if ev.Status != radio.StatusSuccess {
		return ev, fmt.Errorf("%s: %s", ev.Cmd, ev.Status)
	}
	return ev, nil
}
