package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// edgeTimeout bounds a single wait on the IRQ line so that Stop is noticed.
const edgeTimeout = 100 * time.Millisecond

// Periph talks to the FM core through a periph.io I2C bus. An optional
// IRQ pin reports chip interrupts.
type Periph struct {
	busName string
	addr    uint16
	irqPin  string
	log     *zap.SugaredLogger

	mtx     sync.Mutex
	bus     i2c.BusCloser
	dev     *i2c.Dev
	watcher *IRQWatcher
	handler func()
}

// NewPeriph creates a register client on the named bus ("" for the first
// one). irqPin may be empty when interrupts are polled.
func NewPeriph(busName string, addr uint16, irqPin string, log *zap.SugaredLogger) *Periph {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Periph{busName: busName, addr: addr, irqPin: irqPin, log: log}
}

// SetInterruptHandler sets the function called on every falling edge of
// the IRQ pin.
func (p *Periph) SetInterruptHandler(f func()) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.handler = f
}

// Open initializes the host drivers, the bus and the IRQ pin.
func (p *Periph) Open() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.bus != nil {
		return nil
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("couldn't initialize peripherals: %w", err)
	}
	bus, err := i2creg.Open(p.busName)
	if err != nil {
		return fmt.Errorf("couldn't initialize i2c bus %q: %w", p.busName, err)
	}

	if p.irqPin != "" && p.handler != nil {
		pin := gpioreg.ByName(p.irqPin)
		if pin == nil {
			_ = bus.Close()
			return fmt.Errorf("unknown irq pin %q", p.irqPin)
		}
		w, err := NewIRQWatcher(pin, p.handler, p.log)
		if err != nil {
			_ = bus.Close()
			return err
		}
		p.watcher = w
	}

	p.bus = bus
	p.dev = &i2c.Dev{Bus: bus, Addr: p.addr}
	p.log.Infow("i2c bus open", "bus", bus.String(), "address", fmt.Sprintf("0x%02x", p.addr), "irq", p.irqPin)
	return nil
}

// Close stops the IRQ watcher and releases the bus.
func (p *Periph) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var result *multierror.Error
	if p.watcher != nil {
		if err := p.watcher.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
		p.watcher = nil
	}
	if p.bus != nil {
		if err := p.bus.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		p.bus = nil
		p.dev = nil
	}
	return result.ErrorOrNil()
}

// Write writes value to register opcode.
func (p *Periph) Write(_ context.Context, opcode uint8, value uint16) error {
	return p.tx([]byte{opcode, byte(value >> 8), byte(value)}, nil)
}

// Read reads length bytes starting at register opcode.
func (p *Periph) Read(_ context.Context, opcode uint8, length int) ([]byte, error) {
	buf := make([]byte, length)
	if err := p.tx([]byte{opcode}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Script runs an init script command. Only FM register writes can be
// sent over I2C.
func (p *Periph) Script(_ context.Context, opcode uint16, params []byte) error {
	buf, err := unwrapFMWrite(opcode, params)
	if err != nil {
		return err
	}
	return p.tx(buf, nil)
}

func (p *Periph) tx(w, r []byte) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.dev == nil {
		return ErrNotOpen
	}
	if err := p.dev.Tx(w, r); err != nil {
		return fmt.Errorf("i2c transaction on register 0x%02x: %w", w[0], err)
	}
	return nil
}

// IRQWatcher calls a function on every falling edge of an input pin.
type IRQWatcher struct {
	pin    gpio.PinIn
	notify func()
	log    *zap.SugaredLogger
	stop   chan struct{}
	done   chan struct{}
}

// NewIRQWatcher configures pin as a pulled up input and starts watching it.
func NewIRQWatcher(pin gpio.PinIn, notify func(), log *zap.SugaredLogger) (*IRQWatcher, error) {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("configuring irq pin %s: %w", pin, err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &IRQWatcher{
		pin:    pin,
		notify: notify,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *IRQWatcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		if w.pin.WaitForEdge(edgeTimeout) {
			w.log.Debugw("irq edge", "pin", w.pin.String())
			w.notify()
		}
	}
}

// Stop ends the watch and releases the pin.
func (w *IRQWatcher) Stop() error {
	close(w.stop)
	<-w.done
	if err := w.pin.Halt(); err != nil {
		return fmt.Errorf("halting irq pin %s: %w", w.pin, err)
	}
	return nil
}
