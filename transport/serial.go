package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate of the HCI UART.
const DefaultBaudRate = 115200

// Serial talks to the FM core with HCI vendor commands over a UART. FM
// interrupts arrive as events on the same line.
type Serial struct {
	device   string
	baudRate int
	log      *zap.SugaredLogger
	open     func() (io.ReadWriteCloser, error)

	// one command at a time
	cmdMtx sync.Mutex

	mtx       sync.Mutex
	port      io.ReadWriteCloser
	responses chan hciEvent
	done      chan struct{}
	handler   func()
	readErr   error
}

// NewSerial creates a register client on the given serial device.
func NewSerial(device string, baudRate int, log *zap.SugaredLogger) *Serial {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	s := &Serial{device: device, baudRate: baudRate, log: log}
	s.open = s.openPort
	return s
}

func (s *Serial) openPort() (io.ReadWriteCloser, error) {
	port, err := serial.Open(s.device, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return nil, err
	}
	if err = port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// SetInterruptHandler sets the function called on every FM interrupt
// event.
func (s *Serial) SetInterruptHandler(f func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.handler = f
}

// Open opens the port and starts reading events.
func (s *Serial) Open() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.port != nil {
		return nil
	}

	port, err := s.open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.device, err)
	}
	s.port = port
	s.responses = make(chan hciEvent, 1)
	s.done = make(chan struct{})
	s.readErr = nil
	go s.readLoop(port, s.responses, s.done)
	return nil
}

// Close closes the port and waits for the reader to stop.
func (s *Serial) Close() error {
	s.mtx.Lock()
	port, done := s.port, s.done
	s.port = nil
	s.mtx.Unlock()
	if port == nil {
		return nil
	}

	var result *multierror.Error
	if err := port.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	<-done

	s.mtx.Lock()
	if s.readErr != nil && !errors.Is(s.readErr, io.EOF) {
		result = multierror.Append(result, s.readErr)
	}
	s.mtx.Unlock()
	return result.ErrorOrNil()
}

func (s *Serial) readLoop(r io.Reader, responses chan<- hciEvent, done chan struct{}) {
	defer close(done)
	br := bufio.NewReader(r)
	for {
		ev, err := readEvent(br)
		if err != nil {
			s.mtx.Lock()
			if s.port != nil {
				s.log.Errorw("reading hci event failed", "device", s.device, "error", err)
				s.readErr = err
			}
			s.mtx.Unlock()
			return
		}

		switch ev.code {
		case hciFMEvent:
			s.mtx.Lock()
			handler := s.handler
			s.mtx.Unlock()
			if handler != nil {
				handler()
			}
		case hciCommandComplete:
			select {
			case responses <- ev:
			default:
				s.log.Warnw("dropping unexpected command complete", "params", ev.params)
			}
		default:
			s.log.Debugw("ignoring hci event", "code", ev.code)
		}
	}
}

// Write writes value to register opcode.
func (s *Serial) Write(ctx context.Context, opcode uint8, value uint16) error {
	_, err := s.command(ctx, HCIWriteFM, fmWriteParams(opcode, value))
	return err
}

// Read reads length bytes starting at register opcode.
func (s *Serial) Read(ctx context.Context, opcode uint8, length int) ([]byte, error) {
	return s.command(ctx, HCIReadFM, fmReadParams(opcode, length))
}

// Script sends an init script command as is.
func (s *Serial) Script(ctx context.Context, opcode uint16, params []byte) error {
	_, err := s.command(ctx, opcode, params)
	return err
}

// command sends one command and waits for its command complete event.
func (s *Serial) command(ctx context.Context, opcode uint16, params []byte) ([]byte, error) {
	s.cmdMtx.Lock()
	defer s.cmdMtx.Unlock()

	s.mtx.Lock()
	port, responses, done := s.port, s.responses, s.done
	s.mtx.Unlock()
	if port == nil {
		return nil, ErrNotOpen
	}

	frame, err := hciCommand(opcode, params)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("hci command", "opcode", fmt.Sprintf("0x%04x", opcode), "params", params)
	if _, err = port.Write(frame); err != nil {
		return nil, fmt.Errorf("sending hci command 0x%04x: %w", opcode, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("hci command 0x%04x: %w", opcode, ctx.Err())
		case <-done:
			return nil, fmt.Errorf("hci command 0x%04x: %w", opcode, io.ErrClosedPipe)
		case ev := <-responses:
			op, status, data, err := ev.commandComplete()
			if err != nil {
				return nil, err
			}
			if op != opcode {
				s.log.Warnw("command complete for another command", "expected", opcode, "got", op)
				continue
			}
			if status != 0 {
				return nil, &StatusError{Opcode: opcode, Status: status}
			}
			return data, nil
		}
	}
}
