// Package transport implements radio.RegisterClient over the buses the
// receiver chip can be reached on: I2C through gobot or periph, and HCI
// vendor commands over a UART.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

//goland:noinspection GoUnusedConst
const (
	// hciCommandPacket starts a command sent to the chip
	hciCommandPacket = 0x01

	// hciEventPacket starts an event received from the chip
	hciEventPacket = 0x04

	// hciCommandComplete ends every command
	hciCommandComplete = 0x0e

	// hciFMEvent is sent by the chip when the FM interrupt line is raised
	hciFMEvent = 0xf0

	// HCIReadFM reads an FM register
	HCIReadFM = 0xfd33

	// HCIWriteFM writes an FM register
	HCIWriteFM = 0xfd35

	// HCIFMPowerMode switches the FM core power
	HCIFMPowerMode = 0xfd37
)

// Errors reported by the transports.
var (
	ErrUnsupportedScript = errors.New("script command not supported by transport")
	ErrNotOpen           = errors.New("transport not open")
)

// StatusError is a command complete with a non zero status.
type StatusError struct {
	Opcode uint16
	Status uint8
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hci command 0x%04x failed with status 0x%02x", e.Opcode, e.Status)
}

// hciCommand frames a command packet.
func hciCommand(opcode uint16, params []byte) ([]byte, error) {
	if len(params) > 0xff {
		return nil, fmt.Errorf("hci command 0x%04x: %d parameter bytes", opcode, len(params))
	}
	out := make([]byte, 4, 4+len(params))
	out[0] = hciCommandPacket
	binary.LittleEndian.PutUint16(out[1:], opcode)
	out[3] = byte(len(params))
	return append(out, params...), nil
}

// fmWriteParams encodes an FM register write: opcode, LE parameter length,
// BE value.
func fmWriteParams(opcode uint8, value uint16) []byte {
	return []byte{opcode, 2, 0, byte(value >> 8), byte(value)}
}

// fmReadParams encodes an FM register read of length bytes.
func fmReadParams(opcode uint8, length int) []byte {
	return []byte{opcode, byte(length), byte(length >> 8)}
}

// unwrapFMWrite extracts the register write carried by an FM write
// script command, for buses that talk to the FM core directly.
func unwrapFMWrite(opcode uint16, params []byte) ([]byte, error) {
	if opcode != HCIWriteFM {
		return nil, fmt.Errorf("0x%04x: %w", opcode, ErrUnsupportedScript)
	}
	if len(params) < 3 {
		return nil, fmt.Errorf("fm write script command too short: %d bytes", len(params))
	}
	n := int(binary.LittleEndian.Uint16(params[1:]))
	if len(params) != 3+n {
		return nil, fmt.Errorf("fm write script command length %d, carries %d bytes", n, len(params)-3)
	}
	return append([]byte{params[0]}, params[3:]...), nil
}

type hciEvent struct {
	code   uint8
	params []byte
}

// readEvent reads the next event packet, skipping anything else.
func readEvent(r io.Reader) (hciEvent, error) {
	var hdr [3]byte
	for {
		if _, err := io.ReadFull(r, hdr[:1]); err != nil {
			return hciEvent{}, err
		}
		if hdr[0] == hciEventPacket {
			break
		}
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return hciEvent{}, err
	}
	ev := hciEvent{code: hdr[1], params: make([]byte, hdr[2])}
	if _, err := io.ReadFull(r, ev.params); err != nil {
		return hciEvent{}, err
	}
	return ev, nil
}

// commandComplete decodes a command complete event into the opcode it
// answers, the status and the return parameters.
func (e hciEvent) commandComplete() (uint16, uint8, []byte, error) {
	if e.code != hciCommandComplete {
		return 0, 0, nil, fmt.Errorf("event 0x%02x is not a command complete", e.code)
	}
	if len(e.params) < 4 {
		return 0, 0, nil, fmt.Errorf("command complete too short: %d bytes", len(e.params))
	}
	return binary.LittleEndian.Uint16(e.params[1:]), e.params[3], e.params[4:], nil
}
