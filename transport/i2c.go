package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
)

// DefaultAddress is the I2C address of the FM core.
const DefaultAddress = 0x22

// I2C talks to the FM core through a gobot I2C connector.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type I2C struct {
	i2cConnector i2c.Connector
	i2c.Config

	log *zap.SugaredLogger

	mtx  sync.Mutex
	conn i2c.Connection
}

// NewI2C creates a register client on the given connector. The bus and
// address can be changed with i2c.WithBus and i2c.WithAddress.
func NewI2C(connector i2c.Connector, log *zap.SugaredLogger, options ...func(i2c.Config)) *I2C {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &I2C{
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		log:          log,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Open gets the connection to the chip.
func (t *I2C) Open() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.conn != nil {
		return nil
	}

	bus := t.GetBusOrDefault(t.i2cConnector.GetDefaultBus())
	addr := t.GetAddressOrDefault(DefaultAddress)
	conn, err := t.i2cConnector.GetConnection(addr, bus)
	if err != nil {
		return fmt.Errorf("i2c bus %d address 0x%02x: %w", bus, addr, err)
	}
	t.conn = conn
	return nil
}

// Close releases the connection. The transport can be opened again.
func (t *I2C) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Connection retrieves the gobot connection the chip is attached to.
func (t *I2C) Connection() gobot.Connection {
	c, _ := t.i2cConnector.(gobot.Connection)
	return c
}

// Write writes value to register opcode.
func (t *I2C) Write(_ context.Context, opcode uint8, value uint16) error {
	return t.send([]byte{opcode, byte(value >> 8), byte(value)})
}

// Read reads length bytes starting at register opcode.
func (t *I2C) Read(_ context.Context, opcode uint8, length int) ([]byte, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}

	if _, err := t.conn.Write([]byte{opcode}); err != nil {
		return nil, fmt.Errorf("selecting register 0x%02x: %w", opcode, err)
	}
	buf := make([]byte, length)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading register 0x%02x: %w", opcode, err)
	}
	return buf[:n], nil
}

// Script runs an init script command. Only FM register writes can be
// sent over I2C.
func (t *I2C) Script(_ context.Context, opcode uint16, params []byte) error {
	buf, err := unwrapFMWrite(opcode, params)
	if err != nil {
		return err
	}
	return t.send(buf)
}

func (t *I2C) send(buf []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.conn == nil {
		return ErrNotOpen
	}

	t.log.Debugw("i2c write", "data", buf)
	if _, err := t.conn.Write(buf); err != nil {
		return fmt.Errorf("writing register 0x%02x: %w", buf[0], err)
	}
	return nil
}
