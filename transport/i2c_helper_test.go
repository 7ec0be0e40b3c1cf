package transport

import (
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/drivers/i2c"
)

// I2CTestAdaptor is useful to implement tests for
// passing i2c messages back and forth.
type I2CTestAdaptor struct {
	name          string
	written       [][]byte
	address       int
	bus           int
	closed        bool
	mtx           sync.Mutex
	i2cConnectErr bool
	i2cReadImpl   func(*I2CTestAdaptor, []byte) (int, error)
	i2cWriteImpl  func(*I2CTestAdaptor, []byte) (int, error)
}

func newI2CTestAdaptor() *I2CTestAdaptor {
	return &I2CTestAdaptor{
		name: "i2c-test",
		i2cReadImpl: func(_ *I2CTestAdaptor, b []byte) (int, error) {
			return len(b), nil
		},
		i2cWriteImpl: func(_ *I2CTestAdaptor, b []byte) (int, error) {
			return len(b), nil
		},
	}
}

// lastWritten returns the last write, the register selected by a read
// included.
func (t *I2CTestAdaptor) lastWritten() []byte {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if len(t.written) == 0 {
		return nil
	}
	return t.written[len(t.written)-1]
}

func (t *I2CTestAdaptor) Read(b []byte) (count int, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.i2cReadImpl(t, b)
}

func (t *I2CTestAdaptor) Write(b []byte) (count int, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, append([]byte(nil), b...))
	return t.i2cWriteImpl(t, b)
}

func (t *I2CTestAdaptor) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.closed = true
	return nil
}

func (t *I2CTestAdaptor) ReadByte() (val byte, err error) {
	bytes := []byte{0}
	if err = t.readExactly(bytes); err != nil {
		return 0, err
	}
	return bytes[0], nil
}

func (t *I2CTestAdaptor) ReadByteData( /* reg */ uint8) (val uint8, err error) {
	return t.ReadByte()
}

func (t *I2CTestAdaptor) ReadWordData( /* reg */ uint8) (val uint16, err error) {
	bytes := []byte{0, 0}
	if err = t.readExactly(bytes); err != nil {
		return 0, err
	}
	l, h := bytes[0], bytes[1]
	return (uint16(h) << 8) | uint16(l), nil
}

func (t *I2CTestAdaptor) readExactly(b []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	n, err := t.i2cReadImpl(t, b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("buffer underrun")
	}
	return nil
}

func (t *I2CTestAdaptor) WriteByte(val byte) (err error) {
	_, err = t.Write([]byte{val})
	return
}

func (t *I2CTestAdaptor) WriteByteData(reg uint8, val uint8) (err error) {
	_, err = t.Write([]byte{reg, val})
	return
}

func (t *I2CTestAdaptor) WriteWordData(reg uint8, val uint16) (err error) {
	_, err = t.Write([]byte{reg, uint8(val & 0xff), uint8((val >> 8) & 0xff)})
	return
}

func (t *I2CTestAdaptor) WriteBlockData(reg uint8, b []byte) (err error) {
	_, err = t.Write(append([]byte{reg}, b...))
	return
}

func (t *I2CTestAdaptor) GetConnection(address int, bus int) (connection i2c.Connection, err error) {
	if t.i2cConnectErr {
		return nil, errors.New("invalid i2c connection")
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.address, t.bus = address, bus
	t.closed = false
	return t, nil
}

func (t *I2CTestAdaptor) GetDefaultBus() int {
	return 1
}

func (t *I2CTestAdaptor) Name() string          { return t.name }
func (t *I2CTestAdaptor) SetName(n string)      { t.name = n }
func (t *I2CTestAdaptor) Connect() (err error)  { return }
func (t *I2CTestAdaptor) Finalize() (err error) { return }
