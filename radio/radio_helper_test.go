package radio

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testTimeout = 5 * time.Second

type regWrite struct {
	opcode uint8
	value  uint16
}

// fakeChip simulates the register interface of the receiver chip. Flags
// raise the interrupt line when they intersect the interrupt mask.
type fakeChip struct {
	mtx    sync.Mutex
	regs   map[uint8]uint16
	flag   uint16
	mask   uint16
	writes []regWrite
	reads  []uint8
	script []uint16

	rds      []byte
	stereo   uint16
	asicID   uint16
	failOp   uint8
	failErr  error
	blockOp  uint8
	blocked  chan struct{}
	released chan struct{}

	// seekIndex is where a seek ends, seekBandLimit makes it end at the
	// band limit instead. holdSearch keeps seek and scan running until
	// they are stopped.
	seekIndex     uint16
	seekBandLimit bool
	holdSearch    bool
	searching     bool
	scanChannels  []uint16
	scanDone      bool
	afAccept      func(index uint16) bool

	irq func()
}

func newFakeChip() *fakeChip {
	return &fakeChip{
		regs:   map[uint8]uint16{},
		asicID: ASIC_ID_NO_SWAP,
		stereo: 1,
	}
}

// block makes the next write of opcode wait until release is called.
func (f *fakeChip) block(opcode uint8) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.blockOp = opcode
	f.blocked = make(chan struct{})
	f.released = make(chan struct{})
}

func (f *fakeChip) waitBlocked(t *testing.T) {
	t.Helper()
	f.mtx.Lock()
	ch := f.blocked
	f.mtx.Unlock()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatal("transaction never blocked")
	}
}

func (f *fakeChip) release() {
	f.mtx.Lock()
	ch := f.released
	f.blockOp = 0
	f.mtx.Unlock()
	close(ch)
}

// raise sets flags; the caller holds the lock.
func (f *fakeChip) raise(bits uint16) {
	f.flag |= bits
	if f.flag&f.mask != 0 && f.irq != nil {
		go f.irq()
	}
}

// Raise sets flags from a test.
func (f *fakeChip) Raise(bits uint16) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.raise(bits)
}

// QueueRDS adds blocks to the RDS FIFO and raises the RDS interrupt.
func (f *fakeChip) QueueRDS(data []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.rds = append(f.rds, data...)
	f.raise(INT_RDS)
}

func (f *fakeChip) Write(_ context.Context, opcode uint8, value uint16) error {
	f.mtx.Lock()
	if opcode == f.blockOp && f.blocked != nil {
		blocked, released := f.blocked, f.released
		f.blockOp = 0
		f.mtx.Unlock()
		close(blocked)
		<-released
		f.mtx.Lock()
	}
	defer f.mtx.Unlock()

	f.writes = append(f.writes, regWrite{opcode, value})
	if opcode == f.failOp && f.failErr != nil {
		return f.failErr
	}
	f.regs[opcode] = value

	switch opcode {
	case REG_INT_MASK_SET:
		f.mask = value
		f.raise(0)
	case REG_TUNER_MODE_SET:
		f.tunerMode(value)
	}
	return nil
}

func (f *fakeChip) tunerMode(mode uint16) {
	switch mode {
	case TUNER_MODE_PRESET:
		f.raise(INT_FR)
	case TUNER_MODE_AUTO_SEARCH:
		if f.holdSearch {
			f.searching = true
			return
		}
		if f.seekBandLimit {
			f.raise(INT_BL)
			return
		}
		f.regs[REG_FREQ_SET] = f.seekIndex
		f.raise(INT_FR)
	case TUNER_MODE_AF_JUMP:
		target := f.regs[REG_AF_FREQ_SET]
		if f.afAccept != nil && f.afAccept(target) {
			f.regs[REG_FREQ_SET] = target
		}
		f.raise(INT_FR)
	case TUNER_MODE_COMPLETE_SCAN:
		if f.holdSearch {
			f.searching = true
			return
		}
		f.scanDone = true
		f.regs[REG_RX_CHANNEL_GET] = uint16(len(f.scanChannels))
		f.raise(INT_FR)
	case TUNER_MODE_STOP_SEARCH:
		if f.searching {
			f.searching = false
			f.raise(INT_FR)
		}
	}
}

func (f *fakeChip) Read(_ context.Context, opcode uint8, length int) ([]byte, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.reads = append(f.reads, opcode)
	if opcode == f.failOp && f.failErr != nil {
		return nil, f.failErr
	}

	var value uint16
	switch opcode {
	case REG_FLAG_GET:
		value = f.flag
		f.flag = 0
	case REG_ASIC_ID_GET:
		value = f.asicID
	case REG_STEREO_GET:
		value = f.stereo
	case REG_RDS_DATA_GET:
		return f.readFIFO(length), nil
	default:
		value = f.regs[opcode]
	}

	out := make([]byte, length)
	if length >= 2 {
		binary.BigEndian.PutUint16(out, value)
	}
	return out, nil
}

// readFIFO returns the scan result after a complete scan, RDS blocks
// otherwise. Missing blocks are padded with blocks flagged as errors.
func (f *fakeChip) readFIFO(length int) []byte {
	out := make([]byte, 0, length)
	if f.scanDone {
		f.scanDone = false
		for _, idx := range f.scanChannels {
			out = append(out, byte(idx), byte(idx>>8))
		}
		return out[:length]
	}

	n := length
	if n > len(f.rds) {
		n = len(f.rds) - len(f.rds)%rdsBlockSize
	}
	out = append(out, f.rds[:n]...)
	f.rds = f.rds[n:]
	for len(out)+rdsBlockSize <= length {
		out = append(out, 0, 0, 0x18)
	}
	return out
}

func (f *fakeChip) Script(_ context.Context, opcode uint16, _ []byte) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.script = append(f.script, opcode)
	return nil
}

// written returns the values written to opcode.
func (f *fakeChip) written(opcode uint8) []uint16 {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	var res []uint16
	for _, w := range f.writes {
		if w.opcode == opcode {
			res = append(res, w.value)
		}
	}
	return res
}

func (f *fakeChip) isSearching() bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.searching
}

// eventLog records the events delivered to OnEvent.
type eventLog struct {
	mtx    sync.Mutex
	events []Event
	notify chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{notify: make(chan struct{}, 1)}
}

func (l *eventLog) add(ev Event) {
	l.mtx.Lock()
	l.events = append(l.events, ev)
	l.mtx.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *eventLog) ofType(typ EventType) []Event {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	var res []Event
	for _, ev := range l.events {
		if ev.Type == typ {
			res = append(res, ev)
		}
	}
	return res
}

// waitFor blocks until n events of typ were recorded.
func (l *eventLog) waitFor(t *testing.T, typ EventType, n int) []Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		if evs := l.ofType(typ); len(evs) >= n {
			return evs
		}
		select {
		case <-l.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events, got %d", n, typ, len(l.ofType(typ)))
		}
	}
}

func newTestReceiver(t *testing.T, chip *fakeChip, configure ...func(*ReceiverConfig)) (*Receiver, *eventLog) {
	t.Helper()
	events := newEventLog()
	cfg := ReceiverConfig{
		Band:        BandEuropeUS,
		WakeupDelay: time.Millisecond,
		Log:         zap.NewNop().Sugar(),
		OnEvent:     events.add,
	}
	for _, c := range configure {
		c(&cfg)
	}
	r, err := NewReceiver(chip, cfg)
	if err != nil {
		t.Fatal(err)
	}
	chip.irq = r.Interrupt
	t.Cleanup(func() { _ = r.Close() })
	return r, events
}

// waitEvent returns a function that waits for the terminal event of a
// request, so that it takes the request results directly:
// waitEvent(t)(r.Tune(98500)).
func waitEvent(t *testing.T) func(*Pending, error) Event {
	return func(p *Pending, err error) Event {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		ev, err := p.Wait(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return ev
	}
}

func enabledReceiver(t *testing.T, chip *fakeChip, configure ...func(*ReceiverConfig)) (*Receiver, *eventLog) {
	t.Helper()
	r, events := newTestReceiver(t, chip, configure...)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	return r, events
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

var errBus = errors.New("bus error")
