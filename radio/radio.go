// Package radio implements the command engine of an FM receiver chip
// driven over a register transport (I2C or UART).
//
// The main implementation is the Receiver. It is a gobot.Device: Start
// powers the chip on, Halt powers it off. Every request is queued as a
// command and executed as a sequence of register transactions, one at a
// time. Chip interrupts are reported through Interrupt, either from an IRQ
// line watcher or by polling.
//
// Results are delivered as events: through the returned Pending handle,
// the gobot Eventer (one event name per EventType) and the optional
// ReceiverConfig.OnEvent callback.
package radio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gobot.io/x/gobot"

	"fmreceiver/audio"
	"fmreceiver/rds"
)

// RegisterClient performs single register transactions on the chip.
// Calls may block; the engine runs them outside of its own lock.
type RegisterClient interface {
	Write(ctx context.Context, opcode uint8, value uint16) error
	Read(ctx context.Context, opcode uint8, length int) ([]byte, error)
	Script(ctx context.Context, opcode uint16, params []byte) error
}

// Opener is implemented by clients that need to acquire the transport
// before the chip is powered on.
type Opener interface {
	Open() error
}

// ContextState is the lifecycle state of the receiver.
type ContextState int

// Receiver lifecycle states.
const (
	StateDisabled ContextState = iota
	StateEnabling
	StateEnabled
	StateDisabling
	StateDestroyed
)

func (s ContextState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabling:
		return "enabling"
	case StateEnabled:
		return "enabled"
	case StateDisabling:
		return "disabling"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("ContextState(%d)", int(s))
}

type settings struct {
	band          Band
	spacing       ChannelSpacing
	volume        uint8
	mute          MuteMode
	rfMute        bool
	rssiThreshold uint8
	deemphasis    Deemphasis
	monoStereo    MonoStereoMode
	rdsSystem     RDSSystem
	groupMask     rds.GroupMask
	afMode        AFMode
	audioTargets  audio.Target
	digitalAudio  audio.DigitalConfig
	audioEnabled  bool
	audioOps      []audio.Operation
	rdsOn         bool
	firmware      uint16
	asicID        uint16
	asicVersion   uint16
}

// Receiver drives the FM receiver of the chip.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type Receiver struct {
	name string
	gobot.Eventer
	gobot.Commander

	client    RegisterClient
	audio     audio.Coordinator
	cfg       ReceiverConfig
	log       *zap.SugaredLogger
	debugMode bool

	mu   sync.Mutex
	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	pump *eventPump

	state     ContextState
	queue     commandQueue
	curr      *command
	reason    callReason
	upper     upperEvent
	active    upperEvent
	deferred  bool
	waitingCC bool

	upperPending  *Pending
	activePending *Pending
	upperAfterCC  bool

	txSeq       uint64
	outstanding uint64
	cmdResult   *completion
	intResult   *completion
	last        *completion
	lastValue   uint16
	audioTx     uint64
	audioOp     audio.Operation
	audioTimer  *time.Timer

	irqLatch  int32
	irq       interrupts
	af        afController
	settings  settings
	tunedFreq uint32
	parser    *rds.Parser
}

// NewReceiver creates a new gobot driver for the FM receiver. The engine
// goroutine runs until Close.
func NewReceiver(client RegisterClient, cfg ReceiverConfig) (*Receiver, error) {
	if client == nil {
		return nil, fmt.Errorf("register client cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Receiver{
		name:      gobot.DefaultName("FMReceiver"),
		Eventer:   gobot.NewEventer(),
		Commander: gobot.NewCommander(),
		client:    client,
		audio:     cfg.Audio,
		cfg:       cfg,
		log:       cfg.Log,
		debugMode: cfg.DebugMode,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		queue:     commandQueue{limit: cfg.MaxPendingCommands},
		tunedFreq: FREQ_UNDEFINED,
		settings: settings{
			band:          cfg.Band,
			spacing:       cfg.ChannelSpacing,
			volume:        cfg.Volume,
			mute:          cfg.MuteMode,
			rfMute:        cfg.RFDependentMute,
			rssiThreshold: cfg.RSSIThreshold,
			deemphasis:    cfg.Deemphasis,
			monoStereo:    cfg.MonoStereoMode,
			rdsSystem:     cfg.RDSSystem,
			groupMask:     cfg.RDSGroupMask,
			afMode:        cfg.AFMode,
			audioTargets:  cfg.AudioTargets,
			digitalAudio:  cfg.DigitalAudio,
		},
	}
	r.parser = rds.NewParser(
		rds.WithLogger(cfg.Log.Named("rds")),
		rds.WithTuning(cfg.Band.tuning(FREQ_UNDEFINED)),
	)
	r.pump = newEventPump(r.deliver)

	for t := EventCmdDone; t <= EventCompleteScanDone; t++ {
		r.AddEvent(t.String())
	}
	r.addCommands()
	r.audio.SetListener(r.audioCompleted)

	go r.pump.run()
	go r.loop()

	return r, nil
}

// Name of our device.
func (r *Receiver) Name() string {
	return r.name
}

// SetName set the name of our device.
func (r *Receiver) SetName(name string) {
	r.name = name
}

// Start powers the receiver on and waits for the chip to be ready.
func (r *Receiver) Start() error {
	p, err := r.Enable()
	if err != nil {
		return err
	}
	return r.await(p)
}

// Halt powers the receiver off.
func (r *Receiver) Halt() error {
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()
	if state != StateEnabled {
		return nil
	}

	p, err := r.Disable()
	if err != nil {
		return err
	}
	return r.await(p)
}

func (r *Receiver) await(p *Pending) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StartTimeout)
	defer cancel()

	ev, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	if ev.Status != StatusSuccess {
		return fmt.Errorf("%s failed: %s", ev.Cmd, ev.Status)
	}
	return nil
}

// Connection retrieves the connection to the device when the register
// client exposes one.
func (r *Receiver) Connection() gobot.Connection {
	if c, ok := r.client.(interface{ Connection() gobot.Connection }); ok {
		return c.Connection()
	}
	return nil
}

// Close destroys the receiver. Commands still queued are answered with
// StatusContextNotEnabled.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.state == StateDestroyed {
		r.mu.Unlock()
		return nil
	}
	r.state = StateDestroyed
	r.af.stop()
	if r.audioTimer != nil {
		r.audioTimer.Stop()
	}

	if r.curr != nil {
		r.abort(r.curr)
		r.curr = nil
	}
	if r.upper != upperNone {
		up, p := r.takeUpper()
		r.emit(Event{Type: EventCmdDone, Cmd: up.command(), Status: StatusContextNotEnabled, Value: r.tunedFreq}, p)
	}
	for _, c := range r.queue.drain() {
		r.abort(c)
	}
	close(r.quit)
	r.mu.Unlock()

	<-r.done
	r.pump.close()

	if c, ok := r.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Receiver) abort(c *command) {
	if c.typ.internal() {
		return
	}
	r.emit(r.terminalEvent(c, StatusContextNotEnabled, r.tunedFreq), c.pending, c.stopPending)
}

// State returns the lifecycle state.
func (r *Receiver) State() ContextState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TunedFrequency returns the tuned frequency in kHz, FREQ_UNDEFINED when
// the receiver is not tuned.
func (r *Receiver) TunedFrequency() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tunedFreq
}

// Station returns the RDS data decoded for the tuned station.
func (r *Receiver) Station() rds.Station {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parser.Station()
}

// Interrupt reports a chip interrupt. It only latches the notification
// and never blocks; the flag register is read by the engine.
func (r *Receiver) Interrupt() {
	atomic.StoreInt32(&r.irqLatch, 1)
	r.notify()
}

func (r *Receiver) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Receiver) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case <-r.wake:
			r.mu.Lock()
			if atomic.SwapInt32(&r.irqLatch, 0) == 1 {
				r.irq.pending = true
			}
			if r.state != StateDestroyed {
				r.process()
			}
			r.mu.Unlock()
		}
	}
}

func (r *Receiver) emit(ev Event, pending ...*Pending) {
	if r.debugMode {
		r.log.Debugw("event", "type", ev.Type.String(), "cmd", ev.Cmd.String(), "status", ev.Status.String(), "value", ev.Value)
	}
	r.pump.push(ev, pending)
}

func (r *Receiver) deliver(ev Event) {
	if r.cfg.OnEvent != nil {
		r.cfg.OnEvent(ev)
	}
	r.Publish(ev.Type.String(), ev)
}

type queuedEvent struct {
	ev      Event
	pending []*Pending
}

// eventPump delivers events in order outside of the engine lock, so that
// event handlers may call back into the Receiver.
type eventPump struct {
	mtx     sync.Mutex
	cond    *sync.Cond
	queue   []queuedEvent
	closed  bool
	deliver func(Event)
	done    chan struct{}
}

func newEventPump(deliver func(Event)) *eventPump {
	p := &eventPump{deliver: deliver, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mtx)
	return p
}

func (p *eventPump) push(ev Event, pending []*Pending) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, queuedEvent{ev: ev, pending: pending})
	p.cond.Signal()
}

func (p *eventPump) run() {
	defer close(p.done)
	for {
		p.mtx.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mtx.Unlock()
			return
		}
		qe := p.queue[0]
		p.queue = p.queue[1:]
		p.mtx.Unlock()

		p.deliver(qe.ev)
		for _, pending := range qe.pending {
			if pending != nil {
				pending.resolve(qe.ev)
			}
		}
	}
}

// close delivers what is queued and stops the pump.
func (p *eventPump) close() {
	p.mtx.Lock()
	p.closed = true
	p.cond.Signal()
	p.mtx.Unlock()

	select {
	case <-p.done:
	case <-time.After(time.Second):
	}
}
