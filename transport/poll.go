package transport

import (
	"sync"
	"time"

	"gobot.io/x/gobot"
)

// Poller reports an interrupt at a fixed interval, for boards where the
// IRQ line of the chip is not wired. The engine reads the flag register
// and ignores polls without a raised flag.
type Poller struct {
	interval time.Duration
	notify   func()

	mtx    sync.Mutex
	ticker *time.Ticker
}

// NewPoller creates a poller calling notify every interval once started.
func NewPoller(interval time.Duration, notify func()) *Poller {
	return &Poller{interval: interval, notify: notify}
}

// Start starts polling. Starting twice has no effect.
func (p *Poller) Start() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.ticker != nil {
		return
	}
	p.ticker = gobot.Every(p.interval, p.notify)
}

// Stop stops polling.
func (p *Poller) Stop() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	p.ticker = nil
}
