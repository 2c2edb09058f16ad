package batch

import (
	"sync"
	"time"
)

// Pacer tracks the rolling mean latency of the last Window mutate calls and derives the
// delay inserted between batches from it.
type Pacer struct {
	cfg PacingConfig

	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	delay   time.Duration
}

func NewPacer(cfg PacingConfig) *Pacer {
	return &Pacer{
		cfg:     cfg,
		samples: make([]time.Duration, max(cfg.Window, 1)),
		delay:   cfg.MinDelay,
	}
}

// Observe records the latency of one mutate call.
func (p *Pacer) Observe(latency time.Duration) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples[p.next] = latency
	p.next = (p.next + 1) % len(p.samples)

	if p.next == 0 {
		p.full = true
	}
}

// Average returns the mean of the recorded window and whether any sample exists.
func (p *Pacer) Average() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.average()
}

func (p *Pacer) average() (time.Duration, bool) {
	count := p.next
	if p.full {
		count = len(p.samples)
	}

	if count == 0 {
		return 0, false
	}

	var total time.Duration
	for _, sample := range p.samples[:count] {
		total += sample
	}

	return total / time.Duration(count), true
}

// Adjust moves the delay one step towards the latency bounds and returns it.
func (p *Pacer) Adjust() time.Duration {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	avg, ok := p.average()
	if !ok {
		return p.delay
	}

	switch {
	case avg > p.cfg.HighLatency:
		p.delay = min(p.delay+p.cfg.Step, p.cfg.MaxDelay)
	case avg < p.cfg.LowLatency:
		p.delay = max(p.delay-p.cfg.Step, p.cfg.MinDelay)
	}

	return p.delay
}
