package engine

import (
	"context"
	"sync"
	"time"
)

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// Ticker calls a function at a fixed rate from its own goroutine, which
// becomes the owner of whatever the function drives.
type Ticker struct {
	fn        func(delta time.Duration)
	tick      time.Duration
	wg        sync.WaitGroup
	newTicker tickerFactory
	now       timeSource
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func NewTicker(tick time.Duration, fn func(delta time.Duration)) *Ticker {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &Ticker{
		fn:        fn,
		tick:      tick,
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

func (t *Ticker) Start(ctx context.Context) {
	if t == nil || t.fn == nil {
		return
	}
	t.wg.Add(1)
	go t.run(ctx)
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()
	tickerC, stop := t.newTicker(t.tick)
	defer stop()

	last := t.now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tickerC:
			// Stalls and clock jumps fall back to one nominal tick.
			delta := now.Sub(last)
			if delta <= 0 || delta > 10*t.tick {
				delta = t.tick
			}
			last = now
			t.fn(delta)
		}
	}
}

// Wait blocks until the ticking goroutine has stopped.
func (t *Ticker) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}
