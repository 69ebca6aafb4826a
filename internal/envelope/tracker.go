package envelope

import (
	"sync"
	"time"
)

// FrameInterval is the default tick spacing for both loops.
const FrameInterval = time.Second / 60

// TickerFunc returns a tick channel and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Option configures a Tracker.
type Option func(*Tracker)

// WithTicker replaces the frame ticker.
func WithTicker(fn TickerFunc) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.ticker = fn
		}
	}
}

// WithFrameInterval changes the tick spacing.
func WithFrameInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.frame = d
		}
	}
}

// Tracker owns the envelope level. At most one loop runs at a time.
type Tracker struct {
	publish func(float64)
	ticker  TickerFunc
	frame   time.Duration

	// ctl serializes loop changes.
	ctl sync.Mutex

	mu    sync.Mutex
	level float64
	loop  *loop
}

type loop struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (l *loop) cancel() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

// New builds a tracker; publish receives every level update and may be nil.
func New(publish func(float64), opts ...Option) *Tracker {
	t := &Tracker{
		publish: publish,
		frame:   FrameInterval,
		ticker: func(d time.Duration) (<-chan time.Time, func()) {
			tk := time.NewTicker(d)
			return tk.C, tk.Stop
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Level returns the current envelope.
func (t *Tracker) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// Running reports whether a loop is still scheduled.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	l := t.loop
	t.mu.Unlock()
	if l == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// StartPlayback cancels any loop and follows src until stopped.
func (t *Tracker) StartPlayback(src Source) {
	t.start(func(l *loop, ticks <-chan time.Time) {
		var last time.Time
		for {
			select {
			case <-l.stop:
				return
			case now := <-ticks:
				if !last.IsZero() && now.Sub(last) < Throttle {
					continue
				}
				dt := MinStep.Seconds()
				if !last.IsZero() {
					dt = now.Sub(last).Seconds()
				}
				last = now

				var window []float32
				if src != nil {
					window = src.Window()
				}
				level := Instant(RMS(window))
				t.update(func(env float64) float64 { return StepPlayback(env, level, dt) })
			}
		}
	})
}

// StartRelax cancels any loop and decays the last level to exactly zero.
func (t *Tracker) StartRelax() {
	t.start(func(l *loop, ticks <-chan time.Time) {
		var last time.Time
		for {
			select {
			case <-l.stop:
				return
			case now := <-ticks:
				dt := MinStep.Seconds()
				if !last.IsZero() {
					dt = now.Sub(last).Seconds()
				}
				last = now

				settled := false
				t.update(func(env float64) float64 {
					var next float64
					next, settled = StepRelax(env, dt)
					return next
				})
				if settled {
					return
				}
			}
		}
	})
}

// Stop cancels any running loop. Safe to call repeatedly.
func (t *Tracker) Stop() {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.cancelLoop()
}

func (t *Tracker) cancelLoop() {
	t.mu.Lock()
	l := t.loop
	t.loop = nil
	t.mu.Unlock()
	if l != nil {
		l.cancel()
	}
}

func (t *Tracker) start(body func(*loop, <-chan time.Time)) {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.cancelLoop()

	l := &loop{stop: make(chan struct{}), done: make(chan struct{})}
	ticks, stopTicker := t.ticker(t.frame)

	t.mu.Lock()
	t.loop = l
	t.mu.Unlock()

	go func() {
		defer close(l.done)
		defer stopTicker()
		body(l, ticks)
	}()
}

func (t *Tracker) update(step func(float64) float64) {
	t.mu.Lock()
	t.level = step(t.level)
	level := t.level
	t.mu.Unlock()

	if t.publish != nil {
		t.publish(level)
	}
}
