package pipeline

import (
	"strings"
	"sync"
	"time"
)

// DefaultRevealInterval is the per-word typewriter delay.
const DefaultRevealInterval = 200 * time.Millisecond

// Typewriter reveals text one word at a time. Intermediate frames join words
// with single spaces; the final frame carries the text verbatim.
type Typewriter struct {
	interval time.Duration
	emit     func(text string, done bool)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTypewriter builds a typewriter that calls emit for every revealed prefix.
func NewTypewriter(interval time.Duration, emit func(text string, done bool)) *Typewriter {
	return &Typewriter{interval: interval, emit: emit}
}

// Reveal cancels any reveal in progress and starts a new one.
func (t *Typewriter) Reveal(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()

	text = strings.TrimSpace(text)
	words := strings.Fields(text)
	if len(words) <= 1 || t.interval <= 0 {
		t.emit(text, true)
		return
	}

	t.emit(words[0], false)

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for idx := 2; idx <= len(words); idx++ {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if idx == len(words) {
				t.emit(text, true)
				return
			}
			t.emit(strings.Join(words[:idx], " "), false)
		}
	}()
}

// Stop cancels any reveal in progress.
func (t *Typewriter) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Typewriter) cancelLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
}
