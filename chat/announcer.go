package chat

import (
	"sync"
	"time"
)

// Announcer collapses rapid announcements into a single delivery. It backs
// the screen-reader live region that reads out a finished answer: re-renders
// during the same settle window must produce one announcement, not many.
type Announcer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	deliver func(text string)
}

func NewAnnouncer(delay time.Duration, deliver func(text string)) *Announcer {
	return &Announcer{delay: delay, deliver: deliver}
}

// Announce schedules text for delivery after the settle delay. A call made
// before the previous one fires supersedes it.
func (a *Announcer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deliver == nil {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		a.deliver(text)
	})
}

// Stop cancels any pending delivery.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
}
