package chat

import (
	"sync"
	"testing"
	"time"
)

func TestAnnouncerCollapsesRapidCalls(t *testing.T) {
	var mu sync.Mutex
	var delivered []string

	a := NewAnnouncer(30*time.Millisecond, func(text string) {
		mu.Lock()
		delivered = append(delivered, text)
		mu.Unlock()
	})

	a.Announce("draft one")
	a.Announce("draft two")
	a.Announce("final")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 {
		t.Fatalf("deliveries: got %d, want 1 (%v)", len(delivered), delivered)
	}
	if delivered[0] != "final" {
		t.Errorf("delivered text: got %q, want %q", delivered[0], "final")
	}
}

func TestAnnouncerStopCancelsPending(t *testing.T) {
	var mu sync.Mutex
	count := 0

	a := NewAnnouncer(30*time.Millisecond, func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	a.Announce("never heard")
	a.Stop()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("deliveries after stop: got %d, want 0", count)
	}
}
