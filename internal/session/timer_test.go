package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimer_RapidRearmFiresOnce(t *testing.T) {
	var fired int32
	tm := NewTimer()
	for i := 0; i < 50; i++ {
		tm.Arm(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	}
	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expected exactly one firing, got %d", n)
	}
}

func TestTimer_StopSuppressesPendingFire(t *testing.T) {
	var fired int32
	tm := NewTimer()
	tm.Arm(15*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	tm.Stop()
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected no firing after stop")
	}
	if tm.Armed() {
		t.Fatalf("expected timer disarmed")
	}
}

func TestTimer_ArmedTracksLifecycle(t *testing.T) {
	tm := NewTimer()
	if tm.Armed() {
		t.Fatalf("fresh timer must not be armed")
	}
	done := make(chan struct{})
	tm.Arm(10*time.Millisecond, func() { close(done) })
	if !tm.Armed() {
		t.Fatalf("expected armed after Arm")
	}
	<-done
	time.Sleep(5 * time.Millisecond)
	if tm.Armed() {
		t.Fatalf("expected disarmed after firing")
	}
}
