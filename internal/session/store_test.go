package session

import (
	"testing"
	"time"
)

func TestStore_CreateLookupRemove(t *testing.T) {
	st := NewStore()
	s := st.Create()
	if s.ID == "" {
		t.Fatalf("expected non-empty session id")
	}
	if s.Stage != StageGreeting {
		t.Fatalf("expected new session in greeting stage, got %s", s.Stage)
	}
	got, ok := st.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("expected lookup to return the same session")
	}
	st.Remove(s.ID)
	if _, ok := st.Get(s.ID); ok {
		t.Fatalf("expected session removed")
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d", st.Len())
	}
}

func TestStore_RemoveCancelsTimers(t *testing.T) {
	st := NewStore()
	s := st.Create()
	fired := make(chan struct{}, 1)
	s.Lock()
	s.Code.Idle.Arm(20*time.Millisecond, func() { fired <- struct{}{} })
	s.Unlock()
	st.Remove(s.ID)
	select {
	case <-fired:
		t.Fatalf("timer fired after session destruction")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSession_BeginEndInvocation(t *testing.T) {
	s := NewStore().Create()
	if !s.BeginInvocation() {
		t.Fatalf("expected first begin to succeed")
	}
	if s.BeginInvocation() {
		t.Fatalf("expected re-entrant begin to fail while in flight")
	}
	s.EndInvocation()
	if !s.BeginInvocation() {
		t.Fatalf("expected begin to succeed after release")
	}
}
