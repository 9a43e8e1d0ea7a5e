package stage

import (
	"sync"
	"testing"
	"time"

	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Message
}

func (f *fakeSender) Send(msg protocol.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) byType(typ string) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.sent {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestTransition_EnterCodingResetsStreams(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(sender)
	s := session.NewStore().Create()

	// Leftover state from earlier activity must not survive into coding.
	s.Lock()
	s.Speech.Content = "stale speech"
	s.Speech.Unconsumed = true
	s.Code.Content = "stale code"
	s.Code.Submitted = true
	s.Unlock()

	if !c.Transition(s, "coding") {
		t.Fatalf("expected transition to coding")
	}

	s.Lock()
	defer s.Unlock()
	if s.Stage != session.StageCoding || !s.DualStreamActive {
		t.Fatalf("expected coding stage with dual-stream active")
	}
	if s.Speech.Content != "" || s.Code.Content != "" {
		t.Fatalf("expected stream contents reset, got %q / %q", s.Speech.Content, s.Code.Content)
	}
	if s.Speech.Unconsumed || s.Code.Submitted {
		t.Fatalf("expected stream flags reset")
	}
	changed := sender.byType(protocol.TypeStageChanged)
	if len(changed) != 1 || changed[0].PreviousStage != "greeting" || changed[0].NewStage != "coding" {
		t.Fatalf("unexpected stage_changed payloads: %+v", changed)
	}
}

func TestTransition_LeaveCodingCancelsTimersAndDisablesDualStream(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(sender)
	s := session.NewStore().Create()
	c.Transition(s, "coding")

	fired := make(chan struct{}, 1)
	s.Lock()
	s.Speech.Idle.Arm(30*time.Millisecond, func() { fired <- struct{}{} })
	s.Unlock()

	if !c.Transition(s, "cs") {
		t.Fatalf("expected transition to cs")
	}
	s.Lock()
	if s.DualStreamActive {
		t.Fatalf("expected dual-stream disabled after leaving coding")
	}
	s.Unlock()

	select {
	case <-fired:
		t.Fatalf("idle timer fired after stage exit")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestTransition_UnrecognizedStageCoerced(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(sender)
	s := session.NewStore().Create()

	if c.Transition(s, "garbage_stage") {
		t.Fatalf("expected unrecognized stage to be rejected")
	}
	s.Lock()
	defer s.Unlock()
	if s.Stage != session.StageGreeting {
		t.Fatalf("expected stage unchanged, got %s", s.Stage)
	}
	if len(sender.byType(protocol.TypeStageChanged)) != 0 {
		t.Fatalf("expected no stage_changed notification")
	}
}

func TestTransition_SameStageIsNoop(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(sender)
	s := session.NewStore().Create()
	if c.Transition(s, "greeting") {
		t.Fatalf("expected no transition to same stage")
	}
}
