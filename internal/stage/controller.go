package stage

import (
	"log"

	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
)

// Controller reacts to stage transitions. The external agent decides most
// transitions; the controller validates them, toggles dual-stream mode, and
// resets stream state so nothing leaks across stage boundaries.
type Controller struct {
	sender protocol.Sender
}

func NewController(sender protocol.Sender) *Controller {
	return &Controller{sender: sender}
}

// Transition moves the session to the stage named by raw. An unrecognized
// value is coerced back to the current stage with a warning; a malformed
// agent response must never corrupt session state. Returns whether the stage
// actually changed.
func (c *Controller) Transition(s *session.Session, raw string) bool {
	next, ok := session.ParseStage(raw)
	if !ok {
		s.Lock()
		cur := s.Stage
		s.Unlock()
		log.Printf("[%s] stage: unrecognized stage %q, staying in %q", s.ID, raw, cur)
		return false
	}

	s.Lock()
	prev := s.Stage
	if next == prev {
		s.Unlock()
		return false
	}
	if prev == session.StageCoding {
		s.CancelTimers()
		s.DualStreamActive = false
	}
	s.Stage = next
	if next == session.StageCoding {
		s.ResetStreams()
		s.DualStreamActive = true
	}
	s.Unlock()

	log.Printf("[%s] stage: %s -> %s", s.ID, prev, next)
	_ = c.sender.Send(protocol.Message{
		Type:          protocol.TypeStageChanged,
		PreviousStage: string(prev),
		NewStage:      string(next),
	})
	return true
}
