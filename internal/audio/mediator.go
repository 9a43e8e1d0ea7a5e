package audio

import (
	"log"

	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
)

// Mediator owns the mutual exclusion between agent playback and candidate
// recording. While synthesized audio is playing the candidate is assumed to
// be listening, so new recording requests are suppressed until the client
// acknowledges playback completion.
type Mediator struct {
	sender protocol.Sender
}

func NewMediator(sender protocol.Sender) *Mediator {
	return &Mediator{sender: sender}
}

// BeginPlayback marks playback active, pauses capture, and tells the client
// audio is on its way out. While the flag is set the candidate is listening,
// so no speech may reach the trackers; whether capture was live is remembered
// so it can resume after the playback-finished acknowledgement.
func (m *Mediator) BeginPlayback(s *session.Session) {
	s.Lock()
	s.Invocation.PlaybackActive = true
	s.Invocation.ResumeCapture = s.RecordingActive
	s.RecordingActive = false
	s.Unlock()
	_ = m.sender.Send(protocol.Message{Type: protocol.TypePlaybackStarted})
}

// FinishPlayback clears the playback flag and re-arms the microphone. A
// client-side playback error takes the same path; treating it differently
// would leave the mic locked out permanently. Returns whether recording was
// active before playback and should resume.
func (m *Mediator) FinishPlayback(s *session.Session) bool {
	s.Lock()
	wasActive := s.Invocation.PlaybackActive
	s.Invocation.PlaybackActive = false
	resume := s.Invocation.ResumeCapture
	s.Invocation.ResumeCapture = false
	s.Unlock()
	if !wasActive {
		log.Printf("[%s] audio: playback-finished with no active playback", s.ID)
	}
	_ = m.sender.Send(protocol.Message{Type: protocol.TypeMicrophoneEnabled})
	return resume
}

// RecordingAllowed reports whether the candidate may start recording now.
func (m *Mediator) RecordingAllowed(s *session.Session) bool {
	s.Lock()
	defer s.Unlock()
	return !s.Invocation.PlaybackActive
}
