package session

import (
	"sync"
	"time"
)

// Stage is a named phase of the interview controlling available behaviors.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageResume     Stage = "resume"
	StageCoding     Stage = "coding"
	StageCS         Stage = "cs"
	StageBehavioral Stage = "behavioral"
	StageWrapup     Stage = "wrapup"
	StageCompleted  Stage = "completed"
)

// ParseStage validates a raw stage string, typically one reported back by the
// external agent. Unrecognized values are rejected so a malformed response
// can never corrupt session state.
func ParseStage(raw string) (Stage, bool) {
	switch Stage(raw) {
	case StageGreeting, StageResume, StageCoding, StageCS, StageBehavioral, StageWrapup, StageCompleted:
		return Stage(raw), true
	}
	return "", false
}

// Turn is one entry of the conversation history.
type Turn struct {
	Role string // "USER" or "ASSISTANT"
	Text string
}

// SpeechState tracks the transcript stream for one session.
type SpeechState struct {
	Content    string
	LastUpdate time.Time
	Unconsumed bool
	Speaking   bool
	Idle       *Timer
}

// CodeState tracks the editor stream. Same shape as SpeechState, but idles on
// a much longer threshold, and carries the one-shot explicit-submission flag.
type CodeState struct {
	Content    string
	Language   string
	LastUpdate time.Time
	Unconsumed bool
	Typing     bool
	Submitted  bool
	Idle       *Timer
}

// InvocationState holds the per-session single-flight lock, the rate-limit
// clock, the playback flags and the scheduled re-check.
type InvocationState struct {
	LastInvocation time.Time
	InFlight       bool
	PlaybackActive bool
	// ResumeCapture remembers that recording was live when playback began,
	// so capture can be re-enabled once the client acknowledges completion.
	ResumeCapture bool
	Recheck       *Timer
}

// Session is the mutable state record for one live connection. All fields
// other than ID are guarded by the session mutex; events belonging to one
// session are never processed concurrently.
type Session struct {
	ID string

	mu sync.Mutex

	Stage            Stage
	DualStreamActive bool
	ResumePath       string
	ResumeContent    string
	RecordingActive  bool
	ReportsDone      bool

	Speech     SpeechState
	Code       CodeState
	Invocation InvocationState

	History []Turn
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// ResetStreams restores the three sub-records to their defaults, cancelling
// any timers the old records owned. Called with the session locked, on
// creation and on every entry into the coding stage.
func (s *Session) ResetStreams() {
	s.cancelTimersLocked()
	s.Speech = SpeechState{Idle: NewTimer()}
	s.Code = CodeState{Idle: NewTimer()}
	s.Invocation = InvocationState{Recheck: NewTimer()}
}

// CancelTimers stops every outstanding timer. Called with the session locked,
// on leaving the coding stage and on session destruction.
func (s *Session) CancelTimers() { s.cancelTimersLocked() }

func (s *Session) cancelTimersLocked() {
	if s.Speech.Idle != nil {
		s.Speech.Idle.Stop()
	}
	if s.Code.Idle != nil {
		s.Code.Idle.Stop()
	}
	if s.Invocation.Recheck != nil {
		s.Invocation.Recheck.Stop()
	}
}

// BeginInvocation attempts to take the single-flight lock. It returns false
// when an invocation is already in flight.
func (s *Session) BeginInvocation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Invocation.InFlight {
		return false
	}
	s.Invocation.InFlight = true
	s.Invocation.LastInvocation = time.Now()
	return true
}

// EndInvocation releases the single-flight lock. It must run on every exit
// path of an invocation; a missed release deadlocks the session permanently.
func (s *Session) EndInvocation() {
	s.mu.Lock()
	s.Invocation.InFlight = false
	s.mu.Unlock()
}

// InvocationInFlight reports the single-flight lock state.
func (s *Session) InvocationInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Invocation.InFlight
}

// SnapshotHistory copies the conversation history for use outside the lock.
func (s *Session) SnapshotHistory() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.History))
	copy(out, s.History)
	return out
}

// AppendExchange records a completed user/assistant exchange.
func (s *Session) AppendExchange(user, assistant string) {
	s.mu.Lock()
	s.History = append(s.History, Turn{Role: "USER", Text: user})
	s.History = append(s.History, Turn{Role: "ASSISTANT", Text: assistant})
	s.mu.Unlock()
}
