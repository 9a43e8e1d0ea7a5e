package dualstream

import (
	"log"
	"time"

	"github.com/chadiek/interview-demo/internal/session"
)

// Config holds the idle thresholds for the two input streams and the minimum
// spacing between agent invocations. Speech pauses run 1-2s while typing
// pauses run tens of seconds, so the two streams never share one threshold.
type Config struct {
	SpeechIdle  time.Duration
	CodeIdle    time.Duration
	MinInterval time.Duration
}

// DefaultConfig returns the canonical thresholds.
func DefaultConfig() Config {
	return Config{
		SpeechIdle:  2 * time.Second,
		CodeIdle:    30 * time.Second,
		MinInterval: time.Second,
	}
}

// Invoker runs one agent invocation. The engine takes the session's
// single-flight lock before delegating; Invoke must release it via
// Session.EndInvocation on every path, including errors and panics.
type Invoker interface {
	Invoke(s *session.Session, message, submittedCode string)
}

// Engine is the dual-stream decision core. It ingests speech and code updates
// for sessions in the coding stage, debounces each stream independently, and
// decides when enough new input has accumulated to invoke the agent.
type Engine struct {
	cfg     Config
	invoker Invoker
}

func NewEngine(cfg Config, invoker Invoker) *Engine {
	def := DefaultConfig()
	if cfg.SpeechIdle <= 0 {
		cfg.SpeechIdle = def.SpeechIdle
	}
	if cfg.CodeIdle <= 0 {
		cfg.CodeIdle = def.CodeIdle
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	return &Engine{cfg: cfg, invoker: invoker}
}

// checkArgs carries explicit call-time content, set only for synchronous
// submissions that bundle their own text/code.
type checkArgs struct {
	Text        string
	Code        string
	Language    string
	Explanation string
}

// OnSpeech applies a transcript update and re-evaluates the invocation
// decision. Safe to call at partial-transcript frequency: unchanged text is
// ignored and the idle timer is replaced, not stacked.
func (e *Engine) OnSpeech(s *session.Session, text string, final bool) {
	s.Lock()
	defer s.Unlock()
	if text != s.Speech.Content || final {
		s.Speech.Content = text
		s.Speech.LastUpdate = time.Now()
		s.Speech.Unconsumed = true
		s.Speech.Speaking = !final
		if final {
			s.Speech.Idle.Stop()
		} else {
			s.Speech.Idle.Arm(e.cfg.SpeechIdle, func() { e.speechIdle(s) })
		}
	}
	e.checkLocked(s, checkArgs{})
}

// OnCode applies an editor keystroke update.
func (e *Engine) OnCode(s *session.Session, code, language string) {
	s.Lock()
	defer s.Unlock()
	e.updateCodeLocked(s, code, language, false)
	e.checkLocked(s, checkArgs{})
}

// Submit applies an explicit code submission. Submission forces the code
// stream idle immediately, and when text is bundled as well the invocation
// fires without waiting on either stream.
func (e *Engine) Submit(s *session.Session, text, code, language, explanation string) {
	s.Lock()
	defer s.Unlock()
	e.updateCodeLocked(s, code, language, true)
	e.checkLocked(s, checkArgs{Text: text, Code: code, Language: language, Explanation: explanation})
}

func (e *Engine) updateCodeLocked(s *session.Session, code, language string, submitted bool) {
	if code == s.Code.Content && !submitted {
		return
	}
	s.Code.Content = code
	if language != "" {
		s.Code.Language = language
	}
	s.Code.LastUpdate = time.Now()
	s.Code.Unconsumed = true
	if submitted {
		// A submission is definitionally "done": bypass the idle timer.
		s.Code.Submitted = true
		s.Code.Typing = false
		s.Code.Idle.Stop()
	} else {
		s.Code.Typing = true
		s.Code.Idle.Arm(e.cfg.CodeIdle, func() { e.codeIdle(s) })
	}
}

func (e *Engine) speechIdle(s *session.Session) {
	s.Lock()
	s.Speech.Speaking = false
	e.checkLocked(s, checkArgs{})
	s.Unlock()
}

func (e *Engine) codeIdle(s *session.Session) {
	s.Lock()
	s.Code.Typing = false
	e.checkLocked(s, checkArgs{})
	s.Unlock()
}

func (e *Engine) recheck(s *session.Session) {
	s.Lock()
	e.checkLocked(s, checkArgs{})
	s.Unlock()
}

// checkLocked runs the invocation decision with the session locked.
//
// Guards short-circuit first: inactive mode, single-flight, rate limit. The
// decision rules then apply in fixed precedence: (a) explicit text+code,
// (b) both streams idle with unconsumed content, (c) speech idle and no code
// ever typed, (d) code idle and no speech ever heard. Anything else arms a
// re-check so idleness is detected without another client event.
func (e *Engine) checkLocked(s *session.Session, args checkArgs) {
	if !s.DualStreamActive {
		return
	}
	if s.Invocation.InFlight {
		return
	}
	now := time.Now()
	if now.Sub(s.Invocation.LastInvocation) < e.cfg.MinInterval {
		e.armRecheckLocked(s)
		return
	}

	speechIdle := !s.Speech.Speaking && now.Sub(s.Speech.LastUpdate) >= e.cfg.SpeechIdle
	codeIdle := s.Code.Submitted || (!s.Code.Typing && now.Sub(s.Code.LastUpdate) >= e.cfg.CodeIdle)

	switch {
	case args.Text != "" && args.Code != "":
	case speechIdle && codeIdle && (s.Speech.Unconsumed || s.Code.Unconsumed):
	case speechIdle && s.Speech.Unconsumed && s.Code.Content == "":
	case codeIdle && s.Code.Unconsumed && s.Speech.Content == "":
	default:
		if s.Speech.Unconsumed || s.Code.Unconsumed {
			e.armRecheckLocked(s)
		}
		return
	}
	e.invokeLocked(s, args, now)
}

func (e *Engine) armRecheckLocked(s *session.Session) {
	if s.Invocation.Recheck.Armed() {
		return
	}
	d := e.cfg.SpeechIdle
	if e.cfg.CodeIdle < d {
		d = e.cfg.CodeIdle
	}
	s.Invocation.Recheck.Arm(d, func() { e.recheck(s) })
}

func (e *Engine) invokeLocked(s *session.Session, args checkArgs, now time.Time) {
	s.Invocation.InFlight = true
	s.Invocation.LastInvocation = now
	s.Invocation.Recheck.Stop()

	code := args.Code
	language := args.Language
	if code == "" {
		code = s.Code.Content
	}
	if language == "" {
		language = s.Code.Language
	}
	msg := Compose(s.Speech.Content, args.Text, code, language, args.Explanation)

	// Unsubmitted code never reaches the agent as executable input; it is
	// forwarded separately only for explicit submissions.
	var submittedCode string
	if args.Code != "" || s.Code.Submitted {
		submittedCode = code
	}

	s.Speech.Unconsumed = false
	s.Code.Unconsumed = false
	s.Code.Submitted = false

	log.Printf("[%s] dualstream: invoking agent (%d bytes)", s.ID, len(msg))
	go e.invoker.Invoke(s, msg, submittedCode)
}
