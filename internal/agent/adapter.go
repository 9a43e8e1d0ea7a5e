package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chadiek/interview-demo/internal/audio"
	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
	"github.com/chadiek/interview-demo/internal/stage"
)

const completedReply = "The interview has concluded. Thank you for your time."

// Adapter wraps one agent invocation end to end: processing brackets, the
// external call, stage transition, terminal reports and speech synthesis.
// The caller takes the session's single-flight lock before delegating here;
// the adapter releases it on every path.
type Adapter struct {
	agent      Agent
	sender     protocol.Sender
	stages     *stage.Controller
	mediator   *audio.Mediator
	reports    Reporter
	tts        Synthesizer
	archive    Archiver
	starterFor func(language string) string

	callTimeout time.Duration
}

func NewAdapter(ag Agent, sender protocol.Sender, stages *stage.Controller, mediator *audio.Mediator) *Adapter {
	return &Adapter{
		agent:       ag,
		sender:      sender,
		stages:      stages,
		mediator:    mediator,
		callTimeout: 20 * time.Second,
	}
}

func (a *Adapter) WithReports(r Reporter) *Adapter                 { a.reports = r; return a }
func (a *Adapter) WithTTS(t Synthesizer) *Adapter                  { a.tts = t; return a }
func (a *Adapter) WithArchive(ar Archiver) *Adapter                { a.archive = ar; return a }
func (a *Adapter) WithStarterCode(fn func(string) string) *Adapter { a.starterFor = fn; return a }

// Invoke runs one invocation. It assumes the single-flight lock is already
// held for this session and releases it when done, success or failure.
func (a *Adapter) Invoke(s *session.Session, message, submittedCode string) {
	defer a.finish(s)

	_ = a.sender.Send(protocol.Message{Type: protocol.TypeProcessing})

	s.Lock()
	st := s.Stage
	resume := s.ResumeContent
	s.Unlock()
	history := s.SnapshotHistory()

	if st == session.StageCompleted {
		_ = a.sender.Send(protocol.Message{
			Type:    protocol.TypeAgentResponse,
			Message: completedReply,
			Stage:   string(session.StageCompleted),
		})
		return
	}

	// In-progress code must never leak to the agent; only an explicit
	// submission made during the coding stage is forwarded.
	if st != session.StageCoding {
		submittedCode = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.callTimeout)
	step, err := a.agent.Next(ctx, st, history, message, submittedCode, resume)
	cancel()
	if err != nil {
		log.Printf("[%s] agent error: %v", s.ID, err)
		a.serverError(fmt.Sprintf("agent call failed: %v", err))
		return
	}

	s.AppendExchange(message, step.Reply)

	if step.NextStage != "" && step.NextStage != string(st) {
		if a.stages.Transition(s, step.NextStage) {
			a.AnnounceStageEntry(s)
		}
	}

	s.Lock()
	cur := s.Stage
	s.Unlock()
	_ = a.sender.Send(protocol.Message{
		Type:    protocol.TypeAgentResponse,
		Message: step.Reply,
		Stage:   string(cur),
	})

	if cur == session.StageCompleted {
		a.finishInterview(s)
	}

	a.speak(s, step.Reply)
}

// finish releases the single-flight lock and closes the processing bracket.
// Runs on every exit path; a missed release would deadlock the session.
func (a *Adapter) finish(s *session.Session) {
	if r := recover(); r != nil {
		log.Printf("[%s] recovered from panic in Invoke: %v", s.ID, r)
		a.serverError("internal error during agent invocation")
	}
	s.EndInvocation()
	_ = a.sender.Send(protocol.Message{Type: protocol.TypeProcessingFinished})
}

// AnnounceStageEntry emits stage-entry payloads, currently the coding
// starter snippet. Called after any transition, agent-driven or explicit.
func (a *Adapter) AnnounceStageEntry(s *session.Session) {
	s.Lock()
	cur := s.Stage
	lang := s.Code.Language
	s.Unlock()
	if cur != session.StageCoding || a.starterFor == nil {
		return
	}
	if lang == "" {
		lang = "python"
	}
	_ = a.sender.Send(protocol.Message{
		Type:        protocol.TypeCodingStarted,
		Language:    lang,
		StarterCode: a.starterFor(lang),
	})
}

// speak synthesizes the reply and dispatches it. TTS failure degrades
// gracefully: the text response has already been delivered, so the error is
// reported and playback state is left untouched.
func (a *Adapter) speak(s *session.Session, text string) {
	if a.tts == nil || text == "" {
		return
	}
	_ = a.sender.Send(protocol.Message{Type: protocol.TypeGeneratingAudio})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pcm, err := a.tts.Synthesize(ctx, text)
	if err != nil {
		log.Printf("[%s] tts error: %v", s.ID, err)
		a.serverError("audio synthesis failed; text response is available")
		return
	}
	a.mediator.BeginPlayback(s)
	_ = a.sender.Send(protocol.Message{
		Type:  protocol.TypeAudioResponse,
		Audio: pcm,
		Text:  text,
	})
}

// finishInterview fires the two terminal report generations concurrently,
// exactly once per session, and archives the artifacts best-effort.
func (a *Adapter) finishInterview(s *session.Session) {
	s.Lock()
	if s.ReportsDone {
		s.Unlock()
		return
	}
	s.ReportsDone = true
	s.Unlock()

	if a.reports == nil {
		return
	}
	history := s.SnapshotHistory()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var scoring, recommendation string
	var scoringErr, recErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		scoring, scoringErr = a.reports.Scoring(ctx, history)
	}()
	go func() {
		defer wg.Done()
		recommendation, recErr = a.reports.Recommendation(ctx, history)
	}()
	wg.Wait()

	if scoringErr != nil {
		log.Printf("[%s] scoring report error: %v", s.ID, scoringErr)
		a.serverError("scoring report generation failed")
	} else {
		_ = a.sender.Send(protocol.Message{Type: protocol.TypeScoringResult, Message: scoring})
	}
	if recErr != nil {
		log.Printf("[%s] recommendation report error: %v", s.ID, recErr)
		a.serverError("recommendation report generation failed")
	} else {
		_ = a.sender.Send(protocol.Message{Type: protocol.TypeRecommendationResult, Message: recommendation})
	}

	a.archiveInterview(s, history, scoring, recommendation)
}

func (a *Adapter) archiveInterview(s *session.Session, history []session.Turn, scoring, recommendation string) {
	if a.archive == nil {
		return
	}
	var b strings.Builder
	for _, t := range history {
		b.WriteString("[" + t.Role + "] " + t.Text + "\n")
	}
	uploads := map[string]string{
		s.ID + "/transcript.txt":     b.String(),
		s.ID + "/scoring.txt":        scoring,
		s.ID + "/recommendation.txt": recommendation,
	}
	for key, body := range uploads {
		if body == "" {
			continue
		}
		if err := a.archive.Upload(key, "text/plain", []byte(body)); err != nil {
			log.Printf("[%s] archive upload %s failed: %v", s.ID, key, err)
		}
	}
}

func (a *Adapter) serverError(msg string) {
	_ = a.sender.Send(protocol.Message{Type: protocol.TypeServerError, Message: msg})
}
