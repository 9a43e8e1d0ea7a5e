package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chadiek/interview-demo/internal/audio"
	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
	"github.com/chadiek/interview-demo/internal/stage"
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

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Type
	}
	return out
}

type fakeAgent struct {
	mu    sync.Mutex
	calls []fakeCall
	step  *Step
	err   error
}

type fakeCall struct {
	stage         session.Stage
	message       string
	submittedCode string
}

func (f *fakeAgent) Next(ctx context.Context, st session.Stage, history []session.Turn, message, submittedCode, resume string) (*Step, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{stage: st, message: message, submittedCode: submittedCode})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.step != nil {
		return f.step, nil
	}
	return &Step{Reply: "ok"}, nil
}

type fakeReporter struct {
	scoring, recommendation string
	scoringErr              error
}

func (f *fakeReporter) Scoring(ctx context.Context, history []session.Turn) (string, error) {
	return f.scoring, f.scoringErr
}

func (f *fakeReporter) Recommendation(ctx context.Context, history []session.Turn) (string, error) {
	return f.recommendation, nil
}

type fakeTTS struct {
	pcm []byte
	err error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.pcm, f.err
}

func newAdapterFixture() (*Adapter, *fakeSender, *fakeAgent, *session.Session) {
	sender := &fakeSender{}
	ag := &fakeAgent{}
	s := session.NewStore().Create()
	a := NewAdapter(ag, sender, stage.NewController(sender), audio.NewMediator(sender))
	return a, sender, ag, s
}

func TestInvoke_AgentErrorReleasesLockAndReports(t *testing.T) {
	a, sender, ag, s := newAdapterFixture()
	ag.err = errors.New("upstream timeout")

	if !s.BeginInvocation() {
		t.Fatalf("expected to take invocation lock")
	}
	a.Invoke(s, "hello", "")

	if s.InvocationInFlight() {
		t.Fatalf("expected lock released after failed invocation")
	}
	errs := sender.byType(protocol.TypeServerError)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "agent call failed") {
		t.Fatalf("expected one server_error, got %+v", errs)
	}
	types := sender.types()
	if types[0] != protocol.TypeProcessing || types[len(types)-1] != protocol.TypeProcessingFinished {
		t.Fatalf("expected processing brackets, got %v", types)
	}
}

func TestInvoke_StripsCodeOutsideCodingStage(t *testing.T) {
	a, _, ag, s := newAdapterFixture()

	s.BeginInvocation()
	a.Invoke(s, "some thoughts", "def solve(): pass")

	if len(ag.calls) != 1 {
		t.Fatalf("expected one agent call")
	}
	if ag.calls[0].submittedCode != "" {
		t.Fatalf("code forwarded outside coding stage: %q", ag.calls[0].submittedCode)
	}
}

func TestInvoke_ForwardsCodeDuringCodingStage(t *testing.T) {
	a, _, ag, s := newAdapterFixture()
	s.Lock()
	s.Stage = session.StageCoding
	s.Unlock()

	s.BeginInvocation()
	a.Invoke(s, "submitting", "def solve(): pass")

	if ag.calls[0].submittedCode != "def solve(): pass" {
		t.Fatalf("expected submitted code forwarded, got %q", ag.calls[0].submittedCode)
	}
}

func TestInvoke_CompletedStageShortCircuits(t *testing.T) {
	a, sender, ag, s := newAdapterFixture()
	s.Lock()
	s.Stage = session.StageCompleted
	s.Unlock()

	s.BeginInvocation()
	a.Invoke(s, "anything else?", "")

	if len(ag.calls) != 0 {
		t.Fatalf("expected no agent call after completion")
	}
	replies := sender.byType(protocol.TypeAgentResponse)
	if len(replies) != 1 || replies[0].Message != completedReply {
		t.Fatalf("expected fixed completion reply, got %+v", replies)
	}
	if s.InvocationInFlight() {
		t.Fatalf("expected lock released")
	}
}

func TestInvoke_AgentDrivenCompletionGeneratesReportsOnce(t *testing.T) {
	a, sender, ag, s := newAdapterFixture()
	a.WithReports(&fakeReporter{scoring: "score: 7/10", recommendation: "hire"})
	ag.step = &Step{Reply: "thanks, we are done", NextStage: "completed"}
	s.Lock()
	s.Stage = session.StageWrapup
	s.Unlock()

	s.BeginInvocation()
	a.Invoke(s, "bye", "")

	if got := sender.byType(protocol.TypeScoringResult); len(got) != 1 || got[0].Message != "score: 7/10" {
		t.Fatalf("unexpected scoring result: %+v", got)
	}
	if got := sender.byType(protocol.TypeRecommendationResult); len(got) != 1 || got[0].Message != "hire" {
		t.Fatalf("unexpected recommendation result: %+v", got)
	}

	// A second invocation in the completed stage must not regenerate them.
	s.BeginInvocation()
	a.Invoke(s, "still there?", "")
	if len(sender.byType(protocol.TypeScoringResult)) != 1 {
		t.Fatalf("reports generated more than once")
	}
}

func TestInvoke_ReportFailureEmitsServerError(t *testing.T) {
	a, sender, ag, s := newAdapterFixture()
	a.WithReports(&fakeReporter{scoringErr: errors.New("model unavailable"), recommendation: "hire"})
	ag.step = &Step{Reply: "done", NextStage: "completed"}

	s.BeginInvocation()
	a.Invoke(s, "bye", "")

	if len(sender.byType(protocol.TypeScoringResult)) != 0 {
		t.Fatalf("expected no scoring result on failure")
	}
	if len(sender.byType(protocol.TypeRecommendationResult)) != 1 {
		t.Fatalf("expected recommendation despite scoring failure")
	}
	if len(sender.byType(protocol.TypeServerError)) != 1 {
		t.Fatalf("expected a server_error for the failed report")
	}
}

func TestInvoke_TTSSuccessStartsPlayback(t *testing.T) {
	a, sender, _, s := newAdapterFixture()
	a.WithTTS(&fakeTTS{pcm: []byte{1, 2, 3}})

	s.BeginInvocation()
	a.Invoke(s, "hello", "")

	audioMsgs := sender.byType(protocol.TypeAudioResponse)
	if len(audioMsgs) != 1 || len(audioMsgs[0].Audio) != 3 {
		t.Fatalf("expected one audio_response with payload, got %+v", audioMsgs)
	}
	s.Lock()
	active := s.Invocation.PlaybackActive
	s.Unlock()
	if !active {
		t.Fatalf("expected playback active after synthesis")
	}
}

func TestInvoke_TTSFailureKeepsTextResponse(t *testing.T) {
	a, sender, _, s := newAdapterFixture()
	a.WithTTS(&fakeTTS{err: errors.New("synthesis backend down")})

	s.BeginInvocation()
	a.Invoke(s, "hello", "")

	if len(sender.byType(protocol.TypeAgentResponse)) != 1 {
		t.Fatalf("expected text response delivered")
	}
	if len(sender.byType(protocol.TypeAudioResponse)) != 0 {
		t.Fatalf("expected no audio on synthesis failure")
	}
	if len(sender.byType(protocol.TypeServerError)) != 1 {
		t.Fatalf("expected a server_error describing the degradation")
	}
	s.Lock()
	active := s.Invocation.PlaybackActive
	s.Unlock()
	if active {
		t.Fatalf("playback must not be marked active on failure")
	}
}

func TestAnnounceStageEntry_SendsStarterCode(t *testing.T) {
	a, sender, _, s := newAdapterFixture()
	a.WithStarterCode(func(lang string) string { return "# starter for " + lang })
	s.Lock()
	s.Stage = session.StageCoding
	s.Unlock()

	a.AnnounceStageEntry(s)

	got := sender.byType(protocol.TypeCodingStarted)
	if len(got) != 1 || got[0].Language != "python" || got[0].StarterCode != "# starter for python" {
		t.Fatalf("unexpected coding_started: %+v", got)
	}
}
