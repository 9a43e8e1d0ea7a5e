package agent

import (
	"context"

	"github.com/chadiek/interview-demo/internal/session"
)

// Step is the structured result of one agent invocation: the reply to speak
// and the stage the agent wants the interview to be in next.
type Step struct {
	Reply     string
	NextStage string
}

// Agent is the external interview agent. Given the conversation so far and
// the newly composed candidate input, it returns the next step.
type Agent interface {
	Next(ctx context.Context, stage session.Stage, history []session.Turn, message, submittedCode, resume string) (*Step, error)
}

// Reporter generates the terminal interview reports.
type Reporter interface {
	Scoring(ctx context.Context, history []session.Turn) (string, error)
	Recommendation(ctx context.Context, history []session.Turn) (string, error)
}

// Synthesizer converts reply text to playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Archiver persists interview artifacts. Best effort; failures are logged,
// never fatal to the session.
type Archiver interface {
	Upload(objectKey, contentType string, body []byte) error
}
