package ws

import (
	"encoding/json"
	"log"

	"github.com/chadiek/interview-demo/internal/dualstream"
	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/transcript"
)

// onAudioChunk forwards raw audio to the STT collaborator. Payloads are
// opaque; chunks arriving before transcription started are dropped.
func (c *client) onAudioChunk(data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	stt := c.stt
	c.mu.Unlock()
	if stt == nil {
		return
	}
	c.sess.Lock()
	recording := c.sess.RecordingActive
	c.sess.Unlock()
	if !recording {
		return
	}
	if err := stt.SendAudio(data); err != nil {
		log.Printf("[%s] stt send error: %v", c.sess.ID, err)
	}
}

func (c *client) onControlFrame(data []byte) {
	var m protocol.Message
	if err := json.Unmarshal(data, &m); err != nil {
		c.serverError("malformed message")
		return
	}
	switch m.Type {
	case protocol.TypeStartTranscription:
		c.startTranscription()
	case protocol.TypeStopTranscription:
		c.stopTranscription()
	case protocol.TypeTextInput:
		c.onTextInput(m)
	case protocol.TypeCodeKeystroke:
		c.onCodeKeystroke(m)
	case protocol.TypeCodeInput:
		c.onCodeInput(m)
	case protocol.TypePlaybackFinished:
		if c.mediator.FinishPlayback(c.sess) {
			c.resumeCapture()
		}
	case protocol.TypeStageChange:
		if c.stages.Transition(c.sess, m.Stage) {
			c.adapter.AnnounceStageEntry(c.sess)
		}
	case protocol.TypeSetResumePath:
		c.setResumePath(m.Path)
	default:
		log.Printf("[%s] unknown message type %q", c.sess.ID, m.Type)
		c.serverError("unknown message type")
	}
}

// startTranscription connects the STT stream. Requests made while agent
// audio is playing are ignored; the candidate is listening, not speaking.
func (c *client) startTranscription() {
	if !c.mediator.RecordingAllowed(c.sess) {
		log.Printf("[%s] start_transcription ignored during playback", c.sess.ID)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stt == nil {
		if c.h.newSTT == nil {
			c.serverError("transcription unavailable")
			return
		}
		stt := c.h.newSTT()
		if err := stt.Connect(); err != nil {
			log.Printf("[%s] stt connect error: %v", c.sess.ID, err)
			c.serverError("failed to start transcription")
			return
		}
		c.stt = stt
		go c.pumpTranscripts(stt)
	}
	c.sess.Lock()
	c.sess.RecordingActive = true
	c.sess.Unlock()
}

func (c *client) stopTranscription() {
	c.sess.Lock()
	c.sess.RecordingActive = false
	c.sess.Unlock()
	c.closeSTT()
}

func (c *client) closeSTT() {
	c.mu.Lock()
	stt := c.stt
	c.stt = nil
	c.mu.Unlock()
	if stt != nil {
		_ = stt.Close()
	}
}

// resumeCapture re-enables recording after playback. The STT connection was
// kept alive across playback, so only the gate flips back.
func (c *client) resumeCapture() {
	c.sess.Lock()
	c.sess.RecordingActive = true
	c.sess.Unlock()
}

// pumpTranscripts routes STT events: echo to the client, then either into
// the dual-stream trackers (coding stage) or straight to the agent on a
// final utterance. Events arriving while agent audio is playing are dropped;
// the candidate is listening, and residual transcript from just before
// playback must not trigger an invocation. Runs until the STT event channel
// closes.
func (c *client) pumpTranscripts(stt STT) {
	for ev := range stt.Events() {
		c.sess.Lock()
		playback := c.sess.Invocation.PlaybackActive
		dual := c.sess.DualStreamActive
		c.sess.Unlock()
		if playback {
			continue
		}
		c.echoTranscript(ev)
		if dual {
			c.engine.OnSpeech(c.sess, ev.Text, ev.Final)
		} else if ev.Final {
			c.invokeDirect(ev.Text, "")
		}
	}
}

func (c *client) echoTranscript(ev transcript.Event) {
	typ := protocol.TypePartialTranscript
	if ev.Final {
		typ = protocol.TypeFinalTranscript
	}
	_ = c.sender.Send(protocol.Message{Type: typ, Text: ev.Text})
}

func (c *client) onTextInput(m protocol.Message) {
	if m.Text == "" {
		c.serverError("empty text_input")
		return
	}
	c.sess.Lock()
	dual := c.sess.DualStreamActive
	c.sess.Unlock()
	if dual {
		// Typed chat during coding merges into the speech lane so it is
		// debounced with everything else rather than racing the streams.
		c.engine.OnSpeech(c.sess, m.Text, true)
		return
	}
	c.invokeDirect(m.Text, "")
}

func (c *client) onCodeKeystroke(m protocol.Message) {
	c.sess.Lock()
	dual := c.sess.DualStreamActive
	c.sess.Unlock()
	if !dual {
		log.Printf("[%s] code_keystroke outside coding stage ignored", c.sess.ID)
		return
	}
	c.engine.OnCode(c.sess, m.Code, m.Language)
}

func (c *client) onCodeInput(m protocol.Message) {
	if m.Code == "" {
		c.serverError("empty code_input")
		return
	}
	c.sess.Lock()
	dual := c.sess.DualStreamActive
	c.sess.Unlock()
	if dual {
		c.engine.Submit(c.sess, m.Text, m.Code, m.Language, m.Explanation)
		return
	}
	msg := dualstream.Compose("", m.Text, m.Code, m.Language, m.Explanation)
	c.invokeDirect(msg, "")
}

// invokeDirect runs an agent invocation outside the dual-stream engine, for
// non-coding stages. Single-flight still applies: a re-entrant attempt is an
// invariant violation, logged and dropped rather than propagated.
func (c *client) invokeDirect(message, submittedCode string) {
	if !c.sess.BeginInvocation() {
		log.Printf("[%s] invocation already in flight, dropping input", c.sess.ID)
		return
	}
	go c.adapter.Invoke(c.sess, message, submittedCode)
}

func (c *client) setResumePath(path string) {
	if path == "" {
		c.serverError("empty resume path")
		return
	}
	c.sess.Lock()
	if c.sess.ResumePath != "" {
		c.sess.Unlock()
		log.Printf("[%s] resume path already set, ignoring", c.sess.ID)
		return
	}
	c.sess.ResumePath = path
	c.sess.Unlock()

	if c.h.resumes == nil {
		return
	}
	go func() {
		content, err := c.h.resumes.Download(path)
		if err != nil {
			log.Printf("[%s] resume download failed: %v", c.sess.ID, err)
			return
		}
		c.sess.Lock()
		c.sess.ResumeContent = string(content)
		c.sess.Unlock()
	}()
}

func (c *client) serverError(msg string) {
	_ = c.sender.Send(protocol.Message{Type: protocol.TypeServerError, Message: msg})
}
