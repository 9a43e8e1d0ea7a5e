package transcript

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// SILENCE_THRESHOLD is the inactivity window required before an utterance is
// considered complete. Conservative to avoid cutting the candidate
// mid-sentence.
const SILENCE_THRESHOLD = 700 * time.Millisecond

// CONTINUATION_EXTENSION is added when the last word suggests the speaker is
// mid-thought (e.g. "and", "if").
const CONTINUATION_EXTENSION = 1200 * time.Millisecond

// Event is one transcript update. Final events carry the delta since the
// last finalized utterance; partials carry the running full transcript.
type Event struct {
	Text  string
	Final bool
}

// Service is a realtime AssemblyAI streaming transcription client.
type Service struct {
	apiKey string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool

	events chan Event
	audio  chan []byte
	stopCh chan struct{}

	accMu        sync.Mutex
	latest       string
	committed    string
	lastUpdate   time.Time
	silenceTimer *time.Timer
	closed       bool
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewService(apiKey string) *Service {
	return &Service{
		apiKey: apiKey,
		events: make(chan Event, 100),
		audio:  make(chan []byte, 1000),
		stopCh: make(chan struct{}),
	}
}

// Events returns the transcript event stream.
func (s *Service) Events() <-chan Event { return s.events }

// Connect establishes the streaming WebSocket connection.
func (s *Service) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("assemblyai api key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, map[string][]string{"Authorization": {s.apiKey}})
	if err != nil {
		if resp != nil {
			log.Printf("assemblyai: connection failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to assemblyai: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.accMu.Lock()
	s.lastUpdate = time.Now()
	s.accMu.Unlock()

	go s.readLoop()
	go s.writeLoop()
	return nil
}

// SendAudio queues a raw audio chunk for the provider. The payload is opaque
// here; a full buffer drops the packet rather than blocking the caller.
func (s *Service) SendAudio(chunk []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to assemblyai")
	}
	select {
	case s.audio <- chunk:
	default:
		log.Println("assemblyai: audio buffer full, dropping packet")
	}
	return nil
}

// Close tears down the connection and flushes any uncommitted transcript.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	s.accMu.Lock()
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	s.accMu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	s.flushPending()
	// Mark closed under accMu so a silence-timer callback caught between its
	// stop check and its send cannot race onto a closed channel.
	s.accMu.Lock()
	s.closed = true
	s.accMu.Unlock()
	close(s.audio)
	close(s.events)
	return nil
}

func (s *Service) writeLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("assemblyai: recovered from panic in writeLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				log.Printf("assemblyai: write error: %v", err)
				return
			}
		}
	}
}

func (s *Service) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("assemblyai: recovered from panic in readLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("assemblyai: read error: %v", err)
			return
		}
		s.handleMessage(message)
	}
}

func (s *Service) handleMessage(message []byte) {
	var base map[string]interface{}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("assemblyai: bad message: %v", err)
		return
	}
	msgType, _ := base["type"].(string)
	switch msgType {
	case "Begin":
		var msg beginMessage
		if json.Unmarshal(message, &msg) == nil {
			log.Printf("assemblyai: session began id=%s", msg.ID)
		}
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Transcript == "" {
			return
		}
		s.emit(Event{Text: msg.Transcript})
		s.accMu.Lock()
		s.latest = msg.Transcript
		s.lastUpdate = time.Now()
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(SILENCE_THRESHOLD, s.finalizeDueToSilence)
		} else {
			s.silenceTimer.Stop()
			s.silenceTimer.Reset(SILENCE_THRESHOLD)
		}
		s.accMu.Unlock()
	case "Termination":
		s.flushPending()
	case "Error":
		var msg errorMessage
		if json.Unmarshal(message, &msg) == nil {
			log.Printf("assemblyai: error: %s", msg.Error)
		}
	default:
		log.Printf("assemblyai: unknown message type %q", msgType)
	}
}

// finalizeDueToSilence fires after SILENCE_THRESHOLD of transcript
// inactivity. The threshold stretches when the utterance ends in a word that
// implies continuation; the timer re-arms itself until enough quiet has
// actually elapsed.
func (s *Service) finalizeDueToSilence() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.accMu.Lock()
	defer s.accMu.Unlock()
	if s.closed {
		return
	}
	threshold := SILENCE_THRESHOLD
	if continuationLikely(s.latest) {
		threshold += CONTINUATION_EXTENSION
	}
	since := time.Since(s.lastUpdate)
	if since < threshold {
		wait := threshold - since
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		return
	}
	delta := s.commitDeltaLocked()
	if delta == "" {
		return
	}
	// Sending under accMu keeps the closed check and the send atomic; Close
	// releases a blocked sender by closing stopCh before it takes accMu.
	select {
	case <-s.stopCh:
	case s.events <- Event{Text: delta, Final: true}:
	}
}

// commitDeltaLocked advances the committed transcript and returns the new
// text since the previous commit. Requires accMu held.
func (s *Service) commitDeltaLocked() string {
	delta := strings.TrimSpace(strings.TrimPrefix(s.latest, s.committed))
	if delta == "" && s.committed != "" {
		if idx := strings.LastIndex(s.latest, s.committed); idx >= 0 {
			delta = strings.TrimSpace(s.latest[idx+len(s.committed):])
		}
	}
	s.committed = s.latest
	return delta
}

// flushPending emits any uncommitted delta so the last words are not lost on
// shutdown. Best effort with a short deadline.
func (s *Service) flushPending() {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	if s.closed {
		return
	}
	delta := s.commitDeltaLocked()
	if delta == "" {
		return
	}
	select {
	case s.events <- Event{Text: delta, Final: true}:
	case <-time.After(200 * time.Millisecond):
		log.Printf("assemblyai: timed out delivering final delta")
	}
}

func (s *Service) emit(ev Event) {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

// continuationLikely reports whether the last word suggests the speaker will
// keep going (conjunctions, fillers, dangling prepositions).
func continuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(text), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "so": {},
	"if": {}, "when": {}, "while": {}, "because": {}, "since": {}, "unless": {},
	"also": {}, "um": {}, "uh": {}, "like": {},
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}
