package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/chadiek/interview-demo/internal/agent"
	"github.com/chadiek/interview-demo/internal/audio"
	"github.com/chadiek/interview-demo/internal/dualstream"
	"github.com/chadiek/interview-demo/internal/protocol"
	"github.com/chadiek/interview-demo/internal/session"
	"github.com/chadiek/interview-demo/internal/stage"
	"github.com/chadiek/interview-demo/internal/transcript"
)

const maxFrameBytes = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// STT is the realtime transcription collaborator, one instance per
// connection.
type STT interface {
	Connect() error
	SendAudio(chunk []byte) error
	Events() <-chan transcript.Event
	Close() error
}

// ResumeFetcher pulls resume content referenced by set_resume_path.
type ResumeFetcher interface {
	Download(objectKey string) ([]byte, error)
}

// Handler accepts interview connections and owns the session registry.
// Per-connection collaborators (engine, adapter, mediator, STT) are built at
// accept time around that connection's sender.
type Handler struct {
	store     *session.Store
	agent     agent.Agent
	engineCfg dualstream.Config

	reporter   agent.Reporter
	tts        agent.Synthesizer
	archive    agent.Archiver
	resumes    ResumeFetcher
	starterFor func(language string) string
	newSTT     func() STT
}

func NewHandler(store *session.Store, ag agent.Agent, engineCfg dualstream.Config) *Handler {
	return &Handler{store: store, agent: ag, engineCfg: engineCfg}
}

func (h *Handler) WithReports(r agent.Reporter) *Handler               { h.reporter = r; return h }
func (h *Handler) WithTTS(t agent.Synthesizer) *Handler                { h.tts = t; return h }
func (h *Handler) WithArchive(a agent.Archiver) *Handler               { h.archive = a; return h }
func (h *Handler) WithResumes(r ResumeFetcher) *Handler                { h.resumes = r; return h }
func (h *Handler) WithStarterCode(fn func(string) string) *Handler     { h.starterFor = fn; return h }
func (h *Handler) WithTranscription(newSTT func() STT) *Handler        { h.newSTT = newSTT; return h }

// Sessions exposes the registry, mainly for shutdown accounting.
func (h *Handler) Sessions() *session.Store { return h.store }

// ServeWebSocket upgrades the request and runs the connection until the
// client goes away.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxFrameBytes)
	h.serve(conn)
}

type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// client is the per-connection wiring of the core around one sender.
type client struct {
	h        *Handler
	sess     *session.Session
	sender   *wsSender
	mediator *audio.Mediator
	stages   *stage.Controller
	adapter  *agent.Adapter
	engine   *dualstream.Engine

	mu  sync.Mutex
	stt STT
}

func (h *Handler) serve(conn *websocket.Conn) {
	sender := &wsSender{conn: conn}
	sess := h.store.Create()
	defer h.store.Remove(sess.ID)

	mediator := audio.NewMediator(sender)
	stages := stage.NewController(sender)
	adapter := agent.NewAdapter(h.agent, sender, stages, mediator).
		WithReports(h.reporter).
		WithTTS(h.tts).
		WithArchive(h.archive).
		WithStarterCode(h.starterFor)
	c := &client{
		h:        h,
		sess:     sess,
		sender:   sender,
		mediator: mediator,
		stages:   stages,
		adapter:  adapter,
		engine:   dualstream.NewEngine(h.engineCfg, adapter),
	}
	defer c.closeSTT()

	log.Printf("[%s] connected", sess.ID)
	_ = sender.Send(protocol.Message{Type: protocol.TypeConnected, SessionID: sess.ID})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[%s] disconnected: %v", sess.ID, err)
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			c.onAudioChunk(data)
		case websocket.TextMessage:
			c.onControlFrame(data)
		}
	}
}
