package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chadiek/interview-demo/internal/agent"
	"github.com/chadiek/interview-demo/internal/config"
	"github.com/chadiek/interview-demo/internal/dualstream"
	"github.com/chadiek/interview-demo/internal/interviewer"
	"github.com/chadiek/interview-demo/internal/session"
	"github.com/chadiek/interview-demo/internal/storage"
	"github.com/chadiek/interview-demo/internal/transcript"
	"github.com/chadiek/interview-demo/internal/tts"
	"github.com/chadiek/interview-demo/internal/ws"
)

// New wires the application and returns a configured Echo instance.
func New(cfg config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(200, "ok")
	})

	h := buildHandler(cfg)
	e.GET("/ws", func(c echo.Context) error {
		h.ServeWebSocket(c.Response(), c.Request())
		return nil
	})
	return e
}

func buildHandler(cfg config.Config) *ws.Handler {
	iv := interviewer.NewClient(cfg.CerebrasKey, cfg.CerebrasModelID)

	engineCfg := dualstream.Config{
		SpeechIdle:  time.Duration(cfg.SpeechIdleMs) * time.Millisecond,
		CodeIdle:    time.Duration(cfg.CodeIdleMs) * time.Millisecond,
		MinInterval: time.Duration(cfg.MinInvocationIntervalMs) * time.Millisecond,
	}

	h := ws.NewHandler(session.NewStore(), iv, engineCfg).
		WithReports(iv).
		WithStarterCode(interviewer.StarterFor).
		WithTranscription(func() ws.STT { return transcript.NewService(cfg.AssemblyAIKey) })

	if cfg.DeepgramKey != "" {
		var synth agent.Synthesizer = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel)
		h = h.WithTTS(synth)
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		store := storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		h = h.WithArchive(store).WithResumes(store)
	}
	return h
}
