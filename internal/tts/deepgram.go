package tts

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramClient synthesizes one reply into a single linear16 buffer. The
// interview client plays whole replies, so streamed chunks are collected
// rather than forwarded.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramClient{apiKey: apiKey, model: model, sampleRate: 48000, encoding: "linear16"}
}

// Synthesize returns the full audio for text, or an error. The stream is
// considered complete after a short idle window with no new chunks, bounded
// by an overall deadline.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram: api key missing")
	}
	if text == "" {
		return nil, nil
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var mu sync.Mutex
	var buf bytes.Buffer
	var lastRecv time.Time

	cb := &collectCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		mu.Lock()
		buf.Write(data)
		lastRecv = time.Now()
		mu.Unlock()
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		return nil, fmt.Errorf("deepgram: flush: %w", err)
	}

	const idleWindow = 400 * time.Millisecond
	deadline := time.Now().Add(12 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			mu.Lock()
			got := buf.Len() > 0
			idle := got && time.Since(lastRecv) > idleWindow
			mu.Unlock()
			if idle {
				mu.Lock()
				defer mu.Unlock()
				return buf.Bytes(), nil
			}
			if time.Now().After(deadline) {
				mu.Lock()
				defer mu.Unlock()
				if buf.Len() == 0 {
					return nil, fmt.Errorf("deepgram: no audio before deadline")
				}
				return buf.Bytes(), nil
			}
		}
	}
}

type collectCallback struct{ onBinary func([]byte) error }

func (c *collectCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (c *collectCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (c *collectCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (c *collectCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (c *collectCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (c *collectCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (c *collectCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (c *collectCallback) UnhandledEvent([]byte) error                    { return nil }
func (c *collectCallback) Binary(byMsg []byte) error {
	if c.onBinary != nil {
		return c.onBinary(byMsg)
	}
	return nil
}
