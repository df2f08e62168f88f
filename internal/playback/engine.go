// Package playback plays synthesized speech through the output sink.
package playback

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"sync"

	"bmo/internal/speech"
	"bmo/pkg/audioconv"
)

// DefaultFrameSamples is how much decoded audio is handed to the sink between
// abort checks (~23ms at 22.05 kHz).
const DefaultFrameSamples = 512

// Sink is the output device, exclusively held between open and Close.
type Sink interface {
	Write(frame [][2]float64) error
	// Drain blocks until written audio has been played.
	Drain()
	Close() error
}

type OpenSinkFunc func(sampleRate int) (Sink, error)

type DecodeFunc func(r io.Reader, contentType string) (audioconv.Stream, error)

// Gate reports whether the device is powered.
type Gate interface {
	On() bool
}

type Engine struct {
	gate     Gate
	source   speech.Source
	openSink OpenSinkFunc
	decode   DecodeFunc
	frame    int

	mu   sync.Mutex
	busy bool
}

type Option func(*Engine)

func WithDecoder(d DecodeFunc) Option {
	return func(e *Engine) { e.decode = d }
}

func WithFrameSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.frame = n
		}
	}
}

func NewEngine(gate Gate, source speech.Source, openSink OpenSinkFunc, opts ...Option) *Engine {
	e := &Engine{
		gate:     gate,
		source:   source,
		openSink: openSink,
		decode:   audioconv.Open,
		frame:    DefaultFrameSamples,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Speak plays text and returns once it has finished, failed to start, or
// abort fired. It does nothing while the device is off or another playback
// holds the sink.
func (e *Engine) Speak(ctx context.Context, text string, abort func() bool) {
	if !e.gate.On() {
		return
	}
	if !e.acquire() {
		log.Warn("Playback already active, dropping phrase", "text", text)
		return
	}
	defer e.release()

	log.Info("Attempting to say", "text", text)

	clip, err := e.source.Open(ctx, text)
	if err != nil {
		log.Error("Speech source failed to start", "err", err)
		return
	}
	defer clip.Body.Close()

	dec, err := e.decode(clip.Body, clip.ContentType)
	if err != nil {
		log.Error("Speech decoder failed to start", "content_type", clip.ContentType, "err", err)
		return
	}
	defer dec.Close()

	sink, err := e.openSink(dec.SampleRate())
	if err != nil {
		log.Error("Output sink failed to open", "err", err)
		return
	}
	defer sink.Close()

	if e.play(ctx, dec, sink, abort) {
		sink.Drain()
		log.Info("TTS finished")
		return
	}
	log.Info("TTS interrupted")
}

// play copies frames until EOF (true) or an abort or error (false).
func (e *Engine) play(ctx context.Context, dec audioconv.Stream, sink Sink, abort func() bool) bool {
	buf := make([][2]float64, e.frame)
	for {
		if abort() || ctx.Err() != nil || !e.gate.On() {
			return false
		}

		n, err := dec.Read(buf)
		if n > 0 {
			if werr := sink.Write(buf[:n]); werr != nil {
				log.Error("Output sink write failed", "err", werr)
				return false
			}
		}
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			log.Error("Speech decode failed", "err", err)
			return false
		}
	}
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}
