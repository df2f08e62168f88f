// Package capture streams microphone audio to the inference service while
// the push-to-talk gate is held.
package capture

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"time"

	"bmo/internal/status"
	"bmo/pkg/audioconv"
)

const (
	DefaultFrameSamples = 512
	DefaultReadWait     = 100 * time.Millisecond
)

// Mic is the microphone sampling capability. Only one capture holds it at
// a time.
type Mic interface {
	Start() error
	// ReadFrame waits at most wait for samples. Zero samples with a nil
	// error is a timeout.
	ReadFrame(buf []int16, wait time.Duration) (int, error)
	Stop() error
}

// Session is one outbound upload.
type Session interface {
	io.Writer
	// CloseSend ends the request body.
	CloseSend() error
	// Response blocks until the whole reply body has been read.
	Response() (string, error)
	// Close releases the connection. It is safe after Response and safe to
	// call more than once.
	Close() error
}

type Uploader interface {
	Open(ctx context.Context) (Session, error)
}

// Tap receives a copy of every frame that was uploaded.
type Tap interface {
	WriteFrame(frame []int16) error
	Close() error
}

type Config struct {
	FrameSamples int
	ReadWait     time.Duration
	// OpenTap, when set, is called once per capture.
	OpenTap func() (Tap, error)
}

// Streamer runs one capture at a time.
type Streamer struct {
	mic     Mic
	up      Uploader
	surface status.Surface
	cfg     Config
}

func NewStreamer(mic Mic, up Uploader, surface status.Surface, cfg Config) *Streamer {
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = DefaultFrameSamples
	}
	if cfg.ReadWait <= 0 {
		cfg.ReadWait = DefaultReadWait
	}
	return &Streamer{mic: mic, up: up, surface: surface, cfg: cfg}
}

// Run streams frames while gate holds and abort has not fired, then returns
// the service's reply. An empty reply is not an error.
//
// Abort truncates the upload: the body simply ends after the last whole
// frame that was written.
func (s *Streamer) Run(ctx context.Context, gate, abort func() bool) (string, error) {
	if err := s.mic.Start(); err != nil {
		return "", fmt.Errorf("start mic: %w", err)
	}
	micStopped := false
	stopMic := func() {
		if micStopped {
			return
		}
		micStopped = true
		if err := s.mic.Stop(); err != nil {
			log.Warn("Failed to stop mic", "err", err)
		}
	}
	defer stopMic()

	s.surface.Render("Listening...", "(Hold PTT button)")
	log.Info("Listening")

	sess, err := s.up.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer sess.Close()

	tap := s.openTap()

	frames, aborted := s.stream(ctx, sess, tap, gate, abort)

	stopMic()
	if tap != nil {
		if err := tap.Close(); err != nil {
			log.Warn("Failed to close capture dump", "err", err)
		}
	}

	log.Info("Stopped recording", "frames", frames, "aborted", aborted)

	if err := sess.CloseSend(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}

	s.surface.Render("Sending...", "Please wait...")

	text, err := sess.Response()
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	log.Info("Server said", "text", text)
	return text, nil
}

func (s *Streamer) stream(ctx context.Context, sess Session, tap Tap, gate, abort func() bool) (frames int, aborted bool) {
	buf := make([]int16, s.cfg.FrameSamples)
	wire := make([]byte, 0, 2*s.cfg.FrameSamples)

	for gate() {
		if abort() || ctx.Err() != nil {
			return frames, true
		}

		n, err := s.mic.ReadFrame(buf, s.cfg.ReadWait)
		if err != nil {
			log.Debug("Mic read failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.ReadWait):
			}
			continue
		}
		if n == 0 {
			continue
		}

		wire = audioconv.AppendPCM16LE(wire[:0], buf[:n])
		if _, err := sess.Write(wire); err != nil {
			log.Error("Upload write failed", "err", err)
			return frames, false
		}
		frames++

		if tap != nil {
			if err := tap.WriteFrame(buf[:n]); err != nil {
				log.Warn("Capture dump write failed", "err", err)
			}
		}
	}
	return frames, false
}

func (s *Streamer) openTap() Tap {
	if s.cfg.OpenTap == nil {
		return nil
	}
	tap, err := s.cfg.OpenTap()
	if err != nil {
		log.Warn("Capture dump disabled for this capture", "err", err)
		return nil
	}
	return tap
}
