// Package mock provides fake decoders and sinks for [playback.Engine] tests.
package mock

import (
	"errors"
	"io"
	"sync"

	"bmo/internal/playback"
	"bmo/pkg/audioconv"
)

// Decoder yields Frames full frames of constant samples, then EOF.
type Decoder struct {
	Rate   int
	Frames int
	FailAt int // 1-based frame that fails; 0 never fails
	Served int
	Closed bool
}

func (d *Decoder) SampleRate() int { return d.Rate }

func (d *Decoder) Read(frame [][2]float64) (int, error) {
	if d.Served >= d.Frames {
		return 0, io.EOF
	}
	d.Served++
	if d.Served == d.FailAt {
		return 0, errors.New("corrupt frame")
	}
	for i := range frame {
		frame[i] = [2]float64{0.5, -0.5}
	}
	return len(frame), nil
}

func (d *Decoder) Close() error {
	d.Closed = true
	return nil
}

// Decoders hands out one fresh Decoder per call.
type Decoders struct {
	mu sync.Mutex

	Rate   int
	Frames int
	FailAt int
	Err    error

	Made []*Decoder
}

func (ds *Decoders) Decode(io.Reader, string) (audioconv.Stream, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.Err != nil {
		return nil, ds.Err
	}
	d := &Decoder{Rate: ds.Rate, Frames: ds.Frames, FailAt: ds.FailAt}
	ds.Made = append(ds.Made, d)
	return d, nil
}

// Sink counts frames and lifecycle calls.
type Sink struct {
	Rate    int
	Writes  int
	Samples int
	Drained bool
	Closed  bool
	// OnWrite runs after each write.
	OnWrite func()
}

func (s *Sink) Write(frame [][2]float64) error {
	if s.Closed {
		return errors.New("write after close")
	}
	s.Writes++
	s.Samples += len(frame)
	if s.OnWrite != nil {
		s.OnWrite()
	}
	return nil
}

func (s *Sink) Drain() { s.Drained = true }

func (s *Sink) Close() error {
	s.Closed = true
	return nil
}

// Sinks opens a fresh Sink per call.
type Sinks struct {
	mu sync.Mutex

	Err     error
	OnWrite func()

	Opened []*Sink
}

func (ss *Sinks) Open(sampleRate int) (playback.Sink, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.Err != nil {
		return nil, ss.Err
	}
	s := &Sink{Rate: sampleRate, OnWrite: ss.OnWrite}
	ss.Opened = append(ss.Opened, s)
	return s, nil
}

// Gate is a settable power gate.
type Gate struct {
	mu sync.Mutex
	on bool
}

func (g *Gate) On() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on
}

func (g *Gate) Set(on bool) {
	g.mu.Lock()
	g.on = on
	g.mu.Unlock()
}
