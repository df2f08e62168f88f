package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

const drainTimeout = 3 * time.Second

var ErrSinkClosed = errors.New("sink closed")

// Speaker opens the default output device for one playback at a time.
type Speaker struct {
	gain   float64
	buffer time.Duration
}

// NewSpeaker returns a speaker with a linear gain (1 = unchanged).
func NewSpeaker(gain float64) *Speaker {
	return &Speaker{gain: gain, buffer: time.Second / 10}
}

// Open claims the output device at the given rate. The returned sink owns
// the device until Close.
func (s *Speaker) Open(sampleRate int) (*SpeakerSink, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(s.buffer)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}

	sink := &SpeakerSink{
		q:       &queue{frames: make(chan [][2]float64, 1)},
		drained: make(chan struct{}),
	}

	vol := &effects.Volume{
		Streamer: sink.q,
		Base:     2,
		Volume:   math.Log2(math.Max(s.gain, 1e-6)),
		Silent:   s.gain <= 0,
	}
	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		close(sink.drained)
	})))

	return sink, nil
}

// SpeakerSink feeds decoded frames to the device. Write blocks while the
// device is still playing the previous frame.
type SpeakerSink struct {
	q       *queue
	drained chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *SpeakerSink) Write(frame [][2]float64) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	s.q.frames <- append([][2]float64(nil), frame...)
	return nil
}

// Drain waits until everything written so far has been played.
func (s *SpeakerSink) Drain() {
	s.finish()
	select {
	case <-s.drained:
	case <-time.After(drainTimeout):
	}
}

// Close stops playback at once and releases the device.
func (s *SpeakerSink) Close() error {
	s.finish()
	speaker.Clear()
	speaker.Close()
	return nil
}

func (s *SpeakerSink) finish() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.q.frames)
	})
}

// queue is the streamer the speaker pulls from. It plays silence while the
// decoder is behind and ends once frames is closed and empty.
type queue struct {
	frames chan [][2]float64
	cur    [][2]float64
}

func (q *queue) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		if len(q.cur) == 0 {
			select {
			case f, ok := <-q.frames:
				if !ok {
					return filled, filled > 0
				}
				q.cur = f
				continue
			default:
				for i := filled; i < len(samples); i++ {
					samples[i] = [2]float64{}
				}
				return len(samples), true
			}
		}
		n := copy(samples[filled:], q.cur)
		q.cur = q.cur[n:]
		filled += n
	}
	return filled, true
}

func (q *queue) Err() error { return nil }
