package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate   = 16000
	FrameSamples = 512 // 1024 bytes of 16-bit mono
)

// Init and Close bracket every use of the audio host API.
func Init() error {
	return portaudio.Initialize()
}

func Close() {
	portaudio.Terminate()
}

// Mic samples the default input device as 16-bit mono. The stream only
// exists between Start and Stop.
type Mic struct {
	mu     sync.Mutex
	rate   int
	frames int
	buf    []int16
	stream *portaudio.Stream
}

func NewMic(sampleRate, frameSamples int) *Mic {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	if frameSamples <= 0 {
		frameSamples = FrameSamples
	}
	return &Mic{rate: sampleRate, frames: frameSamples}
}

func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return errors.New("mic already started")
	}

	m.buf = make([]int16, m.frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.rate), len(m.buf), m.buf)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input: %w", err)
	}

	m.stream = stream
	return nil
}

// ReadFrame waits up to wait for one full frame. A frame that does not
// arrive in time yields zero samples and no error.
func (m *Mic) ReadFrame(buf []int16, wait time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return 0, errors.New("mic not started")
	}

	deadline := time.Now().Add(wait)
	for {
		avail, err := m.stream.AvailableToRead()
		if err != nil {
			return 0, err
		}
		if avail >= m.frames {
			break
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, err
	}
	return copy(buf, m.buf), nil
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	err := m.stream.Stop()
	if cerr := m.stream.Close(); err == nil {
		err = cerr
	}
	m.stream = nil
	m.buf = nil
	return err
}
