package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"bmo/pkg/audioconv"
)

// Dumps writes one WAV file per capture into a directory.
type Dumps struct {
	dir  string
	rate int
	now  func() time.Time
}

func NewDumps(dir string, sampleRate int) *Dumps {
	return &Dumps{dir: dir, rate: sampleRate, now: time.Now}
}

func (d *Dumps) Open() (*WAVDump, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}

	name := filepath.Join(d.dir, "capture-"+d.now().Format("20060102T150405.000")+".wav")
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create dump: %w", err)
	}

	return &WAVDump{
		f:   f,
		enc: wav.NewEncoder(f, d.rate, 16, 1, 1),
		format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  d.rate,
		},
	}, nil
}

// WAVDump mirrors the samples of one upload into a 16-bit mono WAV file.
type WAVDump struct {
	f      *os.File
	enc    *wav.Encoder
	format *goaudio.Format
}

func (w *WAVDump) Path() string { return w.f.Name() }

func (w *WAVDump) WriteFrame(frame []int16) error {
	return w.enc.Write(&goaudio.IntBuffer{
		Format:         w.format,
		Data:           audioconv.Int16ToInt(frame),
		SourceBitDepth: 16,
	})
}

func (w *WAVDump) Close() error {
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
