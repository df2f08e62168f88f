// Package audioconv decodes compressed speech progressively into stereo
// float frames and encodes captured samples for the wire.
package audioconv

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Stream yields decoded audio one frame at a time.
type Stream interface {
	SampleRate() int
	// Read fills frame with stereo samples in [-1, 1]. It returns the number
	// of samples written and io.EOF once the source is exhausted.
	Read(frame [][2]float64) (int, error)
	Close() error
}

type kind int

const (
	kindMP3 kind = iota
	kindVorbis
)

// Open picks a decoder from the content type, falling back to sniffing the
// first bytes of r.
func Open(r io.Reader, contentType string) (Stream, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(4)

	switch kindOf(contentType, magic) {
	case kindVorbis:
		return NewVorbis(br)
	default:
		return NewMP3(br)
	}
}

func kindOf(contentType string, magic []byte) kind {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "audio/ogg", "application/ogg", "audio/vorbis":
		return kindVorbis
	case "audio/mpeg", "audio/mp3":
		return kindMP3
	}
	if string(magic) == "OggS" {
		return kindVorbis
	}
	return kindMP3
}

type mp3Stream struct {
	pcm io.Reader // 16-bit little-endian stereo
	sr  int
	buf []byte
}

// NewMP3 starts decoding an MP3 stream. Only the first frame header is read
// up front.
func NewMP3(r io.Reader) (Stream, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return &mp3Stream{pcm: dec, sr: sr}, nil
}

func (s *mp3Stream) SampleRate() int { return s.sr }

func (s *mp3Stream) Read(frame [][2]float64) (int, error) {
	if s.pcm == nil {
		return 0, io.EOF
	}

	need := len(frame) * 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]

	n, err := io.ReadFull(s.pcm, b)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	samples := n / 4
	for i := 0; i < samples; i++ {
		l := int16(binary.LittleEndian.Uint16(b[i*4:]))
		r := int16(binary.LittleEndian.Uint16(b[i*4+2:]))
		frame[i][0] = float64(l) / 32768
		frame[i][1] = float64(r) / 32768
	}
	return samples, err
}

func (s *mp3Stream) Close() error {
	s.pcm = nil
	s.buf = nil
	return nil
}

type vorbisStream struct {
	r   *oggvorbis.Reader
	ch  int
	buf []float32
}

// NewVorbis starts decoding an Ogg/Vorbis stream.
func NewVorbis(r io.Reader) (Stream, error) {
	vr, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ogg/vorbis: %w", err)
	}
	if vr.Channels() <= 0 || vr.SampleRate() <= 0 {
		return nil, errors.New("ogg/vorbis: invalid stream")
	}
	return &vorbisStream{r: vr, ch: vr.Channels()}, nil
}

func (s *vorbisStream) SampleRate() int { return s.r.SampleRate() }

func (s *vorbisStream) Read(frame [][2]float64) (int, error) {
	need := len(frame) * s.ch
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}

	n, err := s.r.Read(s.buf[:need])
	return interleavedToStereo(frame, s.buf[:n], s.ch), err
}

func (s *vorbisStream) Close() error {
	s.buf = nil
	return nil
}

// interleavedToStereo copies whole interleaved sample groups into frame.
// Mono is duplicated to both sides; channels past the second are dropped.
func interleavedToStereo(frame [][2]float64, in []float32, channels int) int {
	if channels <= 0 {
		return 0
	}
	samples := len(in) / channels
	for i := 0; i < samples; i++ {
		base := i * channels
		l := float64(in[base])
		r := l
		if channels > 1 {
			r = float64(in[base+1])
		}
		frame[i][0] = clamp(l, -1, 1)
		frame[i][1] = clamp(r, -1, 1)
	}
	return samples
}

// AppendPCM16LE appends samples to dst as little-endian signed 16-bit PCM,
// the upload wire format.
func AppendPCM16LE(dst []byte, samples []int16) []byte {
	for _, v := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}
	return dst
}

// Int16ToInt widens samples for encoders that take []int.
func Int16ToInt(samples []int16) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		out[i] = int(v)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
