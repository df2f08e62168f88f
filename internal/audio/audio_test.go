package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestQueue_StreamFillsSilenceAndEnds(t *testing.T) {
	q := &queue{frames: make(chan [][2]float64, 2)}
	q.frames <- [][2]float64{{0.1, 0.1}, {0.2, 0.2}, {0.3, 0.3}}

	buf := make([][2]float64, 2)
	if n, ok := q.Stream(buf); n != 2 || !ok || buf[1] != [2]float64{0.2, 0.2} {
		t.Fatalf("first Stream = %d, %v, %v", n, ok, buf)
	}

	// One queued sample left, then the decoder is behind: pad with silence.
	if n, ok := q.Stream(buf); n != 2 || !ok || buf[0] != [2]float64{0.3, 0.3} || buf[1] != [2]float64{} {
		t.Fatalf("padded Stream = %d, %v, %v", n, ok, buf)
	}

	close(q.frames)
	if n, ok := q.Stream(buf); n != 0 || ok {
		t.Fatalf("Stream after close = %d, %v; want 0, false", n, ok)
	}
}

func TestQueue_PartialTailBeforeEnd(t *testing.T) {
	q := &queue{frames: make(chan [][2]float64, 1)}
	q.frames <- [][2]float64{{0.5, 0.5}}
	close(q.frames)

	buf := make([][2]float64, 4)
	if n, ok := q.Stream(buf); n != 1 || !ok {
		t.Fatalf("tail Stream = %d, %v; want 1, true", n, ok)
	}
	if n, ok := q.Stream(buf); n != 0 || ok {
		t.Fatalf("final Stream = %d, %v; want 0, false", n, ok)
	}
}

func TestWAVDump_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	d := NewDumps(dir, SampleRate)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	w, err := d.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteFrame([]int16{1, -1, 300}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteFrame([]int16{-300}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if filepath.Base(w.Path()) != "capture-20240501T120000.000.wav" {
		t.Errorf("dump name = %s", filepath.Base(w.Path()))
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("dump is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	want := []int{1, -1, 300, -300}
	if len(buf.Data) != len(want) {
		t.Fatalf("samples = %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, buf.Data[i], want[i])
		}
	}
	if dec.SampleRate != SampleRate || dec.NumChans != 1 {
		t.Errorf("format = %d Hz x %d, want %d Hz mono", dec.SampleRate, dec.NumChans, SampleRate)
	}
}
