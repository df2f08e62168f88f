package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bmo/internal/button"
	"bmo/internal/capture"
	cmock "bmo/internal/capture/mock"
	"bmo/internal/device"
	nmock "bmo/internal/netsession/mock"
	"bmo/internal/playback"
	pmock "bmo/internal/playback/mock"
	"bmo/internal/power"
	spmock "bmo/internal/speech/mock"
	stmock "bmo/internal/status/mock"
)

const frameBytes = 2 * capture.DefaultFrameSamples

// clock moves forward by step on every read.
type clock struct {
	t    time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type rig struct {
	power   *button.Level
	ptt     *button.Level
	machine *power.Machine
	net     *nmock.Provider
	surface *stmock.Surface
	mic     *cmock.Mic
	up      *cmock.Uploader
	voice   *spmock.Source
	sinks   *pmock.Sinks
	decs    *pmock.Decoders
	o       *device.Orchestrator
}

func newRig(cfg device.Config) *rig {
	r := &rig{
		power:   &button.Level{},
		ptt:     &button.Level{},
		machine: power.NewMachine(),
		net:     &nmock.Provider{},
		surface: &stmock.Surface{},
		mic:     &cmock.Mic{Frame: make([]int16, capture.DefaultFrameSamples)},
		up:      &cmock.Uploader{},
		voice:   &spmock.Source{Body: "mp3", ContentType: "audio/mpeg"},
		sinks:   &pmock.Sinks{},
		decs:    &pmock.Decoders{Rate: 24000, Frames: 3},
	}

	engine := playback.NewEngine(r.machine, r.voice, r.sinks.Open, playback.WithDecoder(r.decs.Decode))
	streamer := capture.NewStreamer(r.mic, r.up, r.surface, capture.Config{})

	clk := &clock{t: time.Unix(1700000000, 0), step: 20 * time.Millisecond}
	cfg.Now = clk.Now

	r.o = device.New(device.Deps{
		Power:   r.power,
		PTT:     r.ptt,
		Machine: r.machine,
		Network: r.net,
		Surface: r.surface,
		Capture: streamer,
		Speaker: engine,
	}, cfg)
	return r
}

// click presses and releases the power button, ticking until the release
// has been debounced.
func (r *rig) click(ctx context.Context) {
	r.power.Set(true)
	r.o.Tick(ctx)
	r.power.Set(false)
	r.idle(ctx, 10)
}

func (r *rig) idle(ctx context.Context, ticks int) {
	for range ticks {
		r.o.Tick(ctx)
	}
}

func (r *rig) bootUp(t *testing.T) {
	t.Helper()
	r.click(context.Background())
	if !r.machine.On() {
		t.Fatal("device did not turn on")
	}
}

func TestOrchestrator_PowerOnBoots(t *testing.T) {
	r := newRig(device.Config{})

	r.bootUp(t)

	calls := r.surface.Snapshot()
	if len(calls) == 0 || calls[0] != "text:Connecting...|" {
		t.Fatalf("first surface call = %v, want Connecting", calls)
	}
	if last := r.surface.Last(); last != "face:"+device.DefaultName {
		t.Errorf("last surface call = %q, want idle face", last)
	}
	if got := r.voice.Spoken(); len(got) != 1 || got[0] != device.DefaultGreeting {
		t.Errorf("spoken = %v, want greeting once", got)
	}
	if c, d := r.net.Counts(); c != 1 || d != 0 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 0", c, d)
	}
}

func TestOrchestrator_HoldToTalk(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{})
	r.bootUp(t)

	// 62 frames of 512 samples is just under two seconds at 16 kHz.
	const frames = 62
	writes := 0
	r.up.Reply = "turn on the lights"
	r.up.OnWrite = func() {
		writes++
		if writes == frames {
			r.ptt.Set(false)
		}
	}

	r.ptt.Set(true)
	r.o.Tick(ctx)

	sess := r.up.Last()
	if sess == nil {
		t.Fatal("no upload session opened")
	}
	if got := sess.Body.Len(); got != frames*frameBytes {
		t.Errorf("uploaded %d bytes, want %d", got, frames*frameBytes)
	}
	if !sess.Closed() {
		t.Error("upload session not closed")
	}
	if r.mic.Running {
		t.Error("mic still running")
	}

	spoken := r.voice.Spoken()
	if len(spoken) != 2 || spoken[1] != "turn on the lights" {
		t.Errorf("spoken = %v, want greeting then reply", spoken)
	}
	if !r.machine.On() {
		t.Error("device turned off")
	}
	if last := r.surface.Last(); last != "face:"+device.DefaultName {
		t.Errorf("last surface call = %q, want idle face", last)
	}
}

func TestOrchestrator_PowerPressAbortsCapture(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{})
	r.bootUp(t)

	writes := 0
	r.up.Reply = "turn on the lights"
	r.up.OnWrite = func() {
		writes++
		if writes == 3 {
			r.power.Set(true)
		}
	}

	r.ptt.Set(true)
	r.o.Tick(ctx)

	if r.machine.On() {
		t.Fatal("device still on after power press")
	}
	sess := r.up.Last()
	if got := sess.Body.Len(); got != 3*frameBytes {
		t.Errorf("uploaded %d bytes, want %d", got, 3*frameBytes)
	}
	if !sess.Closed() {
		t.Error("upload session not closed after abort")
	}
	if got := r.voice.Spoken(); len(got) != 1 {
		t.Errorf("spoken = %v, want only the greeting", got)
	}
	if _, d := r.net.Counts(); d != 1 {
		t.Errorf("disconnects = %d, want 1", d)
	}
	if last := r.surface.Last(); last != "clear" {
		t.Errorf("last surface call = %q, want clear", last)
	}
}

func TestOrchestrator_PowerPressAbortsGreeting(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{})
	r.decs.Frames = 50

	// Release the boot press on the first greeting frame and press again a
	// few frames later, while the greeting is still playing.
	writes := 0
	r.sinks.OnWrite = func() {
		writes++
		switch writes {
		case 1:
			r.power.Set(false)
		case 4:
			r.power.Set(true)
		}
	}

	r.power.Set(true)
	r.o.Tick(ctx)

	if r.machine.On() {
		t.Fatal("device still on after power press during greeting")
	}
	if len(r.sinks.Opened) != 1 {
		t.Fatalf("sinks opened = %d, want 1", len(r.sinks.Opened))
	}
	sink := r.sinks.Opened[0]
	if sink.Writes >= 50 || sink.Drained {
		t.Errorf("greeting not aborted: writes=%d drained=%v", sink.Writes, sink.Drained)
	}
	if !sink.Closed {
		t.Error("sink not released after abort")
	}
	for _, c := range r.surface.Snapshot() {
		if c == "face:"+device.DefaultName {
			t.Error("idle face rendered after an aborted boot")
		}
	}
	if c, d := r.net.Counts(); c != 1 || d != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 1", c, d)
	}
	if last := r.surface.Last(); last != "clear" {
		t.Errorf("last surface call = %q, want clear", last)
	}
	if got := r.voice.Spoken(); len(got) != 1 || got[0] != device.DefaultGreeting {
		t.Errorf("spoken = %v, want only the greeting", got)
	}
}

func TestOrchestrator_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *rig)
	}{
		{
			name:  "empty reply",
			setup: func(r *rig) { r.up.Reply = "" },
		},
		{
			name:  "upload fails",
			setup: func(r *rig) { r.up.OpenErr = errors.New("connection refused") },
		},
		{
			name:  "mic fails",
			setup: func(r *rig) { r.mic.StartErr = errors.New("no device") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r := newRig(device.Config{})
			r.bootUp(t)
			tt.setup(r)

			r.up.OnWrite = func() { r.ptt.Set(false) }
			r.ptt.Set(true)
			r.o.Tick(ctx)
			r.ptt.Set(false)

			spoken := r.voice.Spoken()
			if len(spoken) != 2 || spoken[1] != "I did not understand that" {
				t.Errorf("spoken = %v, want fallback phrase", spoken)
			}
		})
	}
}

func TestOrchestrator_PTTIgnoredWhileOff(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{})

	r.ptt.Set(true)
	r.idle(ctx, 5)

	if r.mic.CallCountStart != 0 || len(r.up.Sessions) != 0 {
		t.Errorf("capture ran while off: starts=%d sessions=%d", r.mic.CallCountStart, len(r.up.Sessions))
	}
	if len(r.voice.Spoken()) != 0 {
		t.Errorf("spoke while off: %v", r.voice.Spoken())
	}
}

func TestOrchestrator_ClickToggles(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{})

	for i, want := range []bool{true, false, true, false} {
		r.click(ctx)
		if r.machine.On() != want {
			t.Fatalf("after click %d on=%v, want %v", i+1, r.machine.On(), want)
		}
	}
	if c, d := r.net.Counts(); c != 2 || d != 2 {
		t.Errorf("connects=%d disconnects=%d, want 2 and 2", c, d)
	}
	if last := r.surface.Last(); last != "clear" {
		t.Errorf("last surface call = %q, want clear", last)
	}
}

func TestOrchestrator_JoinTimeoutRollsBack(t *testing.T) {
	ctx := context.Background()
	r := newRig(device.Config{JoinTimeout: 20 * time.Millisecond})
	r.net.Block = true

	r.click(ctx)

	if r.machine.On() {
		t.Fatal("device on without a network")
	}
	if got := r.machine.State(); got != power.Off {
		t.Errorf("state = %v, want Off", got)
	}
	if last := r.surface.Last(); last != "text:Network failed|Press power to retry" {
		t.Errorf("last surface call = %q", last)
	}
	if len(r.voice.Spoken()) != 0 {
		t.Errorf("spoke without a network: %v", r.voice.Spoken())
	}

	r.net.Block = false
	r.click(ctx)
	if !r.machine.On() {
		t.Error("retry after join failure did not boot")
	}
}

func TestOrchestrator_RunStopsOnCancel(t *testing.T) {
	r := newRig(device.Config{Poll: time.Millisecond})
	r.power.Set(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.o.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !r.machine.On() {
		select {
		case <-deadline:
			t.Fatal("device never booted")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, d := r.net.Counts(); d != 1 {
		t.Errorf("disconnects = %d, want 1 on exit", d)
	}
}
