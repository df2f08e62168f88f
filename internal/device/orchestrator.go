// Package device runs the control loop that ties the two buttons to the
// power lifecycle, capture and playback.
//
// Everything here runs on one goroutine. Capture and playback are only ever
// interrupted through the abort predicate they poll, which samples the power
// button.
package device

import (
	"context"
	log "log/slog"
	"time"

	"bmo/internal/button"
	"bmo/internal/netsession"
	"bmo/internal/power"
	"bmo/internal/status"
)

const (
	DefaultName     = "Hi Minh"
	DefaultGreeting = "Hello Minh. System online."
	DefaultFallback = "I did not understand that"
	DefaultPoll     = 10 * time.Millisecond
)

type Capturer interface {
	Run(ctx context.Context, gate, abort func() bool) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string, abort func() bool)
}

type Deps struct {
	Power   button.Pin
	PTT     button.Pin
	Machine *power.Machine
	Network netsession.Provider
	Surface status.Surface
	Capture Capturer
	Speaker Speaker
}

type Config struct {
	Name     string
	Greeting string
	Fallback string
	Debounce time.Duration
	Poll     time.Duration
	// JoinTimeout bounds the network join on boot. Zero waits forever.
	JoinTimeout time.Duration
	Now         func() time.Time
}

type Orchestrator struct {
	Deps
	cfg     Config
	deb     *button.Debouncer
	pending []power.Transition
}

func New(d Deps, cfg Config) *Orchestrator {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.Fallback == "" {
		cfg.Fallback = DefaultFallback
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if d.Machine == nil {
		d.Machine = power.NewMachine()
	}

	return &Orchestrator{
		Deps: d,
		cfg:  cfg,
		deb:  button.NewDebouncer(cfg.Debounce),
	}
}

// Run ticks until ctx ends. On exit a powered device releases the network
// and blanks the display.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info("BMO is OFF. Press power to start.")
	o.Surface.Clear()

	ticker := time.NewTicker(o.cfg.Poll)
	defer ticker.Stop()

	for {
		o.Tick(ctx)

		select {
		case <-ctx.Done():
			if o.Machine.On() {
				o.Network.Disconnect()
				o.Surface.Clear()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one pass of the control loop.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.pollPower()
	o.applyPending(ctx)

	if !o.Machine.On() || !o.PTT.Pressed() {
		return
	}

	o.converse(ctx)
	o.applyPending(ctx)
}

func (o *Orchestrator) converse(ctx context.Context) {
	text, err := o.Capture.Run(ctx, o.PTT.Pressed, o.abort)
	if err != nil {
		log.Error("Capture failed", "err", err)
	}
	if text == "" {
		text = o.cfg.Fallback
	}

	o.Speaker.Speak(ctx, text, o.abort)

	if o.Machine.On() {
		o.Surface.RenderFace(o.cfg.Name)
	} else {
		o.Surface.Clear()
	}
}

// pollPower samples the power button once and queues the transition a
// debounced press produces.
func (o *Orchestrator) pollPower() bool {
	e, ok := o.deb.Sample(o.Power.Pressed(), o.cfg.Now())
	if !ok {
		return false
	}

	tr, ok := o.Machine.HandleEdge(e)
	if !ok {
		return false
	}

	log.Info("Power button clicked", "from", tr.From, "to", tr.To)
	o.pending = append(o.pending, tr)
	return true
}

// abort is polled by capture and playback.
func (o *Orchestrator) abort() bool {
	if o.pollPower() {
		return true
	}
	return !o.Machine.On()
}

func (o *Orchestrator) applyPending(ctx context.Context) {
	for len(o.pending) > 0 {
		tr := o.pending[0]
		o.pending = o.pending[1:]

		if tr.Boot() {
			o.boot(ctx, tr)
		} else {
			o.shutdown()
		}
	}
}

func (o *Orchestrator) boot(ctx context.Context, tr power.Transition) {
	log.Info("Turning ON")
	o.Surface.Render("Connecting...", "")

	joinCtx := ctx
	if o.cfg.JoinTimeout > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(ctx, o.cfg.JoinTimeout)
		defer cancel()
	}

	if err := o.Network.Connect(joinCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("Network join failed", "timeout", o.cfg.JoinTimeout, "err", err)
		o.Surface.Render("Network failed", "Press power to retry")
		o.Machine.Rollback(tr)
		return
	}

	o.Surface.Render("Online", "")
	o.Speaker.Speak(ctx, o.cfg.Greeting, o.abort)

	if o.Machine.On() {
		o.Surface.RenderFace(o.cfg.Name)
	}
}

func (o *Orchestrator) shutdown() {
	log.Info("Turning OFF")
	o.Network.Disconnect()
	o.Surface.Clear()
}
