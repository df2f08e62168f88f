package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	log "log/slog"

	"bmo/internal/audio"
	"bmo/internal/capture"
	"bmo/internal/config"
	"bmo/internal/device"
	"bmo/internal/ipc"
	"bmo/internal/netsession"
	"bmo/internal/playback"
	"bmo/internal/power"
	"bmo/internal/speech"
	"bmo/internal/status"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bmo:", err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	if err := run(cfg); err != nil {
		log.Error("BMO stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.Info("Booting up")

	sess, err := netsession.New(netsession.Config{Target: cfg.ServerURL, Proxy: cfg.Proxy})
	if err != nil {
		return fmt.Errorf("network session: %w", err)
	}

	log.Debug("Loaded network session", "proxy", cfg.Proxy)

	if err := audio.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer audio.Close()

	var surface status.Surface = status.Log{}
	if cfg.BusURL != "" {
		bus, err := status.NewBus(cfg.BusURL, "bmo", "display")
		if err != nil {
			return fmt.Errorf("connect to bus: %w", err)
		}
		defer bus.Close()
		surface = status.Tee{status.Log{}, bus}
	}

	var source speech.Source
	switch cfg.TTS {
	case config.TTSOpenAI:
		source = speech.NewOpenAI(cfg.OpenAIKey, sess.Client(), cfg.OpenAIModel, cfg.OpenAIVoice)
	default:
		source = speech.NewURL(sess.Client(), cfg.TTSURL)
	}

	log.Debug("Loaded speech source", "tts", cfg.TTS)

	capCfg := capture.Config{}
	if cfg.RecordDir != "" {
		dumps := audio.NewDumps(cfg.RecordDir, audio.SampleRate)
		capCfg.OpenTap = func() (capture.Tap, error) { return dumps.Open() }
		log.Info("Recording captures", "dir", cfg.RecordDir)
	}

	machine := power.NewMachine()
	mic := audio.NewMic(audio.SampleRate, audio.FrameSamples)
	spk := audio.NewSpeaker(cfg.Gain)

	streamer := capture.NewStreamer(mic, capture.NewHTTPUploader(sess.Client(), cfg.ServerURL), surface, capCfg)
	engine := playback.NewEngine(machine, source, func(sampleRate int) (playback.Sink, error) {
		return spk.Open(sampleRate)
	})

	panel := ipc.NewPanel(ipc.DefaultPressHold)
	orch := device.New(device.Deps{
		Power:   panel.Power,
		PTT:     &panel.PTT,
		Machine: machine,
		Network: sess,
		Surface: surface,
		Capture: streamer,
		Speaker: engine,
	}, device.Config{
		Name:        cfg.Name,
		Greeting:    cfg.Greeting,
		Debounce:    cfg.Debounce,
		Poll:        cfg.Poll,
		JoinTimeout: cfg.JoinTimeout,
	})

	log.Info("Boot up - successful", "socket", cfg.Socket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(ctx, cfg.Socket, func(msg ipc.ControlMessage) {
			if err := panel.Handle(msg); err != nil {
				log.Warn("Rejected control message", "err", err)
			}
		})
	})
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shut down")
	return nil
}
