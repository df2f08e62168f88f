// Package config assembles the daemon's settings from flags, BMO_* environment
// variables and an optional env file. Flags win over the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"bmo/internal/speech"
)

const (
	TTSURL    = "url"
	TTSOpenAI = "openai"
)

type Config struct {
	EnvFile  string
	LogLevel string

	ServerURL string

	TTS         string
	TTSURL      string
	OpenAIModel string
	OpenAIVoice string
	OpenAIKey   string

	Proxy     string
	BusURL    string
	Socket    string
	RecordDir string

	Name     string
	Greeting string

	Debounce    time.Duration
	Poll        time.Duration
	JoinTimeout time.Duration
	Gain        float64
}

// envVars maps flag names to the environment variables that fill them when
// the flag is not given.
var envVars = []struct{ flag, env string }{
	{"log", "BMO_LOG"},
	{"server", "BMO_SERVER_URL"},
	{"tts", "BMO_TTS"},
	{"tts-url", "BMO_TTS_URL"},
	{"openai-model", "BMO_OPENAI_MODEL"},
	{"openai-voice", "BMO_OPENAI_VOICE"},
	{"proxy", "BMO_PROXY"},
	{"bus", "BMO_BUS_URL"},
	{"socket", "BMO_SOCKET"},
	{"record-dir", "BMO_RECORD_DIR"},
	{"name", "BMO_NAME"},
	{"greeting", "BMO_GREETING"},
	{"debounce", "BMO_DEBOUNCE"},
	{"poll", "BMO_POLL"},
	{"join-timeout", "BMO_JOIN_TIMEOUT"},
	{"gain", "BMO_GAIN"},
}

// Load parses args (without the program name), reads the env file and
// validates the result.
func Load(args []string) (*Config, error) {
	var c Config

	f := pflag.NewFlagSet("bmo", pflag.ContinueOnError)
	f.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	f.StringVarP(&c.LogLevel, "log", "l", "info", "Log level")
	f.StringVar(&c.ServerURL, "server", "http://localhost:5000/audio/transcribe", "Inference service upload URL")
	f.StringVar(&c.TTS, "tts", TTSURL, "Speech source (url, openai)")
	f.StringVar(&c.TTSURL, "tts-url", speech.DefaultURLTemplate, "Speech URL template, {text} is replaced")
	f.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini-tts", "OpenAI speech model")
	f.StringVar(&c.OpenAIVoice, "openai-voice", "alloy", "OpenAI speech voice")
	f.StringVarP(&c.Proxy, "proxy", "p", "", "Socks Proxy Address")
	f.StringVar(&c.BusURL, "bus", "", "Websocket URL of the display hub")
	f.StringVar(&c.Socket, "socket", "/tmp/bmo.sock", "Control socket path")
	f.StringVar(&c.RecordDir, "record-dir", "", "Directory for WAV dumps of every capture")
	f.StringVar(&c.Name, "name", "Hi Minh", "Label shown under the idle face")
	f.StringVar(&c.Greeting, "greeting", "Hello Minh. System online.", "Phrase spoken after boot")
	f.DurationVar(&c.Debounce, "debounce", 50*time.Millisecond, "Button debounce delay")
	f.DurationVar(&c.Poll, "poll", 10*time.Millisecond, "Control loop period")
	f.DurationVar(&c.JoinTimeout, "join-timeout", 0, "Give up joining the network after this long (0 waits forever)")
	f.Float64Var(&c.Gain, "gain", 2.0, "Speaker gain")

	if err := f.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", c.EnvFile, err)
	}

	for _, v := range envVars {
		if f.Changed(v.flag) {
			continue
		}
		val := os.Getenv(v.env)
		if val == "" {
			continue
		}
		if err := f.Set(v.flag, val); err != nil {
			return nil, fmt.Errorf("%s: %w", v.env, err)
		}
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level %q is invalid; valid values: debug, info, warn, error", c.LogLevel))
	}

	if err := checkURL(c.ServerURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	switch c.TTS {
	case TTSURL:
		if !strings.Contains(c.TTSURL, "{text}") {
			errs = append(errs, fmt.Errorf("tts-url %q has no {text} placeholder", c.TTSURL))
		}
	case TTSOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("tts openai requires OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("tts %q is invalid; valid values: url, openai", c.TTS))
	}

	if c.BusURL != "" {
		if err := checkURL(c.BusURL, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Errorf("bus: %w", err))
		}
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket path is empty"))
	}

	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("debounce %v must be positive", c.Debounce))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll %v must be positive", c.Poll))
	}
	if c.JoinTimeout < 0 {
		errs = append(errs, fmt.Errorf("join-timeout %v must not be negative", c.JoinTimeout))
	}
	if c.Gain <= 0 {
		errs = append(errs, fmt.Errorf("gain %v must be positive", c.Gain))
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%q must use one of %s", raw, strings.Join(schemes, ", "))
}
