// Package netsession provides the network the device talks through.
//
// Joining blocks until the inference host accepts a TCP connection. The
// only way out of a join that never succeeds is the caller's context.
package netsession

import (
	"context"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultRetry         = 100 * time.Millisecond
	DefaultHeaderTimeout = 120 * time.Second
)

// Provider is the network session capability.
type Provider interface {
	// Connect blocks until the network is usable or ctx ends.
	Connect(ctx context.Context) error
	Disconnect()
}

type Config struct {
	// Target is the URL whose host must be reachable to count as joined.
	Target string
	// Proxy is an optional SOCKS5 address all traffic is routed through.
	Proxy string
	Retry time.Duration
	// HeaderTimeout bounds the wait for response headers once a request body
	// has been fully sent. Nothing bounds the exchange as a whole: an upload
	// lasts as long as the button is held and speech may stream for minutes.
	HeaderTimeout time.Duration
}

// Session joins by probing the target and hands out the HTTP client used
// for uploads and speech.
type Session struct {
	addr   string
	retry  time.Duration
	dialer proxy.ContextDialer
	client *http.Client
	tr     *http.Transport

	mu     sync.Mutex
	joined bool
}

func New(cfg Config) (*Session, error) {
	addr, err := hostPort(cfg.Target)
	if err != nil {
		return nil, err
	}

	dialer, err := newDialer(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("socks proxy %q: %w", cfg.Proxy, err)
	}

	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = DefaultHeaderTimeout
	}

	tr := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
	}

	return &Session{
		addr:   addr,
		retry:  cfg.Retry,
		dialer: dialer,
		tr:     tr,
		client: &http.Client{Transport: tr},
	}, nil
}

// Client is shared by every request the device makes.
func (s *Session) Client() *http.Client { return s.client }

func (s *Session) Connect(ctx context.Context) error {
	attempts := 0
	for {
		attempts++
		if err := s.probe(ctx); err == nil {
			s.mu.Lock()
			s.joined = true
			s.mu.Unlock()
			log.Info("Network joined", "addr", s.addr, "attempts", attempts)
			return nil
		} else if attempts == 1 || attempts%50 == 0 {
			log.Debug("Waiting for network", "addr", s.addr, "attempts", attempts, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retry):
		}
	}
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tr.CloseIdleConnections()
	if s.joined {
		log.Info("Network released", "addr", s.addr)
	}
	s.joined = false
}

func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *Session) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func newDialer(socksAddr string) (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: 5 * time.Second}
	if socksAddr == "" {
		return direct, nil
	}

	d, err := proxy.SOCKS5("tcp", socksAddr, nil, direct)
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("dialer %T does not support contexts", d)
	}
	return cd, nil
}

func hostPort(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("target %q: %w", target, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target %q has no host", target)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" || u.Scheme == "wss" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
