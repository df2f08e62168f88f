// Package mock provides scripted [capture.Mic] and [capture.Uploader]
// implementations for tests.
package mock

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"bmo/internal/capture"
)

// Mic returns Frame (truncated to the caller's buffer) on every read.
// Reads listed in Misses return zero samples instead.
type Mic struct {
	mu sync.Mutex

	Frame    []int16
	Misses   map[int]bool
	StartErr error
	// ReadErr, when set, fails every read.
	ReadErr  error

	CallCountStart int
	CallCountStop  int
	Reads          int
	Running        bool
}

func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountStart++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Running = true
	return nil
}

func (m *Mic) ReadFrame(buf []int16, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Running {
		return 0, errors.New("mic not started")
	}
	m.Reads++
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.Misses[m.Reads] {
		return 0, nil
	}
	return copy(buf, m.Frame), nil
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountStop++
	m.Running = false
	return nil
}

// Session records the upload body.
type Session struct {
	mu sync.Mutex

	Body           bytes.Buffer
	Reply          string
	ReplyErr       error
	SendDone       bool
	CallCountClose int
	onWrite        func()
}

func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.SendDone {
		s.mu.Unlock()
		return 0, errors.New("write after CloseSend")
	}
	n, err := s.Body.Write(p)
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return n, err
}

func (s *Session) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendDone = true
	return nil
}

func (s *Session) Response() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Reply, s.ReplyErr
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// Closed reports whether the session was both ended and released.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SendDone && s.CallCountClose > 0
}

// Uploader hands out a fresh [Session] per Open, replying with Reply.
type Uploader struct {
	mu sync.Mutex

	Reply   string
	OpenErr error
	// OnWrite runs after every successful body write.
	OnWrite func()

	Sessions []*Session
}

func (u *Uploader) Open(context.Context) (capture.Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.OpenErr != nil {
		return nil, u.OpenErr
	}
	s := &Session{Reply: u.Reply, onWrite: u.OnWrite}
	u.Sessions = append(u.Sessions, s)
	return s, nil
}

// Last returns the most recently opened session, or nil.
func (u *Uploader) Last() *Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.Sessions) == 0 {
		return nil
	}
	return u.Sessions[len(u.Sessions)-1]
}
