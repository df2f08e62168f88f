// Package mock provides a recording [speech.Source] for tests.
package mock

import (
	"context"
	"io"
	"strings"
	"sync"

	"bmo/internal/speech"
)

// Source records every requested phrase and serves Body as the clip.
type Source struct {
	mu sync.Mutex

	Body        string
	ContentType string
	OpenErr     error

	Texts []string
	// Clips holds every body handed out, to check that each was closed.
	Clips []*Body
}

func (s *Source) Open(_ context.Context, text string) (*speech.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Texts = append(s.Texts, text)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	b := &Body{Reader: strings.NewReader(s.Body)}
	s.Clips = append(s.Clips, b)
	return &speech.Clip{Body: b, ContentType: s.ContentType}, nil
}

// Spoken returns a copy of the phrases requested so far.
func (s *Source) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Texts...)
}

// Body is a clip body that remembers being closed.
type Body struct {
	io.Reader
	Closed bool
}

func (b *Body) Close() error {
	b.Closed = true
	return nil
}
