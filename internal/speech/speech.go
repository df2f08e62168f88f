// Package speech opens synthesized-voice audio streams for reply text.
package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultURLTemplate is the translate TTS endpoint; {text} is replaced by the
// percent-encoded phrase.
const DefaultURLTemplate = "http://translate.google.com/translate_tts?ie=UTF-8&q={text}&tl=en&client=tw-ob"

// Clip is an open audio download. The caller must Close Body.
type Clip struct {
	Body        io.ReadCloser
	ContentType string
}

type Source interface {
	Open(ctx context.Context, text string) (*Clip, error)
}

// URL fetches speech with a GET to a templated endpoint.
type URL struct {
	client   *http.Client
	template string
}

func NewURL(client *http.Client, template string) *URL {
	if client == nil {
		client = http.DefaultClient
	}
	if template == "" {
		template = DefaultURLTemplate
	}
	return &URL{client: client, template: template}
}

// Build renders the request URL for text. Spaces are sent as %20.
func (u *URL) Build(text string) string {
	q := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return strings.ReplaceAll(u.template, "{text}", q)
}

func (u *URL) Open(ctx context.Context, text string) (*Clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Build(text), nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("tts: %s", resp.Status)
	}

	return &Clip{Body: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}
