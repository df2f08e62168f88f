package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MaxResponseBytes bounds the reply text read from the inference service.
const MaxResponseBytes = 64 << 10

var errSessionClosed = errors.New("upload session closed")

// HTTPUploader posts raw PCM to the inference endpoint as a chunked body
// with no framing, ended by closing the body.
type HTTPUploader struct {
	client *http.Client
	url    string
}

func NewHTTPUploader(client *http.Client, url string) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{client: client, url: url}
}

func (u *HTTPUploader) Open(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithCancel(ctx)

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, pr)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	s := &httpSession{
		pw:     pw,
		cancel: cancel,
		done:   make(chan result, 1),
	}
	go s.do(u.client, req, pr)

	return s, nil
}

type result struct {
	text string
	err  error
}

type httpSession struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan result

	once sync.Once
	res  result
}

func (s *httpSession) do(client *http.Client, req *http.Request, pr *io.PipeReader) {
	resp, err := client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		s.done <- result{err: err}
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		s.done <- result{err: err}
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.done <- result{err: fmt.Errorf("inference service: %s: %s", resp.Status, strings.TrimSpace(string(body)))}
		return
	}
	s.done <- result{text: string(body)}
}

func (s *httpSession) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *httpSession) CloseSend() error {
	return s.pw.Close()
}

func (s *httpSession) Response() (string, error) {
	s.once.Do(func() { s.res = <-s.done })
	return s.res.text, s.res.err
}

func (s *httpSession) Close() error {
	s.pw.CloseWithError(errSessionClosed)
	s.cancel()
	s.once.Do(func() { s.res = <-s.done })
	return nil
}
