// Package mock provides a recording [status.Surface] for tests.
package mock

import (
	"fmt"
	"sync"
)

// Surface records every call as a short string: "text:<l1>|<l2>",
// "face:<name>" or "clear".
type Surface struct {
	mu    sync.Mutex
	Calls []string
}

func (s *Surface) Render(line1, line2 string) {
	s.record(fmt.Sprintf("text:%s|%s", line1, line2))
}

func (s *Surface) RenderFace(name string) {
	s.record("face:" + name)
}

func (s *Surface) Clear() {
	s.record("clear")
}

// Snapshot returns a copy of the recorded calls.
func (s *Surface) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}

// Last returns the most recent call or "" when nothing was recorded.
func (s *Surface) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Calls) == 0 {
		return ""
	}
	return s.Calls[len(s.Calls)-1]
}

func (s *Surface) record(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, c)
}
