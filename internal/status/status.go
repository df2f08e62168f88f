// Package status is the device's display sink.
//
// Rendering never fails from the caller's point of view: implementations log
// transport problems and carry on.
package status

import (
	log "log/slog"
)

// Surface is the two-line status display plus the idle face.
type Surface interface {
	Render(line1, line2 string)
	RenderFace(name string)
	Clear()
}

// Log renders to the structured log. It is the default surface on hosts
// without a display.
type Log struct{}

func (Log) Render(line1, line2 string) {
	log.Info("Display", "line1", line1, "line2", line2)
}

func (Log) RenderFace(name string) {
	log.Info("Display face", "name", name)
}

func (Log) Clear() {
	log.Info("Display cleared")
}

// Tee fans every call out to all surfaces in order.
type Tee []Surface

func (t Tee) Render(line1, line2 string) {
	for _, s := range t {
		s.Render(line1, line2)
	}
}

func (t Tee) RenderFace(name string) {
	for _, s := range t {
		s.RenderFace(name)
	}
}

func (t Tee) Clear() {
	for _, s := range t {
		s.Clear()
	}
}
