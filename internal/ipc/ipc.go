// Package ipc drives the virtual power and push-to-talk buttons over a unix
// socket. Each connection carries one JSON ControlMessage.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"

	"bmo/internal/button"
)

const (
	DefaultSocketPath = "/tmp/bmo.sock"
	// DefaultPressHold is the shortest time a "power" click keeps the button
	// down. It must outlast the debounce delay.
	DefaultPressHold = 150 * time.Millisecond
)

const (
	CmdPower = "power"
	CmdPTT   = "ptt"

	ActionDown = "down"
	ActionUp   = "up"
	ActionHold = "hold"
)

type ControlMessage struct {
	Cmd    string        `json:"cmd"`
	Action string        `json:"action,omitempty"`
	Hold   time.Duration `json:"hold,omitempty"`
}

// Serve accepts connections on path until ctx ends.
func Serve(ctx context.Context, path string, handler func(ControlMessage)) error {
	os.Remove(path)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer os.Remove(path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Control socket accept failed", "err", err)
			continue
		}
		go handleConn(conn, handler)
	}
}

func handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	var msg ControlMessage
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		return
	}
	handler(msg)
}

func SendCommand(path string, msg ControlMessage) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	return enc.Encode(msg)
}

// Panel holds the two virtual buttons the control loop polls. A power click
// is latched until the loop has read it, so clicks that land while the loop
// is blocked are not lost.
type Panel struct {
	Power *button.Click
	PTT   button.Level
}

func NewPanel(pressHold time.Duration) *Panel {
	if pressHold <= 0 {
		pressHold = DefaultPressHold
	}
	return &Panel{Power: button.NewClick(pressHold)}
}

// Handle applies one control message to the buttons. It never blocks; a
// timed PTT release happens on its own goroutine.
func (p *Panel) Handle(msg ControlMessage) error {
	switch msg.Cmd {
	case CmdPower:
		p.Power.Press()

	case CmdPTT:
		switch msg.Action {
		case ActionDown:
			p.PTT.Set(true)
		case ActionUp:
			p.PTT.Set(false)
		case ActionHold:
			if msg.Hold <= 0 {
				return fmt.Errorf("ptt hold needs a positive duration, got %v", msg.Hold)
			}
			p.PTT.Set(true)
			time.AfterFunc(msg.Hold, func() { p.PTT.Set(false) })
		default:
			return fmt.Errorf("unknown ptt action %q", msg.Action)
		}

	default:
		return fmt.Errorf("unknown command %q", msg.Cmd)
	}

	log.Debug("Control message applied", "cmd", msg.Cmd, "action", msg.Action, "hold", msg.Hold)
	return nil
}
