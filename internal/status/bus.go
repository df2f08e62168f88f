package status

import (
	"context"
	"encoding/json"
	log "log/slog"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	KindText  = "text"
	KindFace  = "face"
	KindClear = "clear"
)

const (
	dialTimeout    = time.Second
	writeTimeout   = time.Second
	redialInterval = 5 * time.Second
	queueSize      = 16
)

// BusMessage is what a display shard receives for every status change.
type BusMessage struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Kind  string `json:"kind"`
	Line1 string `json:"line1,omitempty"`
	Line2 string `json:"line2,omitempty"`
}

// Bus publishes status changes to a remote display over a websocket.
//
// Render calls only enqueue; a single writer goroutine owns the connection.
// Messages are dropped while the queue is full or the hub is unreachable, and
// a dropped connection is redialled at most once per redial interval.
type Bus struct {
	url  string
	from string
	to   string

	dialer *websocket.Dialer
	redial time.Duration

	out     chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	// Owned by run.
	conn     *websocket.Conn
	lastDial time.Time
}

func NewBus(wsURL, from, to string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	b := newBus(u.String(), from, to)
	if err := b.dial(); err != nil {
		b.cancel()
		return nil, err
	}
	go b.run()

	log.Info("Connected to display bus", "url", wsURL)
	return b, nil
}

func newBus(wsURL, from, to string) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		url:  wsURL,
		from: from,
		to:   to,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			NetDialContext:   (&net.Dialer{Timeout: dialTimeout}).DialContext,
		},
		redial:  redialInterval,
		out:     make(chan []byte, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

func (b *Bus) Render(line1, line2 string) {
	b.send(BusMessage{Kind: KindText, Line1: line1, Line2: line2})
}

func (b *Bus) RenderFace(name string) {
	b.send(BusMessage{Kind: KindFace, Line1: name})
}

func (b *Bus) Clear() {
	b.send(BusMessage{Kind: KindClear})
}

// Close stops the writer and closes the connection. Queued messages that
// have not been written are dropped.
func (b *Bus) Close() error {
	b.cancel()
	<-b.stopped
	return nil
}

func (b *Bus) send(m BusMessage) {
	m.From = b.from
	m.To = b.to

	data, err := json.Marshal(m)
	if err != nil {
		log.Error("Failed to encode display message", "err", err)
		return
	}

	select {
	case b.out <- data:
	default:
		log.Debug("Display queue full, dropping message", "kind", m.Kind)
	}
}

func (b *Bus) run() {
	defer close(b.stopped)
	defer func() {
		if b.conn != nil {
			b.conn.Close()
			b.conn = nil
		}
	}()

	for {
		select {
		case <-b.ctx.Done():
			return
		case data := <-b.out:
			b.write(data)
		}
	}
}

func (b *Bus) write(data []byte) {
	if b.conn == nil {
		if time.Since(b.lastDial) < b.redial {
			return
		}
		if err := b.dial(); err != nil {
			log.Warn("Display bus unavailable", "url", b.url, "err", err)
			return
		}
		log.Info("Reconnected to display bus", "url", b.url)
	}

	_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("Failed to write display message", "err", err)
		b.conn.Close()
		b.conn = nil
	}
}

func (b *Bus) dial() error {
	b.lastDial = time.Now()
	conn, _, err := b.dialer.DialContext(b.ctx, b.url, nil)
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}
