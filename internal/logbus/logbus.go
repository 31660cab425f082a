package logbus

/*
Package logbus fans out crawl progress lines to WebSocket subscribers,
keyed by session id (§6.2). Grounded on ternarybob-quaero's
handlers.WebSocketHandler (client registry behind a mutex, JSON-framed
broadcast, upgrader with permissive CheckOrigin for local development) and
internal/metadata's Attribute/event conventions for the message shape.
Library: github.com/gorilla/websocket for the /crawl-logs transport.

Per §6.2 the subscription is client-driven over the socket itself
(`{type:"subscribe", sessionId}` / `{type:"subscribe_all"}`), so the
handler runs a reader goroutine for control frames alongside the writer
loop that forwards published lines.
*/

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wildcardKey is the internal subscription key used by subscribe_all.
const wildcardKey = "*"

// LogLine is the JSON frame pushed to every subscriber of a session.
type LogLine struct {
	SessionId string    `json:"sessionId,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBufferSize bounds the per-subscriber channel. A slow reader
// drops the newest line rather than blocking the crawl worker publishing.
const subscriberBufferSize = 256

type subscriber struct {
	ch      chan LogLine
	dropped atomic.Uint64
}

func (s *subscriber) send(line LogLine) {
	select {
	case s.ch <- line:
	default:
		s.dropped.Add(1)
	}
}

// Bus is a pub/sub fan-out keyed by session id, plus a wildcard key for
// subscribe_all. It implements internal/crawlengine.Logger, so an Engine
// can publish directly to it.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]map[*subscriber]struct{})}
}

func (b *Bus) subscribe(key string) (*subscriber, func()) {
	sub := &subscriber{ch: make(chan LogLine, subscriberBufferSize)}

	b.mu.Lock()
	set, ok := b.subscribers[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subscribers[key] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subscribers[key]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subscribers, key)
			}
		}
		close(sub.ch)
	}
	return sub, unsubscribe
}

// Subscribe registers a new subscriber for sessionId and returns a channel
// of lines plus an unsubscribe func the caller must call when done.
func (b *Bus) Subscribe(sessionId string) (<-chan LogLine, func()) {
	sub, unsubscribe := b.subscribe(sessionId)
	return sub.ch, unsubscribe
}

func (b *Bus) publish(sessionId, level, message string) {
	line := LogLine{SessionId: sessionId, Level: level, Message: message, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[sessionId] {
		sub.send(line)
	}
	for sub := range b.subscribers[wildcardKey] {
		sub.send(line)
	}
}

// Info/Warn/Error implement internal/crawlengine.Logger.
func (b *Bus) Info(sessionId string, message string)  { b.publish(sessionId, "info", message) }
func (b *Bus) Warn(sessionId string, message string)  { b.publish(sessionId, "warn", message) }
func (b *Bus) Error(sessionId string, message string) { b.publish(sessionId, "error", message) }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type controlMessage struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId"`
}

// connHandler owns one WebSocket connection's current subscription,
// relaying lines from whichever bus subscription is currently active into
// a single deliver channel the writer loop reads from.
type connHandler struct {
	bus     *Bus
	deliver chan LogLine

	mu          sync.Mutex
	unsubscribe func()
}

func (h *connHandler) subscribeTo(key string) {
	sub, unsubscribe := h.bus.subscribe(key)

	h.mu.Lock()
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case line, ok := <-sub.ch:
				if !ok {
					return
				}
				select {
				case h.deliver <- line:
				default:
				}
			case <-ticker.C:
				if n := sub.dropped.Swap(0); n > 0 {
					notice := LogLine{
						Level:     "warning",
						Message:   fmt.Sprintf("log_overflow: %d dropped", n),
						Timestamp: time.Now(),
					}
					select {
					case h.deliver <- notice:
					default:
					}
				}
			}
		}
	}()
}

func (h *connHandler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

// ServeLogStream upgrades r to a WebSocket and implements the §6.2
// /crawl-logs protocol: the client drives its own subscription by sending
// {"type":"subscribe","sessionId":"..."} or {"type":"subscribe_all"}
// frames; the server pushes JSON LogLine frames until either side closes.
func ServeLogStream(bus *Bus, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	h := &connHandler{bus: bus, deliver: make(chan LogLine, subscriberBufferSize)}
	defer h.close()

	readErrs := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErrs <- err
				return
			}
			var ctrl controlMessage
			if err := json.Unmarshal(data, &ctrl); err != nil {
				continue
			}
			switch ctrl.Type {
			case "subscribe":
				if ctrl.SessionId != "" {
					h.subscribeTo(ctrl.SessionId)
				}
			case "subscribe_all":
				h.subscribeTo(wildcardKey)
			}
		}
	}()

	for {
		select {
		case <-readErrs:
			return nil
		case line := <-h.deliver:
			data, err := json.Marshal(line)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}
