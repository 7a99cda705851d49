// Package broadcast fans telemetry events out to overlay subscribers. Each
// selected overlay gets one channel; subscribers attach over WebSocket.
package broadcast

import (
	"encoding/json"
	"sync"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
)

const defaultQueueSize = 32

// Message is the wire envelope sent to subscribers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Option func(*Hub)

// WithQueueSize bounds the per-subscriber backlog. Events beyond it are
// dropped for that subscriber.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithDropHook is called for every event dropped for a slow subscriber.
func WithDropHook(fn func(channel string)) Option {
	return func(h *Hub) {
		h.onDrop = fn
	}
}

// WithLogger overrides the hub logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Hub) {
		h.log = log
	}
}

// Hub owns the fixed set of channels opened at construction.
type Hub struct {
	channels  map[string]*channel
	names     []string
	queueSize int
	onDrop    func(channel string)
	log       logger.Logger

	mu     sync.RWMutex
	closed bool
}

type channel struct {
	name string
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription receives encoded Messages on C until Close is called or the
// hub shuts down, at which point C is closed.
type Subscription struct {
	C <-chan []byte

	ch      chan []byte
	channel *channel
	once    sync.Once
}

// NewHub opens exactly one channel per distinct name.
func NewHub(names []string, opts ...Option) *Hub {
	h := &Hub{
		channels:  make(map[string]*channel, len(names)),
		queueSize: defaultQueueSize,
		log:       logger.WithComponent("broadcast"),
	}
	for _, opt := range opts {
		opt(h)
	}

	for _, name := range names {
		if _, ok := h.channels[name]; ok || name == "" {
			continue
		}
		h.channels[name] = &channel{name: name, subs: make(map[*Subscription]struct{})}
		h.names = append(h.names, name)
	}

	return h
}

// Channels returns the channel names in selection order.
func (h *Hub) Channels() []string {
	return append([]string(nil), h.names...)
}

// Has reports whether a channel with the given name is open.
func (h *Hub) Has(name string) bool {
	_, ok := h.channels[name]
	return ok
}

// Emit encodes payload once and queues it for every subscriber of channel.
// It never blocks: full subscriber queues drop the event. Unknown channels
// and a closed hub are ignored.
func (h *Hub) Emit(event string, payload any, channelName string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	c, ok := h.channels[channelName]
	if !ok {
		return
	}

	data, err := encode(event, payload)
	if err != nil {
		h.log.ErrorWithCode(errors.New().Wrap(ErrEncodePayload, err)).
			Str("event", event).
			Str("channel", channelName).
			Msg("Dropping event")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for sub := range c.subs {
		select {
		case sub.ch <- data:
		default:
			if h.onDrop != nil {
				h.onDrop(channelName)
			}
		}
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// Subscribe attaches a new subscriber to channelName.
func (h *Hub) Subscribe(channelName string) (*Subscription, error) {
	errFactory := errors.New()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, errFactory.New(ErrHubClosed)
	}

	c, ok := h.channels[channelName]
	if !ok {
		return nil, errFactory.WithData(ErrUnknownChannel, channelName)
	}

	ch := make(chan []byte, h.queueSize)
	sub := &Subscription{C: ch, ch: ch, channel: c}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	n := len(c.subs)
	c.mu.Unlock()

	h.log.Debug().Str("channel", channelName).Int("subscribers", n).Msg("Client subscribed")

	return sub, nil
}

// Subscribers returns the number of subscribers of channelName.
func (h *Hub) Subscribers(channelName string) int {
	c, ok := h.channels[channelName]
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close detaches every subscriber. Later emits are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, c := range h.channels {
		c.mu.Lock()
		subs := make([]*Subscription, 0, len(c.subs))
		for sub := range c.subs {
			subs = append(subs, sub)
		}
		c.mu.Unlock()

		for _, sub := range subs {
			sub.Close()
		}
	}
}

// Close detaches the subscription and closes C. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.channel.mu.Lock()
		delete(s.channel.subs, s)
		s.channel.mu.Unlock()
		close(s.ch)
	})
}
