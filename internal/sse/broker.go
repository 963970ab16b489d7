// Package sse fans note change events out to Server-Sent Events clients.
//
// Every event carries a broker-assigned id. A client reconnecting with a
// Last-Event-ID header gets the events it missed, as far back as the broker
// history reaches. Clients may narrow the stream with ?types=a,b.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ChangedEvent is the coalesced "something changed" event.
const ChangedEvent = "notes.changed"

// Event is a single SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Config tunes a Broker. Zero values select the defaults.
type Config struct {
	// Throttle is the minimum gap between two notes.changed events. Changes
	// inside the gap are folded into one trailing event. Default 2s.
	Throttle time.Duration
	// Heartbeat is the interval of keep-alive comments on open streams.
	// Zero disables them.
	Heartbeat time.Duration
	// History is the number of recent events kept for replay. Default 64.
	History int
}

func (c Config) withDefaults() Config {
	if c.Throttle <= 0 {
		c.Throttle = 2 * time.Second
	}
	if c.History <= 0 {
		c.History = 64
	}
	return c
}

// frame is an encoded event ready to be written to a stream.
type frame struct {
	id  uint64
	typ string
	raw []byte
}

type subscriber struct {
	out   chan []byte
	types map[string]bool // nil accepts every type
}

func (s *subscriber) offer(f frame) {
	if s.types != nil && !s.types[f.typ] {
		return
	}
	select {
	case s.out <- f.raw:
	default:
		// slow client, drop
	}
}

type subscribeReq struct {
	sub    *subscriber
	replay bool
	after  uint64
}

type publishReq struct {
	event Event
	// change also schedules a notes.changed event.
	change bool
}

// Broker owns the connected clients, the replay history and the
// notes.changed coalescer. All of it lives in the run loop.
type Broker struct {
	cfg Config

	subscribeCh   chan subscribeReq
	unsubscribeCh chan *subscriber
	publishCh     chan publishReq
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(cfg Config) *Broker {
	b := &Broker{
		cfg:           cfg.withDefaults(),
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan *subscriber),
		publishCh:     make(chan publishReq, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var (
		subs        = make(map[*subscriber]struct{})
		history     []frame
		lastID      uint64
		lastChanged time.Time
		trailing    *time.Timer
		trailingC   <-chan time.Time
	)

	emit := func(typ string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		lastID++
		f := frame{
			id:  lastID,
			typ: typ,
			raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", lastID, typ, payload),
		}
		history = append(history, f)
		if len(history) > b.cfg.History {
			history = history[len(history)-b.cfg.History:]
		}
		for s := range subs {
			s.offer(f)
		}
	}

	changed := func() {
		if trailingC != nil {
			return
		}
		wait := b.cfg.Throttle - time.Since(lastChanged)
		if wait <= 0 {
			lastChanged = time.Now()
			emit(ChangedEvent, struct{}{})
			return
		}
		trailing = time.NewTimer(wait)
		trailingC = trailing.C
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
			for s := range subs {
				close(s.out)
			}
			return

		case req := <-b.subscribeCh:
			subs[req.sub] = struct{}{}
			if req.replay {
				for _, f := range history {
					if f.id > req.after {
						req.sub.offer(f)
					}
				}
			}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.out)
			}

		case req := <-b.publishCh:
			emit(req.event.Type, req.event.Data)
			if req.change {
				changed()
			}

		case <-trailingC:
			trailing, trailingC = nil, nil
			lastChanged = time.Now()
			emit(ChangedEvent, struct{}{})

		case resp := <-b.countCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and ends every subscription. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscription is one client's view of the stream.
type Subscription struct {
	b   *Broker
	sub *subscriber
}

// Events yields encoded SSE frames. It is closed by Close or when the
// broker stops.
func (s *Subscription) Events() <-chan []byte { return s.sub.out }

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	if s.b.closed.Load() {
		return
	}
	select {
	case s.b.unsubscribeCh <- s.sub:
	case <-s.b.stopped:
	}
}

// Subscribe registers a client for the given event types, or for every type
// when none are given.
func (b *Broker) Subscribe(types ...string) *Subscription {
	return b.subscribe(subscribeReq{}, types)
}

// Resume is Subscribe preceded by a replay of the retained events whose id
// is greater than lastID.
func (b *Broker) Resume(lastID uint64, types ...string) *Subscription {
	return b.subscribe(subscribeReq{replay: true, after: lastID}, types)
}

func (b *Broker) subscribe(req subscribeReq, types []string) *Subscription {
	req.sub = &subscriber{out: make(chan []byte, 64)}
	if len(types) > 0 {
		req.sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			req.sub.types[t] = true
		}
	}
	s := &Subscription{b: b, sub: req.sub}

	if b.closed.Load() {
		close(req.sub.out)
		return s
	}
	select {
	case b.subscribeCh <- req:
	case <-b.stopped:
		close(req.sub.out)
	}
	return s
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all interested clients.
func (b *Broker) Publish(e Event) {
	b.publish(publishReq{event: e})
}

type noteRef struct {
	ID string `json:"id,omitempty"`
}

// PublishNoteEvent emits note.<kind> followed, coalesced, by notes.changed.
// Its signature matches noteservice.Notifier.
func (b *Broker) PublishNoteEvent(kind, id string) {
	b.publish(publishReq{
		event:  Event{Type: "note." + kind, Data: noteRef{ID: id}},
		change: true,
	})
}

func (b *Broker) publish(req publishReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- req:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects.
//
// Query ?types=note.created,notes.changed narrows the stream. A numeric
// Last-Event-ID header replays retained events after that id.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	types := splitTypes(r.URL.Query().Get("types"))
	var sub *Subscription
	if last, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		sub = b.Resume(last, types...)
	} else {
		sub = b.Subscribe(types...)
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var heartbeat <-chan time.Time
	if b.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(b.cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func splitTypes(raw string) []string {
	var out []string
	for t := range strings.SplitSeq(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
