// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package resultchannel is the named side-channel delivery mechanism
// spec.md §6 treats as external: the first snapshot rides the immediate
// HTTP response, every later one is pushed to a channel named
// request-url + "?" + urlencode(body). Subscribers read it over SSE or, if
// they prefer a socket, a websocket upgrade.
package resultchannel

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Name builds the channel name spec.md §6 specifies.
func Name(requestURL, body string) string {
	return requestURL + "?" + url.QueryEscape(body)
}

// Channel fans one named stream of already-encoded snapshot payloads out to
// any number of subscribers, replaying history to a subscriber that joins
// late (spec.md's HTTP response and the side-channel connection are two
// separate round trips; the consumer may not have subscribed yet when the
// first snapshots are sent).
type Channel struct {
	mu      sync.Mutex
	history [][]byte
	subs    map[chan []byte]struct{}
	closed  bool
}

func newChannel() *Channel {
	return &Channel{subs: make(map[chan []byte]struct{})}
}

// Send publishes payload to every current subscriber and records it for
// subscribers that join afterward. A no-op on a closed channel.
func (c *Channel) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.history = append(c.history, payload)
	for sub := range c.subs {
		select {
		case sub <- payload:
		default:
			// Slow subscriber: drop rather than block the generator: spec.md
			// §5 treats result-channel sends as a suspension point, not a
			// point where backpressure should stall the whole pipeline.
		}
	}
}

// Close ends the channel: every subscriber's channel is closed, and
// subsequent Send calls are no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for sub := range c.subs {
		close(sub)
	}
	c.subs = nil
}

// Subscribe returns a live feed plus anything already sent, and a cancel
// func the caller must invoke when it stops reading.
func (c *Channel) Subscribe() (live <-chan []byte, replay [][]byte, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan []byte, 16)
	replay = append([][]byte(nil), c.history...)
	if !c.closed {
		c.subs[ch] = struct{}{}
	} else {
		close(ch)
	}

	cancel = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, replay, cancel
}

// Hub owns every open Channel, keyed by name.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]*Channel)}
}

// Open returns name's Channel, creating it on first use.
func (h *Hub) Open(name string) *Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.channels[name]
	if !ok {
		c = newChannel()
		h.channels[name] = c
	}
	return c
}

// Finish closes and forgets name's Channel; called once a request's result
// generator has completed.
func (h *Hub) Finish(name string) {
	h.mu.Lock()
	c, ok := h.channels[name]
	delete(h.channels, name)
	h.mu.Unlock()
	if ok {
		c.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeSSE streams the channel named by the "channel" query parameter as
// server-sent events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("channel")
	if name == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := h.Open(name)
	live, replay, cancel := c.Subscribe()
	defer cancel()

	for _, msg := range replay {
		fmt.Fprintf(w, "data: %s\n\n", msg)
	}
	flusher.Flush()

	for {
		select {
		case msg, ok := <-live:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// ServeWS is the websocket-upgrade counterpart to ServeSSE, for callers
// that prefer a socket over long-lived SSE.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("channel")
	if name == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := h.Open(name)
	live, replay, cancel := c.Subscribe()
	defer cancel()

	for _, msg := range replay {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	for msg := range live {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
