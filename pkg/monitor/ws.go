package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/gos-rtos/gostool.go/pkg/framework"
)

// DefaultClientBuffer is the number of samples queued per client.
const DefaultClientBuffer = 64

// WSHub streams samples as JSON text messages to WebSocket clients.
// A new client first receives the latest sample of every kind.
type WSHub struct {
	ClientBuffer int

	lock    sync.Mutex
	clients map[*wsClient]struct{}
	latest  map[string]string
}

type wsClient struct {
	conn *websocket.Conn
	out  chan string
}

// NewWSHub creates a WSHub.
func NewWSHub() *WSHub {
	return &WSHub{
		ClientBuffer: DefaultClientBuffer,
		clients:      make(map[*wsClient]struct{}),
		latest:       make(map[string]string),
	}
}

// Publish implements Sink. Slow clients miss samples.
func (h *WSHub) Publish(s *Sample) error {
	text, err := s.JSON()
	if err != nil {
		return err
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.latest[s.Kind] = text
	for c := range h.clients {
		select {
		case c.out <- text:
		default:
			glog.V(3).Infof("ws %s: dropped %s", c.conn.Request().RemoteAddr, s.Kind)
		}
	}
	return nil
}

// Latest returns the latest sample of every kind as JSON text.
func (h *WSHub) Latest() map[string]string {
	h.lock.Lock()
	defer h.lock.Unlock()
	latest := make(map[string]string, len(h.latest))
	for kind, text := range h.latest {
		latest[kind] = text
	}
	return latest
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// ServeHTTP implements http.Handler.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

// ServeLatest serves the latest samples as a JSON object keyed by kind.
func (h *WSHub) ServeLatest(w http.ResponseWriter, r *http.Request) {
	latest := h.Latest()
	samples := make(map[string]json.RawMessage, len(latest))
	for kind, text := range latest {
		samples[kind] = json.RawMessage(text)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(samples); err != nil {
		glog.Warningf("serve latest: %v", err)
	}
}

func (h *WSHub) register(conn *websocket.Conn) *wsClient {
	size := h.ClientBuffer
	if size <= 0 {
		size = DefaultClientBuffer
	}
	c := &wsClient{conn: conn, out: make(chan string, size)}
	h.lock.Lock()
	defer h.lock.Unlock()
	kinds := make([]string, 0, len(h.latest))
	for kind := range h.latest {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		select {
		case c.out <- h.latest[kind]:
		default:
		}
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *WSHub) unregister(c *wsClient) {
	h.lock.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
	h.lock.Unlock()
}

func (h *WSHub) serve(conn *websocket.Conn) {
	c := h.register(conn)
	glog.V(2).Infof("ws %s connected", conn.Request().RemoteAddr)
	defer glog.V(2).Infof("ws %s disconnected", conn.Request().RemoteAddr)

	// incoming messages are ignored, a read failure means the
	// client is gone
	go func() {
		var discard string
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		h.unregister(c)
	}()
	for text := range c.out {
		if err := websocket.Message.Send(conn, text); err != nil {
			h.unregister(c)
			break
		}
	}
	conn.Close()
}

// Server serves the hub on "/ws" and the latest samples on
// "/samples" over HTTP.
type Server struct {
	Addr string
	Hub  *WSHub
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "http"
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Hub)
	mux.HandleFunc("/samples", s.Hub.ServeLatest)
	return mux
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	glog.Infof("serving samples on %s", s.Addr)
	return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
}
