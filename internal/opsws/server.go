// Package opsws exposes the operator command channel over WebSocket. Each
// text frame is one command line; the reply frame is the human-readable
// result. The fixed command grammar lives in internal/command.
package opsws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"inventory-reconciler/internal/command"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Handler executes one parsed operator command and returns the reply text.
type Handler func(ctx context.Context, cmd command.Command) string

// Server serves the /commands WebSocket endpoint.
type Server struct {
	addr    string
	handler Handler
	srv     *http.Server
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler Handler) *Server {
	s := &Server{addr: addr, handler: handler}
	mux := http.NewServeMux()
	mux.HandleFunc("/commands", s.serveWS)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[opsws] command channel listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[opsws] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[opsws] upgrade error: %v", err)
		return
	}
	log.Printf("[opsws] operator connected: %s", r.RemoteAddr)
	defer func() {
		conn.Close()
		log.Printf("[opsws] operator disconnected: %s", r.RemoteAddr)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		cmd := command.Parse(string(data))
		reply := s.handler(r.Context(), cmd)

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}
