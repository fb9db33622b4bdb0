package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"interview_room/native/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server serves the room sockets and the small HTTP API around them.
type Server struct {
	hub        *Hub
	iceServers []domain.ICEServer
	upgrader   websocket.Upgrader

	mux *http.ServeMux
	srv *http.Server
}

// NewServer creates a relay listening on addr.
func NewServer(addr string, hub *Hub, iceServers []domain.ICEServer) *Server {
	s := &Server{
		hub:        hub,
		iceServers: iceServers,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.registerRoutes()

	s.srv = &http.Server{
		Addr: addr,
		Handler: chain(s.mux,
			recoverMiddleware(),
			requestIDMiddleware(),
			requestLoggerMiddleware(),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	log.Printf("[relay] serving on %s", l.Addr())
	err := s.srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rooms": s.hub.Rooms()})
	})

	s.mux.HandleFunc("GET /api/get_turn_credentials", func(w http.ResponseWriter, r *http.Request) {
		servers := s.iceServers
		if servers == nil {
			servers = []domain.ICEServer{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
	})

	s.mux.HandleFunc("GET /api/transcript", func(w http.ResponseWriter, r *http.Request) {
		room := domain.NormalizeRoom(r.URL.Query().Get("room"))
		type line struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		}
		lines := []line{}
		for _, l := range s.hub.Transcript(room) {
			lines = append(lines, line{Sender: string(l.Sender), Text: l.Text})
		}
		writeJSON(w, http.StatusOK, map[string]any{"room": room, "lines": lines})
	})

	s.mux.HandleFunc("GET /ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[relay] upgrade: %v", err)
			return
		}
		s.hub.Join(r.PathValue("room"), conn)
	})
}

type middleware func(http.Handler) http.Handler

func chain(handler http.Handler, middlewares ...middleware) http.Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func recoverMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("[relay] panic in %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
				r.Header.Set("X-Request-ID", reqID)
			}
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func requestLoggerMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			log.Printf("[relay] %s %s %d %dms id=%s remote=%s",
				r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds(),
				r.Header.Get("X-Request-ID"), r.RemoteAddr)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
