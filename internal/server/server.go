// Package server exposes session status and control over HTTP, a
// websocket event stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/radio"
	"codeberg.org/mutker/proxlock/internal/sampler"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

var errFactory = errors.New()

// Controller is the part of the lifecycle controller the server drives.
type Controller interface {
	Resume() (*sampler.Session, error)
	StopActive(reason string) error
	Active() *sampler.Session
	Radio() radio.State
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Running bool            `json:"running"`
	Radio   radio.State     `json:"radio"`
	Session *sampler.Status `json:"session"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type command struct {
	Action string `json:"action"`
}

type Server struct {
	ctrl     Controller
	hub      *Hub
	metrics  http.Handler
	log      logger.Logger
	upgrader websocket.Upgrader
}

type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(ctrl Controller, opts ...Option) *Server {
	s := &Server{
		ctrl: ctrl,
		log:  logger.Nop(),
		// The zero Upgrader refuses handshakes whose Origin host differs
		// from the request host.
		upgrader: websocket.Upgrader{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log)
	return s
}

// Hub returns the websocket hub; subscribe it to the event bus.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/session/start", s.sameOrigin(s.handleStart))
	mux.HandleFunc("POST /api/session/stop", s.sameOrigin(s.handleStop))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrInitFailed, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(errors.ErrOperationFailed, err)
	case <-ctx.Done():
	}

	s.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{Radio: s.ctrl.Radio()}
	if session := s.ctrl.Active(); session != nil {
		st := session.Status()
		resp.Running = true
		resp.Session = &st
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// sameOrigin refuses control requests a browser could send on behalf of
// another site. Only same-origin JSON requests reach next.
func (s *Server) sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkControlRequest(r); err != nil {
			s.log.Warn().
				Err(err).
				Str("origin", r.Header.Get("Origin")).
				Str("path", r.URL.Path).
				Msg("Control request refused")
			s.writeError(w, err)
			return
		}
		next(w, r)
	}
}

func checkControlRequest(r *http.Request) error {
	switch site := r.Header.Get("Sec-Fetch-Site"); site {
	case "", "same-origin", "none":
	default:
		return errFactory.WithData(errors.ErrForbidden, site)
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || !strings.EqualFold(u.Host, r.Host) {
			return errFactory.WithData(errors.ErrForbidden, origin)
		}
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errFactory.WithData(errors.ErrUnsupportedType, r.Header.Get("Content-Type"))
	}
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.ctrl.Resume(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.StopActive(events.ReasonUser); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := s.hub.add(conn)
	go c.writeLoop()

	if msg, err := json.Marshal(s.status()); err == nil {
		select {
		case c.send <- msg:
		default:
		}
	}

	defer s.hub.remove(c)

	conn.SetReadLimit(maxMessageSize)
	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Action {
		case "start":
			_, err = s.ctrl.Resume()
		case "stop":
			err = s.ctrl.StopActive(events.ReasonUser)
		default:
			continue
		}
		if err != nil {
			s.log.Debug().Err(err).Str("action", cmd.Action).Msg("Websocket command failed")
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrSessionAlreadyRunning, errors.ErrSessionNotRunning:
		status = http.StatusConflict
	case errors.ErrRadioUnavailable:
		status = http.StatusServiceUnavailable
	case errors.ErrForbidden:
		status = http.StatusForbidden
	case errors.ErrUnsupportedType:
		status = http.StatusUnsupportedMediaType
	case errors.ErrInvalidCapacity, errors.ErrInvalidInterval, errors.ErrInvalidArgument:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
