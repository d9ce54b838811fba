package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TFMV/sitegraph/driver"
	"github.com/TFMV/sitegraph/logging"
	"github.com/TFMV/sitegraph/metrics"
	"github.com/TFMV/sitegraph/models"
	"github.com/TFMV/sitegraph/render"
)

const writeWait = 10 * time.Second

// Server exposes a running layout over HTTP: a live canvas page, a frame
// stream on /ws, rendered snapshots and Prometheus metrics.
type Server struct {
	driver   *driver.Driver
	metrics  *metrics.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a server for d. A nil registry uses the default one.
func New(d *driver.Driver, reg *metrics.Registry, logger *slog.Logger) *Server {
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	return &Server{
		driver:  d,
		metrics: reg,
		logger:  logging.OrDiscard(logger).With("component", "server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s.instrument("/", handleIndex()))
	mux.Handle("/visualize", s.instrument("/visualize", s.handleVisualize()))
	mux.Handle("/api/graph", s.instrument("/api/graph", s.handleAPIGraph()))
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends all frame streams
func (s *Server) Close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(path, rec.status)
	})
}

// handleVisualize renders the current layout in the requested format
func (s *Server) handleVisualize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "svg"
		}

		renderer, err := render.GetRenderer(format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		options := render.NewDefaultOptions(format)
		if v := r.URL.Query().Get("width"); v != "" {
			if width, err := strconv.Atoi(v); err == nil && width > 0 {
				options.Width = float64(width)
			}
		}
		if v := r.URL.Query().Get("height"); v != "" {
			if height, err := strconv.Atoi(v); err == nil && height > 0 {
				options.Height = float64(height)
			}
		}
		options.ShowLabels = r.URL.Query().Get("labels") != "false"

		output, err := renderer.Render(s.driver.Scene(), options)
		if err != nil {
			http.Error(w, "Error generating visualization: "+err.Error(), http.StatusInternalServerError)
			return
		}

		switch format {
		case "svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		case "echarts", "html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case "json":
			w.Header().Set("Content-Type", "application/json")
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.Write(output)
	}
}

// graphInfo describes the static part of the driven graph
type graphInfo struct {
	Type      string        `json:"type"`
	GraphID   string        `json:"graph_id"`
	NodeCount int           `json:"node_count"`
	Labels    []string      `json:"labels"`
	Edges     []models.Edge `json:"edges"`
	Paused    bool          `json:"paused"`
}

// frameMessage is a frame tagged for the stream
type frameMessage struct {
	Type string `json:"type"`
	*driver.Frame
}

// stateMessage reports the pause state after a client command
type stateMessage struct {
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

// command is a message a client sends on the stream
type command struct {
	Type string `json:"type"`
}

func (s *Server) info() graphInfo {
	labels := s.driver.Labels()
	if labels == nil {
		labels = []string{}
	}
	return graphInfo{
		Type:      "graph",
		GraphID:   s.driver.GraphID(),
		NodeCount: s.driver.NodeCount(),
		Labels:    labels,
		Edges:     s.driver.Edges(),
		Paused:    s.driver.Paused(),
	}
}

// handleAPIGraph provides the graph and its latest frame as JSON
func (s *Server) handleAPIGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			graphInfo
			Frame *driver.Frame `json:"frame"`
		}{s.info(), s.driver.Latest()}

		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		if err := encoder.Encode(response); err != nil {
			s.logger.Warn("encode graph", "error", err)
		}
	}
}

// wsConn serializes writes to a websocket connection shared by the frame
// loop and the command reader.
type wsConn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.c.WriteJSON(v)
}

// handleWebSocket streams frames to one client. The client may send
// {"type":"pause"}, {"type":"resume"} or {"type":"toggle"}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer c.Close()
	conn := &wsConn{c: c}

	frames, cancel := s.driver.Subscribe()
	defer cancel()

	s.metrics.WebSocketClients.Inc()
	defer s.metrics.WebSocketClients.Dec()
	s.logger.Debug("client connected", "remote", r.RemoteAddr)

	if err := conn.writeJSON(s.info()); err != nil {
		return
	}
	if err := conn.writeJSON(frameMessage{Type: "frame", Frame: s.driver.Latest()}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var cmd command
			if err := c.ReadJSON(&cmd); err != nil {
				return
			}
			switch cmd.Type {
			case "pause":
				s.driver.Pause()
			case "resume":
				s.driver.Resume()
			case "toggle":
				s.driver.TogglePause()
			default:
				continue
			}
			if err := conn.writeJSON(stateMessage{Type: "state", Paused: s.driver.Paused()}); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.writeJSON(frameMessage{Type: "frame", Frame: frame}); err != nil {
				s.logger.Debug("client write failed", "error", err)
				return
			}
		case <-closed:
			s.logger.Debug("client disconnected", "remote", r.RemoteAddr)
			return
		case <-s.done:
			conn.writeMu.Lock()
			c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			conn.writeMu.Unlock()
			return
		}
	}
}
