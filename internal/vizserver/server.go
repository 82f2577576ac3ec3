// Package vizserver serves engine snapshots to renderers: a JSON snapshot
// endpoint, per-agent obstacle clearances and a websocket stream of frames.
package vizserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/engine"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait        = 5 * time.Second
	defaultFrameRate = 30
)

// Source is the scene being served. *engine.Engine implements it.
type Source interface {
	Snapshot() engine.Snapshot
	DebugSamples(id agent.ID) ([]engine.DebugSample, error)
}

// Frame is one websocket message.
type Frame struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Data engine.Snapshot `json:"data"`
}

// Server is the viz HTTP server.
type Server struct {
	addr      string
	frameRate float64
	src       Source
	log       *zap.Logger
	router    *mux.Router
	upgrader  websocket.Upgrader
	clients   atomic.Int64
}

// New builds a server for src. Routes are registered immediately; call
// ListenAndServe to start listening.
func New(cfg config.VizConfig, src Source, logger *zap.Logger) *Server {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = defaultFrameRate
	}
	s := &Server{
		addr:      cfg.Addr,
		frameRate: cfg.FrameRate,
		src:       src,
		log:       logger.Named("viz"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/agents/{id}/obstacles", s.handleObstacles).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleStream).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Clients returns the number of connected stream clients.
func (s *Server) Clients() int64 { return s.clients.Load() }

// ListenAndServe serves until ctx is cancelled. Open streams are closed on
// cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("viz server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errCh
		s.log.Info("viz server stopped")
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encoding response", zap.Error(err))
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *Server) handleObstacles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	samples, err := s.src.DebugSamples(id)
	switch {
	case errors.Is(err, engine.ErrUnknownAgent):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		s.writeJSON(w, http.StatusOK, samples)
	}
}

// handleStream pushes a snapshot frame to the client at the configured frame
// rate until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.clients.Add(1)
	defer s.clients.Add(-1)
	log := s.log.With(zap.String("remote", r.RemoteAddr))
	log.Info("viz client connected")
	defer log.Info("viz client disconnected")

	// Reading is the only way to notice the client closing its side.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-readDone
	}()

	limiter := rate.NewLimiter(rate.Limit(s.frameRate), 1)
	var seq uint64
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		seq++
		data, err := json.Marshal(Frame{Type: "snapshot", Seq: seq, Data: s.src.Snapshot()})
		if err != nil {
			log.Error("encoding frame", zap.Error(err))
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("frame write failed", zap.Error(err))
			return
		}
	}
}
