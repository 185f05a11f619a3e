// Package server serves the engine snapshot over HTTP and websocket, along
// with health and Prometheus endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/epoch"
)

// DefaultBroadcastInterval is the minimum spacing of websocket snapshot pushes.
const DefaultBroadcastInterval = 500 * time.Millisecond

// SnapshotSource is implemented by *engine.Engine.
type SnapshotSource interface {
	Snapshot() *engine.Snapshot
	Subscribe() <-chan struct{}
}

// EpochArchive lists archived epoch windows.
type EpochArchive interface {
	Epochs(ctx context.Context) ([]epoch.Window, error)
}

type Config struct {
	Addr    string
	Metrics http.Handler
	// Archive is optional; /epochs is served only when it is set.
	Archive           EpochArchive
	BroadcastInterval time.Duration
	Logger            zerolog.Logger
}

type Server struct {
	source      SnapshotSource
	archive     EpochArchive
	broadcaster *Broadcaster
	interval    time.Duration
	logger      zerolog.Logger
	mux         *http.ServeMux
	server      *http.Server
}

func New(source SnapshotSource, cfg Config) *Server {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	mux := http.NewServeMux()
	s := &Server{
		source:   source,
		archive:  cfg.Archive,
		interval: cfg.BroadcastInterval,
		logger:   cfg.Logger,
		mux:      mux,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	s.broadcaster = NewBroadcaster(cfg.Logger, func() any { return source.Snapshot() })

	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.broadcaster.Handler())
	if cfg.Metrics != nil {
		s.mux.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Archive != nil {
		s.mux.HandleFunc("/epochs", s.handleEpochs)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, s.source.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode snapshot")
	}
}

type health struct {
	Status      string    `json:"status"`
	Connected   bool      `json:"connected"`
	CurrentSlot uint64    `json:"current_slot"`
	Seq         uint64    `json:"seq"`
	PublishedAt time.Time `json:"published_at"`
}

// handleHealth answers 200 while the stream is connected and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	h := health{
		Status:      "ok",
		Connected:   snap.Connected,
		CurrentSlot: snap.CurrentSlot,
		Seq:         snap.Seq,
		PublishedAt: snap.PublishedAt,
	}
	status := http.StatusOK
	if !snap.Connected {
		h.Status = "disconnected"
		status = http.StatusServiceUnavailable
	}
	_ = writeJSON(w, status, h)
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	windows, err := s.archive.Epochs(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read epoch archive")
		http.Error(w, "failed to read epoch archive", http.StatusBadGateway)
		return
	}
	_ = writeJSON(w, http.StatusOK, windows)
}

// broadcastLoop pushes the latest snapshot to websocket clients at most once
// per interval, and only when a new one was published.
func (s *Server) broadcastLoop(ctx context.Context) {
	notify := s.source.Subscribe()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastSeq uint64
	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			snap := s.source.Snapshot()
			if snap.Seq == lastSeq {
				continue
			}
			lastSeq = snap.Seq
			s.broadcaster.Broadcast(snap)
		}
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.broadcastLoop(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.broadcaster.Close()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
