// Package feed serves the candidate ingest surface: detectors push
// graduated launches over HTTP or WebSocket, operators reach the admin
// and status endpoints on the same listener. The engine never polls.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/admin"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/engine"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/intake"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

const (
	// maxCandidateBytes bounds a single candidate payload.
	maxCandidateBytes = 64 << 10
	// maxAdminBytes bounds an admin command line.
	maxAdminBytes = 4 << 10
	// shutdownTimeout is the graceful drain window on Run cancellation.
	shutdownTimeout = 10 * time.Second
)

// Options contains configuration for creating a Server.
type Options struct {
	Engine *engine.Engine
	Admin  *admin.Handler
	Logger *log.Logger
	Clock  func() time.Time // defaults to time.Now
}

// Server exposes the ingest and operations endpoints.
type Server struct {
	engine *engine.Engine
	admin  *admin.Handler
	logger *log.Logger
	clock  func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lshortfile)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Server{
		engine: opts.Engine,
		admin:  opts.Admin,
		logger: opts.Logger,
		clock:  opts.Clock,
	}
}

// Routes builds the endpoint mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/candidates", s.handleCandidate)
	mux.HandleFunc("/v1/stream", s.handleStream)
	mux.HandleFunc("/v1/closes", s.handleClose)
	mux.HandleFunc("/v1/admin", s.handleAdmin)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// Run serves on addr until the context is cancelled, then drains open
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleCandidate ingests one candidate per POST body.
func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ackRejected("method not allowed"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCandidateBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ackRejected("read body: "+err.Error()))
		return
	}

	p, err := decodeCandidate(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ackRejected(err.Error()))
		return
	}

	c := p.toDomain(s.clock)
	if err := s.engine.Submit(r.Context(), c); err != nil {
		code, reason := submitStatus(err)
		writeJSON(w, code, ackRejected(reason))
		return
	}
	writeJSON(w, http.StatusAccepted, streamAck{Status: "accepted", Address: c.Address})
}

// closeRequest asks for an OPEN position to be exited at a reference
// price. Detectors push these when their exit condition trips.
type closeRequest struct {
	PositionID   string  `json:"position_id"`
	ExitPriceUSD float64 `json:"exit_price_usd"`
}

type closeResponse struct {
	Status         string  `json:"status"`
	PositionID     string  `json:"position_id"`
	ExitPriceUSD   float64 `json:"exit_price_usd"`
	RealizedPnLUSD float64 `json:"realized_pnl_usd"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ackRejected("method not allowed"))
		return
	}

	var req closeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCandidateBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ackRejected("decode close request: "+err.Error()))
		return
	}
	if req.PositionID == "" || req.ExitPriceUSD <= 0 {
		writeJSON(w, http.StatusBadRequest, ackRejected("position_id and positive exit_price_usd required"))
		return
	}

	pos, err := s.engine.Resolve(r.Context(), req.PositionID, req.ExitPriceUSD)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, closeResponse{
			Status:         "closed",
			PositionID:     pos.PositionID,
			ExitPriceUSD:   pos.ExitPriceUSD,
			RealizedPnLUSD: pos.RealizedPnLUSD,
		})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ackRejected("unknown position"))
	case errors.Is(err, engine.ErrNotOpen):
		writeJSON(w, http.StatusConflict, ackRejected("position is not open"))
	default:
		writeJSON(w, http.StatusBadGateway, ackRejected(err.Error()))
	}
}

// handleAdmin runs one operator command; text in, text out.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	reply := s.admin.Execute(r.Context(), string(body))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(reply + "\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		s.logger.Printf("encode status: %v", err)
	}
}

// submitStatus maps an intake submission error to an HTTP status and a
// stable reason code.
func submitStatus(err error) (int, string) {
	switch {
	case errors.Is(err, intake.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, intake.ErrPaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, intake.ErrBacklog):
		return http.StatusServiceUnavailable, "backlog"
	case errors.Is(err, intake.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	case errors.Is(err, intake.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, "invalid_address"
	case errors.Is(err, intake.ErrInvalidCandidate):
		return http.StatusUnprocessableEntity, "invalid_candidate"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// streamAck is the per-message acknowledgement shared by the HTTP and
// WebSocket ingest paths.
type streamAck struct {
	Status  string `json:"status"`
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func ackRejected(reason string) streamAck {
	return streamAck{Status: "rejected", Reason: reason}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
