// Package api exposes the recalculation engine over HTTP for deployments
// where edits arrive from a remote editing surface instead of a desktop
// plugin.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openhydro/sewerflow/pkg/cascade"
	"github.com/openhydro/sewerflow/pkg/engine"
	"github.com/openhydro/sewerflow/pkg/errors"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
	"github.com/openhydro/sewerflow/pkg/provider"
	"github.com/openhydro/sewerflow/pkg/render"
)

// Server wires the engine and an editable segment store into an HTTP API.
type Server struct {
	engine *engine.Engine
	store  *provider.Memory
	log    *log.Logger
}

// New builds a server. The store must be the same instance the engine's
// provider reads from, otherwise edits and cycles see different data.
func New(e *engine.Engine, store *provider.Memory, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{engine: e, store: store, log: logger}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/segments", s.handleAddSegment)
		r.Delete("/segments/{id}", s.handleRemoveSegment)
		r.Post("/segments/{id}/endpoint", s.handleMoveEndpoint)

		r.Post("/changes", s.handleChanges)
		r.Post("/parameters", s.handleParameters)
		r.Post("/recalculate", s.handleRecalculate)

		r.Get("/stats", s.handleStats)
		r.Get("/export.dot", s.handleExportDOT)
		r.Get("/export.svg", s.handleExportSVG)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChanges runs one recalculation cycle over whatever edits
// accumulated since the last committed snapshot.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.OnGeometryChanged(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type parametersRequest struct {
	MinCover     float64  `json:"min_cover"`
	Diameter     float64  `json:"diameter"`
	Slope        float64  `json:"slope"`
	Epsilon      float64  `json:"epsilon"`
	InitialDepth *float64 `json:"initial_depth,omitempty"`
}

// handleParameters adopts new depth parameters and recalculates the whole
// network.
func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	var req parametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding parameters"))
		return
	}
	params := cascade.Params{
		MinCover:     req.MinCover,
		Diameter:     req.Diameter,
		Slope:        req.Slope,
		Epsilon:      req.Epsilon,
		InitialDepth: req.InitialDepth,
	}
	report, err := s.engine.OnParametersChanged(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Recalculate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

type segmentRequest struct {
	ID       int64          `json:"id"`
	Up       geometry.Point `json:"up"`
	Down     geometry.Point `json:"down"`
	Diameter float64        `json:"diameter,omitempty"`
	Slope    float64        `json:"slope,omitempty"`
	MinCover float64        `json:"min_cover,omitempty"`
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errors.New(errors.ErrCodeUnsupported, "server has no editable store"))
		return
	}
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding segment"))
		return
	}
	err := s.store.AddSegment(network.Segment{
		ID:       req.ID,
		Up:       req.Up,
		Down:     req.Down,
		Diameter: req.Diameter,
		Slope:    req.Slope,
		MinCover: req.MinCover,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": req.ID})
}

func (s *Server) handleRemoveSegment(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errors.New(errors.ErrCodeUnsupported, "server has no editable store"))
		return
	}
	id, err := segmentID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.store.RemoveSegment(id)
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	Endpoint string         `json:"endpoint"` // "up" or "down"
	To       geometry.Point `json:"to"`
}

func (s *Server) handleMoveEndpoint(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errors.New(errors.ErrCodeUnsupported, "server has no editable store"))
		return
	}
	id, err := segmentID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding move"))
		return
	}
	switch req.Endpoint {
	case "up", "down":
	default:
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "endpoint must be up or down"))
		return
	}
	if err := s.store.MoveEndpoint(id, req.Endpoint == "down", req.To); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportDOT(w http.ResponseWriter, r *http.Request) {
	topo, err := s.topology(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dot := render.ToDOT(topo, render.Options{Detailed: r.URL.Query().Get("detailed") == "true"})
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Write([]byte(dot))
}

func (s *Server) handleExportSVG(w http.ResponseWriter, r *http.Request) {
	topo, err := s.topology(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dot := render.ToDOT(topo, render.Options{Detailed: true})
	svg, err := render.ToSVG(r.Context(), dot)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "rendering svg"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

// topology returns the committed topology, falling back to a fresh build
// over the store before the first cycle.
func (s *Server) topology(r *http.Request) (*network.Topology, error) {
	if topo := s.engine.Topology(); topo != nil {
		return topo, nil
	}
	if s.store == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no committed topology yet")
	}
	segs, err := s.store.Segments(r.Context())
	if err != nil {
		return nil, err
	}
	return network.Build(segs, geometry.DefaultTolerance), nil
}

func segmentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing segment id")
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeSegmentNotFound, errors.ErrCodeNodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeCycleDetected:
		status = http.StatusConflict
	case errors.ErrCodeUnsupported:
		status = http.StatusNotImplemented
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
