package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/cache"
	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/explain"
	"github.com/Kerremmarket/credit/pkg/models"
	"github.com/Kerremmarket/credit/pkg/registry"
	"github.com/Kerremmarket/credit/pkg/trace"
)

// Server exposes the training, prediction, explanation, and tracing
// endpoints.
type Server struct {
	registry *registry.Registry
	engine   *explain.Engine
	tracer   *trace.Tracer
	cache    *cache.Cache
	data     *dataset.Dataset
	logger   *zap.Logger
	port     string
	router   *mux.Router
}

// NewServer creates an API server and registers its routes.
func NewServer(reg *registry.Registry, engine *explain.Engine, tracer *trace.Tracer, c *cache.Cache, data *dataset.Dataset, port string, logger *zap.Logger) *Server {
	s := &Server{
		registry: reg,
		engine:   engine,
		tracer:   tracer,
		cache:    c,
		data:     data,
		logger:   logger.Named("api"),
		port:     port,
		router:   mux.NewRouter(),
	}

	s.registerRoutes()
	return s
}

// registerRoutes sets up the HTTP routes
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/train", s.handleTrain).Methods(http.MethodPost)
	s.router.HandleFunc("/api/predict", s.handlePredict).Methods(http.MethodPost)
	s.router.HandleFunc("/api/explain/summary", s.handleSummary).Methods(http.MethodPost)
	s.router.HandleFunc("/api/explain/local", s.handleLocal).Methods(http.MethodPost)
	s.router.HandleFunc("/api/explain/dependence", s.handleDependence).Methods(http.MethodPost)
	s.router.HandleFunc("/api/trace/forward", s.handleForwardTrace).Methods(http.MethodPost)
	s.router.HandleFunc("/api/trace/treepath", s.handleTreePath).Methods(http.MethodPost)
	s.router.HandleFunc("/api/trace/ensemble", s.handleEnsembleTrace).Methods(http.MethodPost)
	s.router.HandleFunc("/api/cache", s.handleCacheClear).Methods(http.MethodDelete)
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	s.logger.Info("starting API server", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"cache_enabled": s.cache.Enabled(),
		"dataset_rows":  dsLen(s.data),
	})
}

// handleTrain trains one family on the loaded dataset.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := s.registry.Train(req.Family, s.data, req.Features)
	if err != nil {
		s.writeModelError(w, "training failed", err)
		return
	}

	resp := models.TrainResponse{
		Family:          record.Family,
		ModelID:         record.ID,
		Accuracy:        record.Accuracy,
		AUC:             record.AUC,
		ConfusionMatrix: record.ConfusionMatrix,
		TrainedAt:       record.TrainedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	m, err := s.registry.Get(record.Family)
	if err == nil {
		if provider, ok := m.(classifier.ImportanceProvider); ok {
			resp.Importances = provider.FeatureImportance()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePredict returns batch probabilities and log odds.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	resp := models.PredictResponse{Family: req.Family}
	for _, row := range req.Rows {
		x := dataset.RowToVector(m.FeatureNames(), row)
		p, err := m.PredictProba(x)
		if err != nil {
			s.writeModelError(w, "prediction failed", err)
			return
		}
		resp.Probas = append(resp.Probas, p)
		resp.LogOdds = append(resp.LogOdds, logOdds(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSummary returns the global attribution for a family.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req models.SummaryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.GlobalAttribution(m, s.data))
}

// handleLocal returns a single-row attribution.
func (s *Server) handleLocal(w http.ResponseWriter, r *http.Request) {
	var req models.LocalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.LocalAttribution(m, s.data, req.Row))
}

// handleDependence returns dependence curves for the requested features.
func (s *Server) handleDependence(w http.ResponseWriter, r *http.Request) {
	var req models.DependenceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.DependenceCurves(m, s.data, req.Features))
}

// handleForwardTrace returns the layer-by-layer forward pass.
func (s *Server) handleForwardTrace(w http.ResponseWriter, r *http.Request) {
	var req models.TraceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	result, err := s.tracer.ForwardTrace(m, req.Row)
	if err != nil {
		s.writeModelError(w, "forward trace failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTreePath returns the representative tree's decision path.
func (s *Server) handleTreePath(w http.ResponseWriter, r *http.Request) {
	var req models.TraceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	result, err := s.tracer.TreePath(m, req.Row)
	if err != nil {
		s.writeModelError(w, "tree path trace failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEnsembleTrace returns the per-member contribution breakdown,
// or just the member count when no row is supplied.
func (s *Server) handleEnsembleTrace(w http.ResponseWriter, r *http.Request) {
	var req models.EnsembleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := s.registry.Get(req.Family)
	if err != nil {
		s.writeModelError(w, "model lookup failed", err)
		return
	}

	result, err := s.tracer.EnsembleTrace(m, req.Row)
	if err != nil {
		s.writeModelError(w, "ensemble trace failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCacheClear drops every cached explanation.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Clear()
	writeJSON(w, http.StatusOK, models.CacheClearResponse{Removed: removed})
}

// writeModelError maps unsupported-family and not-trained errors to 400
// and everything else to 500.
func (s *Server) writeModelError(w http.ResponseWriter, context string, err error) {
	s.logger.Warn(context, zap.Error(err))
	status := http.StatusInternalServerError
	if errors.Is(err, models.ErrUnsupportedFamily) || errors.Is(err, models.ErrNotTrained) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, models.ErrorResponse{Error: fmt.Sprintf("%s: %v", context, err)})
}

// decodeAndValidate parses the request body and runs its Validate
// method, writing a 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func logOdds(p float64) float64 {
	const eps = 1e-10
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return math.Log(p / (1 - p))
}

func dsLen(ds *dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}
