package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/iwvelando/project-feasibility/internal/cache"
	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/internal/optimizer"
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/optimization"
	"github.com/iwvelando/project-feasibility/pkg/output"
	"github.com/iwvelando/project-feasibility/pkg/statements"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	store         cache.Store
}

type forecastOptions struct {
	Optimize bool
}

// NewHandler constructs the HTTP handler that serves the feasibility API.
// Results are memoized in store by input fingerprint; a nil store computes
// every request afresh.
func NewHandler(logger *zap.Logger, maxUploadSize int64, version string, store cache.Store) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, maxUploadSize: maxUploadSize, version: trimmedVersion, store: store}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// Forecast of every active scenario (YAML file upload)
	api.HandleFunc("/forecast", h.handleForecast).Methods(http.MethodPost)

	// Single run over a JSON input snapshot
	api.HandleFunc("/snapshot", h.handleSnapshot).Methods(http.MethodPost)

	// Downloads of the forecast of an uploaded configuration
	api.HandleFunc("/export/{format:csv|xlsx|json}", h.handleExport).Methods(http.MethodPost)

	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)

	return r
}

type forecastResponse struct {
	Scenarios  []scenarioResponse `json:"scenarios"`
	Labels     []string           `json:"labels"`
	CSV        string             `json:"csv"`
	Warnings   []string           `json:"warnings,omitempty"`
	CacheHits  int                `json:"cacheHits"`
	Duration   string             `json:"duration"`
	ConfigYAML string             `json:"configYaml,omitempty"`
}

type scenarioResponse struct {
	Name          string                    `json:"name"`
	RunID         string                    `json:"runId"`
	Fingerprint   string                    `json:"fingerprint"`
	KPIs          engine.KPIs               `json:"kpis"`
	TieOut        statements.Reconciliation `json:"tieOut"`
	Notes         []string                  `json:"notes,omitempty"`
	Optimizations []optimization.Summary    `json:"optimizations,omitempty"`
}

type snapshotResponse struct {
	RunID    string         `json:"runId"`
	Cached   bool           `json:"cached"`
	Notes    []string       `json:"notes,omitempty"`
	Result   *engine.Result `json:"result"`
	Duration string         `json:"duration"`
}

func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	start := time.Now()

	configBytes, ok := h.readUpload(w, r, op)
	if !ok {
		return
	}

	opts := forecastOptions{}
	if raw := r.FormValue("optimize"); raw != "" {
		optimize, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid optimize value %q", raw), op)
			return
		}
		opts.Optimize = optimize
	}

	run, status, err := h.runForecast(r.Context(), configBytes, opts, op)
	if err != nil {
		h.respondError(w, status, err.Error(), op)
		return
	}

	csvText, err := output.CsvString(run.results)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}

	response := forecastResponse{
		Scenarios: make([]scenarioResponse, 0, len(run.results)),
		CSV:       csvText,
		Warnings:  run.warnings,
		CacheHits: run.cacheHits,
	}
	for _, fc := range run.results {
		if response.Labels == nil {
			response.Labels = fc.Result.Labels
		}
		response.Scenarios = append(response.Scenarios, scenarioResponse{
			Name:          fc.Name,
			RunID:         fc.RunID,
			Fingerprint:   fc.Result.Fingerprint,
			KPIs:          fc.Result.KPIs,
			TieOut:        fc.Result.CashFlow.Detail.Reconciliation,
			Notes:         fc.Notes,
			Optimizations: fc.Optimizations,
		})
	}
	if opts.Optimize {
		response.ConfigYAML = string(run.configYAML)
	}

	elapsed := time.Since(start)
	response.Duration = elapsed.String()
	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Int("cacheHits", run.cacheHits),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSnapshot"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var in engine.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode input snapshot: %v", err), op)
		return
	}

	result, hit, err := cache.Compute(r.Context(), h.logger, h.store, in)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error(), op)
		return
	}

	fc := forecast.New("snapshot", result)
	elapsed := time.Since(start)
	h.logger.Info("snapshot computed",
		zap.String("op", op),
		zap.String("runId", fc.RunID),
		zap.Bool("cached", hit),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, snapshotResponse{
		RunID:    fc.RunID,
		Cached:   hit,
		Notes:    fc.Notes,
		Result:   result,
		Duration: elapsed.String(),
	})
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"
	format := mux.Vars(r)["format"]

	configBytes, ok := h.readUpload(w, r, op)
	if !ok {
		return
	}

	run, status, err := h.runForecast(r.Context(), configBytes, forecastOptions{}, op)
	if err != nil {
		h.respondError(w, status, err.Error(), op)
		return
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case constants.OutputFormatCSV:
		contentType = "text/csv"
		err = output.WriteCsv(&buf, run.results)
	case constants.OutputFormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = output.WriteXLSX(&buf, run.results)
	default:
		contentType = "application/json"
		err = output.WriteJSON(&buf, run.results)
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=project-feasibility.%s", format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write export",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// readUpload returns the uploaded configuration file. It has already
// answered the request when ok is false.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request, op string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return nil, false
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "missing configuration file", op)
		return nil, false
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read configuration: %v", err), op)
		return nil, false
	}
	return buf.Bytes(), true
}

type forecastRun struct {
	results    []forecast.Forecast
	warnings   []string
	cacheHits  int
	configYAML []byte
}

// runForecast loads, optionally optimizes and runs an uploaded
// configuration. On failure it returns the HTTP status to answer with.
func (h *handler) runForecast(ctx context.Context, configBytes []byte, opts forecastOptions, op string) (*forecastRun, int, error) {
	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(configBytes))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	run := &forecastRun{
		warnings:   cfg.ValidateConfiguration(),
		configYAML: configBytes,
	}

	var optimizationResult *optimizer.Result
	if opts.Optimize {
		runner, err := optimizer.NewRunner(h.logger, cfg)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("failed to initialize optimizer: %w", err)
		}
		optimizationResult, err = runner.Run()
		if err != nil {
			return nil, statusFor(err), fmt.Errorf("optimizer execution failed: %w", err)
		}
		if updated, err := yaml.Marshal(cfg); err != nil {
			h.logger.Warn("failed to marshal optimized configuration",
				zap.String("op", op),
				zap.Error(err),
			)
		} else {
			run.configYAML = updated
		}
	}

	var hits atomic.Int32
	compute := func(logger *zap.Logger, in engine.Input) (*engine.Result, error) {
		result, hit, err := cache.Compute(ctx, logger, h.store, in)
		if hit {
			hits.Add(1)
		}
		return result, err
	}
	run.results, err = forecast.GetForecastWith(h.logger, *cfg, compute)
	if err != nil {
		return nil, statusFor(err), fmt.Errorf("failed to compute forecast: %w", err)
	}
	run.cacheHits = int(hits.Load())

	if optimizationResult != nil && !optimizationResult.Empty() {
		optimizationResult.Apply(run.results)
	}
	return run, http.StatusOK, nil
}

// statusFor maps a run error to a response status. Inputs the engine rejects
// are the client's fault.
func statusFor(err error) int {
	if errors.Is(err, engine.ErrConfiguration) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
