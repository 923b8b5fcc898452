package webui

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/db"
	"inpaint_backend/inpaint"
	"inpaint_backend/logging"
	"inpaint_backend/mask"
	"inpaint_backend/metrics"
	"inpaint_backend/pconv"
	"inpaint_backend/shutdown"
	"inpaint_backend/vision"
)

// Session is the interactive session the API drives. *inpaint.Session
// implements it.
type Session interface {
	Press(pt mask.Point) (bool, error)
	Move(pt mask.Point) (bool, error)
	Reset() error
	Inpaint(ctx context.Context) (*inpaint.Result, error)
	State() inpaint.State
	Mode() mask.Mode
	Side() int
	StrokeLen() int
	Cycles() int
	LastRunID() string
	WorkingImage() (*image.RGBA, error)
	MaskPreview() (*image.RGBA, error)
}

// HistoryStore lists recorded runs. *db.Repository implements it.
type HistoryStore interface {
	ListRuns(ctx context.Context, limit int) ([]db.RunRecord, error)
	CountRuns(ctx context.Context) (int64, error)
}

// MetricsSource supplies run statistics. *metrics.Store implements it.
type MetricsSource interface {
	RunMetrics() metrics.RunMetrics
	RecentRuns(limit int) []metrics.RunSample
	SystemStatus() metrics.SystemStatus
}

// OperationTracker lets shutdown wait for a running cycle.
// *shutdown.Manager implements it.
type OperationTracker interface {
	WrapOperation(fn func() error) error
}

// History paging limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// API serves the session over JSON and PNG endpoints.
type API struct {
	session Session
	history HistoryStore
	metrics MetricsSource
	ops     OperationTracker
	events  *Broadcaster
	logger  *logging.Logger
	cfg     ServerConfig
}

// StatusResponse describes the session.
type StatusResponse struct {
	State        string `json:"state"`
	Mode         string `json:"mode"`
	Side         int    `json:"side"`
	StrokePoints int    `json:"stroke_points"`
	Cycles       int    `json:"cycles"`
	LastRunID    string `json:"last_run_id,omitempty"`
}

// StrokeRequest is one pointer event in image pixels.
type StrokeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeResponse reports whether the point was taken.
type StrokeResponse struct {
	Accepted     bool   `json:"accepted"`
	StrokePoints int    `json:"stroke_points"`
	State        string `json:"state"`
}

// InpaintResponse summarizes a finished cycle.
type InpaintResponse struct {
	RunID         string `json:"run_id"`
	Mode          string `json:"mode"`
	Side          int    `json:"side"`
	KnownPixels   int    `json:"known_pixels"`
	UnknownPixels int    `json:"unknown_pixels"`
	StrokePoints  int    `json:"stroke_points,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	Cycles        int    `json:"cycles"`
}

// HistoryResponse is one page of run history.
type HistoryResponse struct {
	Runs  []db.RunRecord `json:"runs"`
	Total int64          `json:"total"`
}

// MetricsResponse is served on /api/metrics.
type MetricsResponse struct {
	System metrics.SystemStatus `json:"system"`
	Runs   metrics.RunMetrics   `json:"runs"`
	Recent []metrics.RunSample  `json:"recent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes adds the API routes to mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/image", a.handleImage)
	mux.HandleFunc("GET /api/mask", a.handleMask)
	mux.HandleFunc("POST /api/stroke/press", a.handleStroke(Session.Press))
	mux.HandleFunc("POST /api/stroke/move", a.handleStroke(Session.Move))
	mux.HandleFunc("POST /api/reset", a.handleReset)
	mux.HandleFunc("POST /api/inpaint", a.handleInpaint)
	mux.HandleFunc("GET /api/history", a.handleHistory)
	if a.metrics != nil {
		mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	}
}

func (a *API) status() StatusResponse {
	return StatusResponse{
		State:        a.session.State().String(),
		Mode:         a.session.Mode().String(),
		Side:         a.session.Side(),
		StrokePoints: a.session.StrokeLen(),
		Cycles:       a.session.Cycles(),
		LastRunID:    a.session.LastRunID(),
	}
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.status())
}

func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := a.session.WorkingImage()
	a.writePNG(w, img, err)
}

func (a *API) handleMask(w http.ResponseWriter, r *http.Request) {
	img, err := a.session.MaskPreview()
	a.writePNG(w, img, err)
}

func (a *API) writePNG(w http.ResponseWriter, img *image.RGBA, err error) {
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	data, err := vision.EncodePNG(img)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *API) handleStroke(add func(Session, mask.Point) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StrokeRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}

		accepted, err := add(a.session, mask.Point{X: req.X, Y: req.Y})
		if err != nil {
			a.writeError(w, statusFor(err), err)
			return
		}

		resp := StrokeResponse{
			Accepted:     accepted,
			StrokePoints: a.session.StrokeLen(),
			State:        a.session.State().String(),
		}
		if accepted {
			a.publish(EventStroke, StrokeEvent{Point: mask.Point{X: req.X, Y: req.Y}, Press: r.URL.Path == "/api/stroke/press", StrokePoints: resp.StrokePoints})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// StrokeEvent is the payload of EventStroke.
type StrokeEvent struct {
	mask.Point
	Press        bool `json:"press"`
	StrokePoints int  `json:"stroke_points"`
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := a.session.Reset(); err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	status := a.status()
	a.publish(EventReset, status)
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleInpaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.InferenceTimeout)
	defer cancel()

	var result *inpaint.Result
	run := func() error {
		a.publish(EventInpaintStarted, a.status())
		var err error
		result, err = a.session.Inpaint(ctx)
		return err
	}

	var err error
	if a.ops != nil {
		err = a.ops.WrapOperation(run)
	} else {
		err = run()
	}
	if err != nil {
		a.publish(EventInpaintFailed, errorResponse{Error: err.Error()})
		a.writeError(w, statusFor(err), err)
		return
	}

	m := result.Metrics
	resp := InpaintResponse{
		RunID:         m.RunID,
		Mode:          m.Mode,
		Side:          m.Side,
		KnownPixels:   m.KnownPixels,
		UnknownPixels: m.UnknownPixels,
		StrokePoints:  m.StrokePoints,
		DurationMS:    m.Total.Milliseconds(),
		Cycles:        a.session.Cycles(),
	}
	a.publish(EventInpaintComplete, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeJSON(w, http.StatusOK, HistoryResponse{Runs: []db.RunRecord{}})
		return
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	runs, err := a.history.ListRuns(r.Context(), limit)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := a.history.CountRuns(r.Context())
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs, Total: total})
}

// recentMetricsRuns is how many samples /api/metrics includes.
const recentMetricsRuns = 10

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsResponse{
		System: a.metrics.SystemStatus(),
		Runs:   a.metrics.RunMetrics(),
		Recent: a.metrics.RecentRuns(recentMetricsRuns),
	})
}

func (a *API) publish(eventType string, data interface{}) {
	if a.events != nil {
		a.events.Publish(NewEvent(eventType, data))
	}
}

// statusFor maps session and model errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, inpaint.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, shutdown.ErrShuttingDown), errors.Is(err, pconv.ErrRunnerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, pconv.ErrAcquireTimeout):
		return http.StatusGatewayTimeout
	case pconv.IsFatal(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.logger.Error("API error", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// healthResponse is served on /health without authentication.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
	State   string `json:"state"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: core.Version,
		Mode:    a.session.Mode().String(),
		State:   a.session.State().String(),
	})
}
