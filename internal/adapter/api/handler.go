package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/couchcryptid/covid-report-etl/internal/observability"
	"github.com/gorilla/mux"
)

// ResultProvider exposes the currently published ingestion result.
type ResultProvider interface {
	Current() *domain.IngestionResult
}

// Options sets query defaults.
type Options struct {
	Window    int
	TopN      int
	CacheSize int
}

// Handler serves read-only JSON queries over the current result.
type Handler struct {
	results ResultProvider
	opts    Options
	cache   *responseCache
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates a query handler. Zero options fall back to a 7-day window,
// top 10 and a 256-entry cache.
func NewHandler(results ResultProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if opts.Window < 1 {
		opts.Window = domain.DefaultWindow
	}
	if opts.TopN < 1 {
		opts.TopN = 10
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 256
	}
	return &Handler{
		results: results,
		opts:    opts,
		cache:   newResponseCache(opts.CacheSize),
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterRoutes registers all query routes under /api.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/api").Subrouter()
	r.Use(h.instrument)
	r.HandleFunc("/status", h.query(h.status)).Methods(http.MethodGet)
	r.HandleFunc("/dates", h.query(h.dates)).Methods(http.MethodGet)
	r.HandleFunc("/regions", h.query(h.regions)).Methods(http.MethodGet)
	r.HandleFunc("/regions/{region}/series", h.query(h.series)).Methods(http.MethodGet)
	r.HandleFunc("/regions/{region}/rolling", h.query(h.rolling)).Methods(http.MethodGet)
	r.HandleFunc("/regions/{region}/ratios", h.query(h.ratios)).Methods(http.MethodGet)
	r.HandleFunc("/top", h.query(h.top)).Methods(http.MethodGet)
	r.HandleFunc("/latest", h.query(h.latest)).Methods(http.MethodGet)
}

// ErrorResponse is the body of every failed query.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var errNoResult = errors.New("no ingestion result published yet")

// badRequest marks parameter errors that map to 400.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func badRequestf(format string, args ...any) error {
	return badRequest{err: fmt.Errorf(format, args...)}
}

type queryFunc func(r *http.Request, res *domain.IngestionResult) (any, error)

// query resolves the current result, serves cached bodies, and maps domain
// errors onto status codes.
func (h *Handler) query(fn queryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h.results.Current()
		if res == nil {
			h.sendError(w, errNoResult)
			return
		}

		key := r.URL.Path + "?" + r.URL.Query().Encode()
		if body, ok := h.cache.get(res, key); ok {
			h.metrics.APICache.WithLabelValues("hit").Inc()
			writeBody(w, http.StatusOK, body)
			return
		}
		h.metrics.APICache.WithLabelValues("miss").Inc()

		v, err := fn(r, res)
		if err != nil {
			h.sendError(w, err)
			return
		}
		body, err := json.Marshal(v)
		if err != nil {
			h.logger.Error("encode response", "path", r.URL.Path, "error", err)
			h.sendError(w, err)
			return
		}
		// A request that raced a newer publication must not seed the cache.
		if h.results.Current() == res {
			h.cache.put(res, key, body)
		}
		writeBody(w, http.StatusOK, body)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var br badRequest
	switch {
	case errors.Is(err, errNoResult):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDateNotFound), errors.Is(err, domain.ErrRegionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &br),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrUnknownVariable):
		status = http.StatusBadRequest
	}

	body, _ := json.Marshal(ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	})
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck // client went away
}

// instrument counts requests by route template and status code.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		h.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// --- queries ---

// StatusResponse summarizes the published result.
type StatusResponse struct {
	BuiltAt         time.Time     `json:"built_at"`
	Dates           int           `json:"dates"`
	FirstDate       string        `json:"first_date,omitempty"`
	LastDate        string        `json:"last_date,omitempty"`
	Countries       int           `json:"countries"`
	ObservationRows int           `json:"observation_rows"`
	RowsSkipped     int           `json:"rows_skipped"`
	FilesSkipped    []SkippedFile `json:"files_skipped"`
}

// SkippedFile names a report file left out of the result.
type SkippedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (h *Handler) status(_ *http.Request, res *domain.IngestionResult) (any, error) {
	out := StatusResponse{
		BuiltAt:         res.BuiltAt,
		Dates:           res.Dates.Len(),
		Countries:       len(res.Countries.Regions()),
		ObservationRows: res.Observations.Len(),
		RowsSkipped:     res.RowsSkipped,
		FilesSkipped:    make([]SkippedFile, len(res.Skipped)),
	}
	if keys := res.Dates.Keys(); len(keys) > 0 {
		out.FirstDate = keys[0]
		out.LastDate = keys[len(keys)-1]
	}
	for i, fe := range res.Skipped {
		out.FilesSkipped[i] = SkippedFile{Path: fe.Path, Error: fe.Err.Error()}
	}
	return out, nil
}

func (h *Handler) dates(_ *http.Request, res *domain.IngestionResult) (any, error) {
	return map[string][]string{"dates": res.Dates.Keys()}, nil
}

func (h *Handler) regions(r *http.Request, res *domain.IngestionResult) (any, error) {
	t, err := pickTable(r, res)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"regions": t.Regions()}, nil
}

// SeriesResponse carries one region series.
type SeriesResponse struct {
	Region   string               `json:"region"`
	Variable domain.Variable      `json:"variable"`
	Points   []domain.SeriesPoint `json:"points"`
}

func (h *Handler) series(r *http.Request, res *domain.IngestionResult) (any, error) {
	t, err := pickTable(r, res)
	if err != nil {
		return nil, err
	}
	v, err := variableParam(r, domain.Confirmed)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeParams(r, res.Dates)
	if err != nil {
		return nil, err
	}
	region := mux.Vars(r)["region"]
	points, err := domain.GetSeries(t, region, v, start, end)
	if err != nil {
		return nil, err
	}
	return SeriesResponse{Region: region, Variable: v, Points: points}, nil
}

// RollingResponse carries new counts and their trailing window aggregate.
type RollingResponse struct {
	Region   string                `json:"region"`
	Variable domain.Variable       `json:"variable"`
	Window   int                   `json:"window"`
	Average  bool                  `json:"average"`
	Points   []domain.RollingPoint `json:"points"`
}

func (h *Handler) rolling(r *http.Request, res *domain.IngestionResult) (any, error) {
	t, err := pickTable(r, res)
	if err != nil {
		return nil, err
	}
	v, err := variableParam(r, domain.Confirmed)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeParams(r, res.Dates)
	if err != nil {
		return nil, err
	}
	window, err := intParam(r, "window", h.opts.Window)
	if err != nil {
		return nil, err
	}
	average := false
	if s := r.URL.Query().Get("average"); s != "" {
		if average, err = strconv.ParseBool(s); err != nil {
			return nil, badRequestf("invalid average %q", s)
		}
	}

	region := mux.Vars(r)["region"]
	points, err := domain.GetRolling(t, region, v, start, end, domain.RollingOptions{Window: window, Average: average})
	if err != nil {
		return nil, err
	}
	return RollingResponse{Region: region, Variable: v, Window: window, Average: average, Points: points}, nil
}

// RatiosResponse carries death ratios of one region.
type RatiosResponse struct {
	Region string              `json:"region"`
	Points []domain.DeathRatio `json:"points"`
}

func (h *Handler) ratios(r *http.Request, res *domain.IngestionResult) (any, error) {
	t, err := pickTable(r, res)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeParams(r, res.Dates)
	if err != nil {
		return nil, err
	}
	region := mux.Vars(r)["region"]
	points, err := domain.DeathRatios(t, region, start, end)
	if err != nil {
		return nil, err
	}
	return RatiosResponse{Region: region, Points: points}, nil
}

// TopResponse lists the leading regions by one variable.
type TopResponse struct {
	By      domain.Variable `json:"by"`
	N       int             `json:"n"`
	Regions []string        `json:"regions"`
}

func (h *Handler) top(r *http.Request, res *domain.IngestionResult) (any, error) {
	by, err := variableParam(r, domain.Confirmed)
	if err != nil {
		return nil, err
	}
	n, err := intParam(r, "n", h.opts.TopN)
	if err != nil {
		return nil, err
	}
	regions, err := domain.TopN(res.Countries, n, by)
	if err != nil {
		return nil, err
	}
	return TopResponse{By: by, N: n, Regions: regions}, nil
}

// LatestResponse carries per-country values on the last report date.
type LatestResponse struct {
	DateKey  string               `json:"date_key"`
	Variable domain.Variable      `json:"variable"`
	Values   []domain.RegionValue `json:"values"`
}

func (h *Handler) latest(r *http.Request, res *domain.IngestionResult) (any, error) {
	v, err := variableParam(r, domain.Confirmed)
	if err != nil {
		return nil, err
	}
	key, values, err := domain.LatestValues(res.Countries, v)
	if err != nil {
		return nil, err
	}
	return LatestResponse{DateKey: key, Variable: v, Values: values}, nil
}

// --- parameters ---

func pickTable(r *http.Request, res *domain.IngestionResult) (*domain.Table, error) {
	switch s := r.URL.Query().Get("table"); s {
	case "", "country":
		return res.Countries, nil
	case "province":
		return res.Observations, nil
	default:
		return nil, badRequestf("unknown table %q", s)
	}
}

func variableParam(r *http.Request, def domain.Variable) (domain.Variable, error) {
	q := r.URL.Query()
	s := q.Get("variable")
	if s == "" {
		s = q.Get("by")
	}
	if s == "" {
		return def, nil
	}
	return domain.ParseVariable(s)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequestf("invalid %s %q", name, s)
	}
	return n, nil
}

// rangeParams resolves start and end date keys, defaulting to the whole index.
func rangeParams(r *http.Request, dates *domain.DateIndex) (int, int, error) {
	if dates.Len() == 0 {
		return 0, 0, domain.ErrInvalidRange
	}
	q := r.URL.Query()
	startKey, endKey := q.Get("start"), q.Get("end")
	if startKey == "" {
		startKey, _ = dates.Key(0)
	}
	if endKey == "" {
		endKey, _ = dates.Key(dates.Last())
	}
	return dates.RangeToSlice(startKey, endKey)
}
