package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shelfsight/querydeck/internal/analytics"
	"github.com/shelfsight/querydeck/internal/cache"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/dashboard"
	"github.com/shelfsight/querydeck/internal/database"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server. Nil
// database fields fall back to in-memory implementations.
type Dependencies struct {
	DB         *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and dashboard services.
type Server struct {
	metricsService    *dashboard.MetricsService
	comparisonService *dashboard.ComparisonService
	anomalyService    *dashboard.AnomalyService
	brandService      *dashboard.BrandService
	viewService       *dashboard.ViewService
	session           *dashboard.Session
	logger            *zap.Logger
	config            *config.Config
	metrics           *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize repositories
	var brandRepo storage.BrandRepo
	var viewRepo storage.ViewRepo
	var anomalyRepo storage.AnomalyRepo

	if deps.DB != nil {
		brandRepo = storage.NewPostgresBrandRepo(deps.DB.Pool)
		viewRepo = storage.NewPostgresViewRepo(deps.DB.Pool)
		anomalyRepo = storage.NewPostgresAnomalyRepo(deps.DB.Pool)
	} else {
		brandRepo = storage.NewInMemoryBrandRepo()
		viewRepo = storage.NewInMemoryViewRepo()
		anomalyRepo = storage.NewInMemoryAnomalyRepo()
	}

	var metricStore storage.MetricStore
	if deps.ClickHouse != nil {
		metricStore = storage.NewClickHouseMetricStore(deps.ClickHouse.Conn)
		metricStore = storage.NewInstrumentedMetricStore(metricStore, "clickhouse", deps.Metrics)
	} else {
		metricStore = storage.NewInMemoryMetricStore()
		metricStore = storage.NewInstrumentedMetricStore(metricStore, "memory", deps.Metrics)
	}
	if deps.Redis != nil {
		metricStore = cache.NewCachedMetricStore(
			metricStore,
			deps.Redis.Client,
			deps.Config.Redis.CacheTTL,
			deps.Logger,
			deps.Metrics,
		)
	}

	// Initialize services
	mSvc := dashboard.NewMetricsService(metricStore, brandRepo, deps.Config.Dashboard, deps.Logger, deps.Metrics)
	cSvc := dashboard.NewComparisonService(mSvc, deps.Config.Dashboard, deps.Logger, deps.Metrics)
	aSvc := dashboard.NewAnomalyService(cSvc, anomalyRepo, deps.Config.Anomaly, deps.Logger, deps.Metrics)

	s := &Server{
		metricsService:    mSvc,
		comparisonService: cSvc,
		anomalyService:    aSvc,
		brandService:      dashboard.NewBrandService(brandRepo),
		viewService:       dashboard.NewViewService(viewRepo),
		session:           dashboard.NewSession(analytics.CVRBasis(deps.Config.Dashboard.CVRBasis)),
		logger:            deps.Logger,
		config:            deps.Config,
		metrics:           deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Dashboard
	mux.HandleFunc("/api/dashboard/metrics", s.handleDashboardMetrics)
	mux.HandleFunc("/api/time-series", s.handleTimeSeries)
	mux.HandleFunc("/api/period-comparison", s.handlePeriodComparison)
	mux.HandleFunc("/api/waterfall", s.handleWaterfall)
	mux.HandleFunc("/api/funnel", s.handleFunnel)

	// Anomalies
	mux.HandleFunc("/api/anomalies", s.handleAnomalies)
	mux.HandleFunc("/api/anomalies/scan", s.handleAnomalyScan)

	// Brands
	mux.HandleFunc("/api/brands", s.handleBrands)
	mux.HandleFunc("/api/brands/", s.handleBrandByID)

	// Saved views
	mux.HandleFunc("/api/views", s.handleViews)
	mux.HandleFunc("/api/views/", s.handleViewByID)

	// Session preferences
	mux.HandleFunc("/api/session", s.handleSession)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Dashboard ----

type dashboardRequest struct {
	Filter   models.MetricFilter `json:"filter"`
	Table    models.TableState   `json:"table"`
	CVRBasis analytics.CVRBasis  `json:"cvr_basis,omitempty"`
}

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	switch r.Method {
	case http.MethodGet:
		req = s.dashboardRequestFromQuery(r)
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.applySessionDefaults(&req)

	page, err := s.metricsService.Dashboard(r.Context(), req.Filter, req.Table, req.CVRBasis)
	if err != nil {
		s.logger.Error("dashboard query failed", zap.Error(err))
		s.errorResponse(w, "failed to query metrics", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, page)
}

// dashboardRequestFromQuery maps GET query params onto the same request
// shape the POST body uses.
func (s *Server) dashboardRequestFromQuery(r *http.Request) dashboardRequest {
	q := r.URL.Query()
	req := dashboardRequest{
		Filter:   s.filterFromQuery(r),
		CVRBasis: analytics.CVRBasis(q.Get("cvr_basis")),
	}
	req.Table.Search = q.Get("search")
	req.Table.SortField = q.Get("sort_field")
	req.Table.SortDirection = models.SortDirection(q.Get("sort_direction"))
	req.Table.Page, _ = strconv.Atoi(q.Get("page"))
	req.Table.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return req
}

func (s *Server) filterFromQuery(r *http.Request) models.MetricFilter {
	q := r.URL.Query()
	f := models.MetricFilter{
		Entity:      models.EntityKind(q.Get("entity")),
		Marketplace: q.Get("marketplace"),
		BrandID:     q.Get("brand_id"),
	}
	if asins := q.Get("asins"); asins != "" {
		f.ASINs = strings.Split(asins, ",")
	}
	if start := q.Get("start_date"); start != "" {
		f.StartDate, _ = time.Parse("2006-01-02", start)
	}
	if end := q.Get("end_date"); end != "" {
		f.EndDate, _ = time.Parse("2006-01-02", end)
	}
	return f
}

// applySessionDefaults fills filter fields the request leaves empty from
// the session preferences.
func (s *Server) applySessionDefaults(req *dashboardRequest) {
	snap := s.session.Snapshot()
	if req.Filter.BrandID == "" && len(req.Filter.ASINs) == 0 {
		req.Filter.BrandID = snap.BrandID
	}
	if req.Filter.Marketplace == "" {
		req.Filter.Marketplace = snap.Marketplace
	}
	if req.CVRBasis == "" {
		req.CVRBasis = snap.CVRBasis
	}
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		s.errorResponse(w, "identifier required", http.StatusBadRequest)
		return
	}

	req := dashboardRequest{
		Filter:   s.filterFromQuery(r),
		CVRBasis: analytics.CVRBasis(r.URL.Query().Get("cvr_basis")),
	}
	s.applySessionDefaults(&req)

	series, err := s.metricsService.TimeSeries(r.Context(), identifier, req.Filter, req.CVRBasis)
	if err != nil {
		s.logger.Error("time series query failed", zap.Error(err))
		s.errorResponse(w, "failed to query time series", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, series)
}

// ---- Period Comparison ----

type comparisonRequest struct {
	Filter     models.MetricFilter `json:"filter"`
	OffsetDays int                 `json:"offset_days,omitempty"`
	CVRBasis   analytics.CVRBasis  `json:"cvr_basis,omitempty"`
}

func (s *Server) handlePeriodComparison(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req comparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	offset := time.Duration(req.OffsetDays) * 24 * time.Hour
	rows, err := s.comparisonService.Compare(r.Context(), req.Filter, offset, req.CVRBasis)
	if err != nil {
		s.logger.Error("comparison failed", zap.Error(err))
		s.errorResponse(w, "failed to compute comparison", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, rows)
}

// ---- Waterfall ----

func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	metric := q.Get("metric")
	if metric == "" {
		metric = "purchases"
	}
	sortKey := analytics.WaterfallSort(q.Get("sort"))
	if sortKey == "" {
		sortKey = analytics.SortImpact
	}
	topN, _ := strconv.Atoi(q.Get("top_n"))
	offsetDays, _ := strconv.Atoi(q.Get("offset_days"))

	wf, err := s.comparisonService.Waterfall(
		r.Context(),
		s.filterFromQuery(r),
		metric,
		sortKey,
		topN,
		time.Duration(offsetDays)*24*time.Hour,
	)
	if err != nil {
		s.logger.Error("waterfall failed", zap.Error(err))
		s.errorResponse(w, "failed to build waterfall", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, wf)
}

// ---- Funnel ----

func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	funnel, err := s.metricsService.Funnel(r.Context(), s.filterFromQuery(r))
	if err != nil {
		s.logger.Error("funnel failed", zap.Error(err))
		s.errorResponse(w, "failed to build funnel", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, funnel)
}

// ---- Anomalies ----

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.errorResponse(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	anomalies, err := s.anomalyService.List(r.Context(), since)
	if err != nil {
		s.logger.Error("anomaly list failed", zap.Error(err))
		s.errorResponse(w, "failed to list anomalies", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, anomalies)
}

func (s *Server) handleAnomalyScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var filter models.MetricFilter
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	found, err := s.anomalyService.Scan(r.Context(), filter)
	if err != nil {
		s.logger.Error("anomaly scan failed", zap.Error(err))
		s.errorResponse(w, "scan failed", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, found)
}

// ---- Brands ----

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		brands, err := s.brandService.ListBrands(r.Context())
		if err != nil {
			s.logger.Error("brand list failed", zap.Error(err))
			s.errorResponse(w, "failed to list brands", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, brands)

	case http.MethodPost:
		var b models.Brand
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.brandService.UpsertBrand(r.Context(), &b); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, &b)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBrandByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/brands/")
	if id == "" {
		s.errorResponse(w, "brand id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := s.brandService.GetBrand(r.Context(), id)
		if err != nil {
			s.logger.Error("brand lookup failed", zap.Error(err))
			s.errorResponse(w, "failed to get brand", http.StatusInternalServerError)
			return
		}
		if b == nil {
			s.errorResponse(w, "brand not found", http.StatusNotFound)
			return
		}
		s.jsonResponse(w, b)

	case http.MethodDelete:
		if err := s.brandService.DeleteBrand(r.Context(), id); err != nil {
			s.logger.Error("brand delete failed", zap.Error(err))
			s.errorResponse(w, "failed to delete brand", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "deleted"})

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Saved Views ----

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		views, err := s.viewService.ListViews(r.Context())
		if err != nil {
			s.logger.Error("view list failed", zap.Error(err))
			s.errorResponse(w, "failed to list views", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, views)

	case http.MethodPost:
		var v models.SavedView
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.viewService.UpsertView(r.Context(), &v); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, &v)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleViewByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/views/")
	if id == "" {
		s.errorResponse(w, "view id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, err := s.viewService.GetView(r.Context(), id)
		if err != nil {
			s.logger.Error("view lookup failed", zap.Error(err))
			s.errorResponse(w, "failed to get view", http.StatusInternalServerError)
			return
		}
		if v == nil {
			s.errorResponse(w, "view not found", http.StatusNotFound)
			return
		}
		s.jsonResponse(w, v)

	case http.MethodDelete:
		if err := s.viewService.DeleteView(r.Context(), id); err != nil {
			s.logger.Error("view delete failed", zap.Error(err))
			s.errorResponse(w, "failed to delete view", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "deleted"})

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Session ----

type sessionUpdate struct {
	BrandID     *string `json:"brand_id,omitempty"`
	Marketplace *string `json:"marketplace,omitempty"`
	Theme       *string `json:"theme,omitempty"`
	CVRBasis    *string `json:"cvr_basis,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.jsonResponse(w, s.session.Snapshot())

	case http.MethodPut:
		var upd sessionUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if upd.BrandID != nil {
			s.session.SetBrand(*upd.BrandID)
		}
		if upd.Marketplace != nil {
			s.session.SetMarketplace(*upd.Marketplace)
		}
		if upd.Theme != nil {
			s.session.SetTheme(*upd.Theme)
		}
		if upd.CVRBasis != nil {
			s.session.SetCVRBasis(analytics.CVRBasis(*upd.CVRBasis))
		}
		s.jsonResponse(w, s.session.Snapshot())

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
