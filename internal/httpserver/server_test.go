package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shelfsight/querydeck/internal/analytics"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Dashboard: config.DashboardConfig{
			DefaultPageSize:  25,
			DefaultTopN:      10,
			CVRBasis:         "clicks",
			ComparisonOffset: 7 * 24 * time.Hour,
		},
		Anomaly: config.AnomalyConfig{
			WarnPct:        0.25,
			CriticalPct:    0.50,
			MinImpressions: 100,
		},
	}
	return NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDashboardEmptyStore(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/metrics?entity=query", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page analytics.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Zero(t, page.TotalPages)
	assert.Empty(t, page.Rows)
}

func TestDashboardRejectsBadJSON(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dashboard/metrics", bytes.NewBufferString("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrandCRUD(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(models.Brand{Name: "Acme", ASINs: []string{"B001"}})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/brands", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.Brand
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/brands/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/brands/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/brands/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrandValidation(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(models.Brand{Name: ""})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/brands", bytes.NewBuffer(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewCRUD(t *testing.T) {
	srv := testServer(t)

	view := models.SavedView{
		Name: "top purchases",
		Table: models.TableState{
			SortField:     "purchases",
			SortDirection: models.SortDesc,
			PageSize:      50,
		},
	}
	body, _ := json.Marshal(view)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/views", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.SavedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "purchases", created.Table.SortField)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/views", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []models.SavedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 1)
}

func TestSessionRoundTrip(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "light", snap["theme"])
	assert.Equal(t, "clicks", snap["cvr_basis"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/session",
		bytes.NewBufferString(`{"theme":"dark","cvr_basis":"impressions"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "dark", snap["theme"])
	assert.Equal(t, "impressions", snap["cvr_basis"])
}

func TestTimeSeriesUsesSessionBrand(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/time-series?identifier=yoga+mat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// A session brand that resolves to nothing must fail the query the
	// same way it fails the dashboard.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/session",
		bytes.NewBufferString(`{"brand_id":"ghost"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/time-series?identifier=yoga+mat", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Explicit ASINs on the request still override the session brand.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/time-series?identifier=yoga+mat&asins=B001", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnomaliesEmpty(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anomalies", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anomalies?since=not-a-time", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/period-comparison", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/funnel", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
