package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/metrics"
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/pipeline"
	"github.com/AngelCh415/mkt-kpi/internal/store"
	"github.com/AngelCh415/mkt-kpi/internal/telemetry"
)

const eventsCSV = "campaign_id,channel,date,event_type\n" +
	"A,Google,2024-01-01,page_view\n" +
	"A,Google,2024-01-01,page_view\n" +
	"A,Google,2024-01-02,signup\n" +
	"A,Google,2024-01-03,purchase\n"

const costsCSV = "campaign_id,channel,cpc,cpm\nA,Google,1.5,10\n"

func newTestRouter(t *testing.T, maxBytes int64, limiter *rate.Limiter) (http.Handler, *store.MemoryStore) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	tel := telemetry.NewMetrics(reg)
	st := store.NewMemoryStore(metrics.NewService(10, log), tel)
	engine := pipeline.NewEngine(pipeline.DefaultOptions(), log, tel)
	remote := pipeline.NewRemote(engine, st, ingest.NewHTTPClient(time.Second), pipeline.RemoteConfig{MaxBytes: maxBytes}, log)
	return NewRouter(log, Deps{
		Engine:         engine,
		Store:          st,
		Remote:         remote,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Limiter:        limiter,
		MaxUploadBytes: maxBytes,
	}), st
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestUploadRequiresRole(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)

	body, ct := multipartBody(t, map[string]string{"events_csv": eventsCSV})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnauthorized, do(h, req).Code)

	body, ct = multipartBody(t, map[string]string{"events_csv": eventsCSV})
	req = httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Role", "viewer")
	assert.Equal(t, http.StatusForbidden, do(h, req).Code)
}

func TestUploadAndDashboard(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)

	body, ct := multipartBody(t, map[string]string{"events_csv": eventsCSV, "costs_csv": costsCSV})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Role", "Editor")
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up struct {
		Generation uint64                      `json:"generation"`
		Costs      *models.NormalizationReport `json:"costs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.EqualValues(t, 1, up.Generation)
	require.NotNil(t, up.Costs)
	assert.Equal(t, 1, up.Costs.Normalized)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2.0, out["views"])
	assert.Equal(t, 1.52, out["estimated_cac"])
	dq := out["data_quality"].(map[string]any)
	assert.Equal(t, 1.0, dq["costs"].(map[string]any)["normalized"])

	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUploadRejectsInvalidEventType(t *testing.T) {
	h, st := newTestRouter(t, 1<<20, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload/events", strings.NewReader(eventsCSV+"A,Google,2024-01-04,click\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-User-Role", "admin")
	rec := do(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var rep models.ErrorReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "validation_error", rep.Kind)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0].Reason, "click")
	assert.Zero(t, st.Current().Generation)
}

func TestUploadSeparateFiles(t *testing.T) {
	h, st := newTestRouter(t, 1<<20, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload/costs", strings.NewReader(costsCSV))
	req.Header.Set("X-User-Role", "admin")
	require.Equal(t, http.StatusOK, do(h, req).Code)
	_, err := st.Result()
	assert.ErrorIs(t, err, store.ErrNoData)

	body, ct := multipartBody(t, map[string]string{"file": eventsCSV})
	req = httptest.NewRequest(http.MethodPost, "/upload/events", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Role", "admin")
	require.Equal(t, http.StatusOK, do(h, req).Code)

	res, err := st.Result()
	require.NoError(t, err)
	v, ok := res.EstimatedCAC.Get()
	require.True(t, ok)
	assert.Equal(t, 1.52, v)
	assert.EqualValues(t, 2, st.Current().Generation)
}

func TestUploadXLSX(t *testing.T) {
	h, st := newTestRouter(t, 1<<20, nil)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"campaign_id", "channel", "date", "impressions", "clicks", "conversions"},
		{"A", "Google", "2024-01-01", 1000, 50, 5},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	req := httptest.NewRequest(http.MethodPost, "/upload/events", &buf)
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	req.Header.Set("X-User-Role", "admin")
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res, err := st.Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1000, res.Views)
	assert.EqualValues(t, 5, res.Purchases)
}

func TestUploadUnknownFileType(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/leads", strings.NewReader(costsCSV))
	req.Header.Set("X-User-Role", "admin")
	assert.Equal(t, http.StatusNotFound, do(h, req).Code)
}

func TestUploadTooLarge(t *testing.T) {
	h, _ := newTestRouter(t, 64, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/events", strings.NewReader(eventsCSV+strings.Repeat("A,Google,2024-01-01,page_view\n", 10)))
	req.Header.Set("X-User-Role", "admin")
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(h, req).Code)
}

func TestUploadRateLimited(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, rate.NewLimiter(rate.Every(time.Hour), 1))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/upload/costs", strings.NewReader(costsCSV))
		req.Header.Set("X-User-Role", "admin")
		return do(h, req).Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestDashboardBeforeUpload(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/dashboard.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload marketing event data first")
}

func TestDashboardSectionPagination(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	var sb strings.Builder
	sb.WriteString("campaign_id,channel,date,impressions,clicks,conversions\n")
	for _, c := range []string{"A", "B", "C", "D", "E"} {
		sb.WriteString(c + ",Google,2024-01-01,100,10,1\n")
	}
	req := httptest.NewRequest(http.MethodPost, "/upload/events", strings.NewReader(sb.String()))
	req.Header.Set("X-User-Role", "admin")
	require.Equal(t, http.StatusOK, do(h, req).Code)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/dashboard/campaigns?page=2&per_page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page []models.CampaignMetric
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].CampaignID)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard/campaigns?page=9&per_page=2", nil))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard/funnel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodGet, "/dashboard/nope", nil)).Code)
}

func TestIngestAndExportNotConfigured(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	req := httptest.NewRequest(http.MethodPost, "/ingest/run", nil)
	req.Header.Set("X-User-Role", "admin")
	rec := do(h, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "empty url")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/costs", strings.NewReader(costsCSV))
	req.Header.Set("X-User-Role", "admin")
	do(h, req)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mktkpi_uploads_total{file_type="costs",outcome="accepted"} 1`)
}

func TestDashboardSegmentSections(t *testing.T) {
	h, _ := newTestRouter(t, 1<<20, nil)
	in := "Campaign_ID,Company,Campaign_Type,Target_Audience,Channel_Used,Clicks,Impressions,ROI,Date\n" +
		"1,Alpha,Email,Men 18-24,YouTube,100,1000,4.5,2021-01-01\n" +
		"2,Beta,Social Media,Men 18-24,YouTube,100,1000,2.5,2021-01-01\n" +
		"3,Beta,Email,Women 25-34,Google Ads,100,1000,3.5,2021-01-01\n"
	req := httptest.NewRequest(http.MethodPost, "/upload/events", strings.NewReader(in))
	req.Header.Set("X-User-Role", "admin")
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard/campaign_types", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var types []models.SegmentMetric
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	require.Len(t, types, 2)
	assert.Equal(t, "Email", types[0].Segment)
	roi, ok := types[0].ROI.Get()
	require.True(t, ok)
	assert.Equal(t, 4.0, roi)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard/audiences?per_page=1", nil))
	var audiences []models.SegmentMetric
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audiences))
	require.Len(t, audiences, 1)
	assert.Equal(t, "Men 18-24", audiences[0].Segment)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard/companies", nil))
	var companies []models.SegmentMetric
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	require.Len(t, companies, 2)
	assert.Equal(t, 2, companies[1].Campaigns)
}
