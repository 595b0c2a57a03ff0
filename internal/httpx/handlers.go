package httpx

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/store"
	"github.com/AngelCh415/mkt-kpi/internal/utils"
)

type uploadResponse struct {
	Generation uint64                      `json:"generation"`
	Events     *models.NormalizationReport `json:"events,omitempty"`
	Costs      *models.NormalizationReport `json:"costs,omitempty"`
	Result     *models.KPIResult           `json:"result,omitempty"`
}

func (rt *router) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(rt.deps.MaxUploadBytes); err != nil {
		rt.fail(w, r, err)
		return
	}
	ef, eh, err := r.FormFile("events_csv")
	if err != nil {
		http.Error(w, "events_csv file required", http.StatusBadRequest)
		return
	}
	defer ef.Close()
	ev, err := rt.deps.Engine.LoadEvents(r.Context(), ef, ingest.FormatFromName(eh.Filename))
	if err != nil {
		rt.fail(w, r, err)
		return
	}

	resp := uploadResponse{Events: &ev.Report}
	var snap *store.Snapshot
	cf, ch, err := r.FormFile("costs_csv")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// keep whatever costs are current when the lock is taken
		snap, err = rt.deps.Store.PublishEvents(r.Context(), ev)
	case err != nil:
		rt.fail(w, r, err)
		return
	default:
		defer cf.Close()
		costs, lerr := rt.deps.Engine.LoadCosts(r.Context(), cf, ingest.FormatFromName(ch.Filename))
		if lerr != nil {
			rt.fail(w, r, lerr)
			return
		}
		resp.Costs = &costs.Report
		snap, err = rt.deps.Store.Publish(r.Context(), ev, costs)
	}
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	resp.Generation, resp.Result = snap.Generation, snap.Result
	writeJSON(w, resp)
}

func (rt *router) uploadOne(w http.ResponseWriter, r *http.Request) {
	ft, ok := models.ParseFileType(chi.URLParam(r, "file_type"))
	if !ok {
		http.Error(w, "file_type must be events or costs", http.StatusNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.deps.MaxUploadBytes)
	body, format, closeFn, err := rt.uploadBody(r)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	defer closeFn()

	ev, costs, err := rt.deps.Engine.Load(r.Context(), body, format, ft)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	var (
		snap *store.Snapshot
		resp uploadResponse
	)
	if ft == models.FileEvents {
		resp.Events = &ev.Report
		snap, err = rt.deps.Store.PublishEvents(r.Context(), ev)
	} else {
		resp.Costs = &costs.Report
		snap, err = rt.deps.Store.PublishCosts(r.Context(), costs)
	}
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	resp.Generation, resp.Result = snap.Generation, snap.Result
	writeJSON(w, resp)
}

// uploadBody accepts either a multipart "file" part or the raw request body.
func (rt *router) uploadBody(r *http.Request) (io.Reader, ingest.Format, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(rt.deps.MaxUploadBytes); err != nil {
			return nil, "", nil, err
		}
		f, h, err := r.FormFile("file")
		if err != nil {
			return nil, "", nil, errMissingFile
		}
		return f, ingest.FormatFromName(h.Filename), func() { f.Close() }, nil
	}
	if q := r.URL.Query().Get("format"); q != "" {
		return r.Body, ingest.FormatFromName("upload." + q), func() {}, nil
	}
	if strings.Contains(mt, "spreadsheetml") {
		return r.Body, ingest.FormatXLSX, func() {}, nil
	}
	br := bufio.NewReaderSize(r.Body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", nil, err
	}
	format := ingest.FormatCSV
	if mimetype.Detect(head).Is(xlsxMIME) {
		format = ingest.FormatXLSX
	}
	return br, format, func() {}, nil
}

const (
	sniffLen = 3072
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errMissingFile = errors.New("file part required")

func (rt *router) dashboard(w http.ResponseWriter, r *http.Request) {
	res, err := rt.deps.Store.Result()
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (rt *router) section(w http.ResponseWriter, r *http.Request) {
	res, err := rt.deps.Store.Result()
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	perPage := atoiDef(q.Get("per_page"), 0)
	page := atoiDef(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	switch chi.URLParam(r, "section") {
	case "campaigns":
		writeJSON(w, pageOf(res.Campaigns, perPage, offset))
	case "channels":
		writeJSON(w, pageOf(res.Channels, perPage, offset))
	case "monthly":
		writeJSON(w, pageOf(res.Monthly, perPage, offset))
	case "top_campaigns":
		writeJSON(w, pageOf(res.TopCampaigns, perPage, offset))
	case "bottom_campaigns":
		writeJSON(w, pageOf(res.BottomCampaigns, perPage, offset))
	case "top_channels":
		writeJSON(w, pageOf(res.TopChannels, perPage, offset))
	case "bottom_channels":
		writeJSON(w, pageOf(res.BottomChannels, perPage, offset))
	case "campaign_types":
		writeJSON(w, pageOf(res.CampaignTypes, perPage, offset))
	case "audiences":
		writeJSON(w, pageOf(res.Audiences, perPage, offset))
	case "companies":
		writeJSON(w, pageOf(res.Companies, perPage, offset))
	case "funnel":
		writeJSON(w, res.Funnel)
	case "data_quality":
		writeJSON(w, res.DataQuality)
	default:
		http.Error(w, "unknown section", http.StatusNotFound)
	}
}

func (rt *router) ingestRun(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.deps.Remote.Run(r.Context())
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"generation": snap.Generation})
}

func (rt *router) exportRun(w http.ResponseWriter, r *http.Request) {
	n, err := rt.deps.Remote.Export(r.Context())
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"exported_bytes": n})
}

// fail maps pipeline errors to responses. Reports are returned as-is;
// anything unclassified gets a generic message.
func (rt *router) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rep     models.Reporter
		tooBig  *http.MaxBytesError
		status  *ingest.StatusError
		message = http.StatusText(http.StatusInternalServerError)
		code    = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &rep):
		writeJSONStatus(w, http.StatusBadRequest, rep.Report())
		return
	case errors.As(err, &tooBig), errors.Is(err, multipart.ErrMessageTooLarge):
		code, message = http.StatusRequestEntityTooLarge, "upload exceeds size limit"
	case errors.Is(err, errMissingFile), errors.Is(err, http.ErrNotMultipart):
		code, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNoData):
		code, message = http.StatusNotFound, err.Error()
	case errors.Is(err, ingest.ErrEmptyURL), errors.Is(err, ingest.ErrSinkNotConfigured):
		code, message = http.StatusServiceUnavailable, "remote endpoint not configured"
	case errors.As(err, &status):
		code, message = http.StatusBadGateway, "remote endpoint failed"
	}
	rt.log.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("rid", utils.RID(r.Context())),
		slog.Int("status", code),
		slog.String("err", err.Error()))
	writeJSONStatus(w, code, models.ErrorReport{Kind: "error", Message: message, Errors: []models.Issue{}})
}

func pageOf[T any](rows []T, perPage, offset int) []T {
	limit, offset := clampLimitOffset(perPage, offset, len(rows))
	return paginate(rows, limit, offset)
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}
