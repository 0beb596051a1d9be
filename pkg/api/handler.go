package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/guestpulse/matrice-engine/pkg/health"
	"github.com/guestpulse/matrice-engine/pkg/kit"
	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// NewRouter returns an http.Handler with all reconciliation API routes.
func NewRouter(s *Service) http.Handler {
	mux := http.NewServeMux()
	h := &handler{
		resolve:       resolveEndpoint(s),
		batch:         batchEndpoint(s),
		agencies:      agenciesEndpoint(s),
		listResorts:   listResortsEndpoint(s),
		normalizeDate: normalizeDateEndpoint(),
		svc:           s,
	}

	mux.HandleFunc("GET /v1/resorts", h.handleListResorts)
	mux.HandleFunc("GET /v1/resorts/{resort}/respondent", h.handleResolve)
	mux.HandleFunc("GET /v1/resorts/{resort}/respondents/batch", methodNotAllowed) // prevent GET on batch
	mux.HandleFunc("POST /v1/resorts/{resort}/respondents/batch", h.handleBatch)
	mux.HandleFunc("GET /v1/resorts/{resort}/agencies", h.handleAgencies)
	mux.HandleFunc("GET /v1/dates/normalize", h.handleNormalizeDate)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	resolve       kit.Endpoint
	batch         kit.Endpoint
	agencies      kit.Endpoint
	listResorts   kit.Endpoint
	normalizeDate kit.Endpoint
	svc           *Service
}

// --- resolve one respondent ---

func (h *handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	resortID := r.PathValue("resort")
	q := r.URL.Query()

	id := matrice.Identifier{
		Email: q.Get("email"),
		Name:  q.Get("name"),
		Date:  q.Get("date"),
	}
	if v := q.Get("row"); v != "" {
		row, err := strconv.Atoi(v)
		if err != nil || row < 1 {
			writeError(w, http.StatusBadRequest, "row must be a positive integer")
			return
		}
		id.ExplicitRow = row
	}
	if id.Email == "" && id.Name == "" && id.Date == "" && id.ExplicitRow == 0 {
		writeError(w, http.StatusBadRequest, "at least one of email, name, date, row is required")
		return
	}

	ctx := kit.WithResortID(r.Context(), resortID)
	resp, err := h.resolve(ctx, &resolveReq{ResortID: resortID, Identifier: id})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- batch resolve ---

type httpBatchIdentifier struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Date  string `json:"date,omitempty"`
	Row   int    `json:"row,omitempty"`
}

type httpBatchRequest struct {
	Identifiers []httpBatchIdentifier `json:"identifiers"`
}

func (h *handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resortID := r.PathValue("resort")
	ids := make([]matrice.Identifier, len(req.Identifiers))
	for i, raw := range req.Identifiers {
		if raw.Row < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("identifier %d: row must be a positive integer", i))
			return
		}
		ids[i] = matrice.Identifier{
			Email:       raw.Email,
			Name:        raw.Name,
			Date:        raw.Date,
			ExplicitRow: raw.Row,
		}
	}

	ctx := kit.WithResortID(r.Context(), resortID)
	resp, err := h.batch(ctx, &batchReq{ResortID: resortID, Identifiers: ids})
	if err != nil {
		if errors.Is(err, ErrUnknownResort) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- agencies ---

func (h *handler) handleAgencies(w http.ResponseWriter, r *http.Request) {
	resortID := r.PathValue("resort")
	resp, err := h.agencies(r.Context(), &agenciesReq{ResortID: resortID})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- list resorts ---

func (h *handler) handleListResorts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listResorts(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- normalize date ---

func (h *handler) handleNormalizeDate(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing value")
		return
	}
	resp, err := h.normalizeDate(r.Context(), &normalizeDateReq{Value: value})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status  string         `json:"status"`
	Resorts int            `json:"resorts"`
	Probes  []health.Probe `json:"probes,omitempty"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Resorts: h.svc.Registry.Count(),
	}
	if h.svc.Health != nil {
		probes, err := h.svc.Health.List()
		if err == nil {
			resp.Probes = probes
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

// writeEndpointError maps engine errors to status codes: a miss or unknown
// resort is 404, upstream transport failure is 502, anything else 500.
func writeEndpointError(w http.ResponseWriter, err error) {
	var fetchErr *table.FetchError
	switch {
	case errors.Is(err, ErrNoMatch), errors.Is(err, ErrUnknownResort):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &fetchErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// cors is a simple CORS middleware for the browser dashboard.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
