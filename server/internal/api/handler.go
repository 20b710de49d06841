package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/subtrack/subtrack/pkg/types"
	"github.com/subtrack/subtrack/server/internal/metrics"
	"github.com/subtrack/subtrack/server/internal/reaper"
	"github.com/subtrack/subtrack/server/internal/store"
)

// Banner is the body of GET /.
const Banner = "Subscription Server is Running."

// Handler is the HTTP handler for the subscription endpoints.
type Handler struct {
	store   *store.Store
	reaper  *reaper.Reaper
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler wired to the given store and reaper and registers all
// routes. m may be nil.
func New(st *store.Store, rp *reaper.Reaper, m *metrics.Metrics) http.Handler {
	h := &Handler{store: st, reaper: rp, metrics: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/", h.index)
	h.mux.HandleFunc("/add_uid", h.addUID)
	h.mux.HandleFunc("/get_time/", h.getTime) // subtree, extracts {uid}
	h.mux.HandleFunc("/sweep", h.sweep)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// index returns GET /, a plain-text liveness banner.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(Banner)) //nolint:errcheck
}

// addUID handles GET /add_uid?uid=&time=&type=&permanent=. It registers or
// replaces a UID.
func (h *Handler) addUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	uid := q.Get("uid")
	permanent := strings.EqualFold(q.Get("permanent"), "true")

	p, err := h.store.Register(r.Context(), uid, permanent, q.Get("time"), q.Get("type"))
	h.metrics.ObserveUpsert(err)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("api: upsert failed", "uid", uid, "err", err)
		jsonErr(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	jsonResp(w, http.StatusOK, types.UpsertResponse{
		UID:       uid,
		ExpiresAt: h.store.Format(p),
	})
}

// getTime returns the remaining-time breakdown for GET /get_time/{uid}.
func (h *Handler) getTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := strings.TrimPrefix(r.URL.Path, "/get_time/")
	if uid == "" {
		jsonErr(w, http.StatusBadRequest, store.ErrMissingUID.Error())
		return
	}
	// {uid} is a single path segment.
	if strings.Contains(uid, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	jsonResp(w, http.StatusOK, Remaining(uid, h.store.RemainingTime(uid)))
}

// sweep handles POST /sweep by running one expiry sweep immediately.
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n, err := h.reaper.SweepOnce(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	jsonResp(w, http.StatusOK, types.SweepResponse{Removed: n})
}

// --- helpers ----------------------------------------------------------------

// Remaining maps a store.Breakdown to its JSON representation.
func Remaining(uid string, b store.Breakdown) types.RemainingResponse {
	return types.RemainingResponse{
		UID: uid,
		RemainingTime: types.RemainingTime{
			Days:    b.Days,
			Hours:   b.Hours,
			Minutes: b.Minutes,
			Seconds: b.Seconds,
		},
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
