package handlers

import (
	"strconv"
	"time"

	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/app"
	"github.com/k9trials/ringsync/internal/metrics"
)

// ResultsHandler serves read-only views of the local store to the
// ring-side network. The hosted backend serves the public app; this is
// for the secretary's table.
type ResultsHandler struct {
	service *app.Service
}

func NewResultsHandler(service *app.Service) *ResultsHandler {
	return &ResultsHandler{
		service: service,
	}
}

// statusRecorder remembers the status the handler actually wrote so the
// request metric is labeled truthfully.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (h *ResultsHandler) HandleShowSummary(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			strconv.Itoa(w.status),
		).Observe(duration)
	}()

	license := r.PathValue("license")
	if license == "" {
		http.Error(w, "Invalid license key", http.StatusBadRequest)
		return
	}

	show, err := h.service.Store.GetShowByLicense(license)
	if err != nil {
		logger.Error.Printf("Failed to fetch show %s: %v", license, err)
		http.Error(w, "Failed to fetch show", http.StatusInternalServerError)
		return
	}
	if show == nil {
		http.Error(w, "Show not found", http.StatusNotFound)
		return
	}

	summary, err := h.service.Store.GetShowSummary(license)
	if err != nil {
		logger.Error.Printf("Failed to fetch summary for %s: %v", license, err)
		http.Error(w, "Failed to fetch summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"show":    show,
		"classes": summary,
	}); err != nil {
		logger.Error.Printf("Failed to encode summary: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *ResultsHandler) HandleClassResults(w http.ResponseWriter, r *http.Request) {
	classID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid class id", http.StatusBadRequest)
		return
	}

	class, err := h.service.Store.GetClass(classID)
	if err != nil {
		logger.Error.Printf("Failed to fetch class %d: %v", classID, err)
		http.Error(w, "Failed to fetch class", http.StatusInternalServerError)
		return
	}
	if class == nil {
		http.Error(w, "Class not found", http.StatusNotFound)
		return
	}

	entries, err := h.service.Store.ListEntries(classID)
	if err != nil {
		logger.Error.Printf("Failed to fetch entries for class %d: %v", classID, err)
		http.Error(w, "Failed to fetch entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"class":   class,
		"entries": entries,
	}); err != nil {
		logger.Error.Printf("Failed to encode results: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
