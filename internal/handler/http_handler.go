package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lumenhr/be-hr-workflows/internal/escalation"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
	"github.com/lumenhr/be-hr-workflows/internal/scheduler"
)

// HTTPHandler exposes the operator surface: trigger a pass, inspect the
// last summary.
type HTTPHandler struct {
	processor *escalation.Processor
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(processor *escalation.Processor, sched *scheduler.Scheduler, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		processor: processor,
		scheduler: sched,
		log:       log,
	}
}

// RunEscalations triggers an escalation pass outside the tick cadence.
func (h *HTTPHandler) RunEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, started := h.scheduler.TriggerNow(r.Context())
	if !started {
		http.Error(w, "A pass is already in flight", http.StatusConflict)
		return
	}
	if summary == nil {
		http.Error(w, "Escalation pass failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetSummary returns the most recent pass summary.
func (h *HTTPHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary := h.processor.LastSummary()
	if summary == nil {
		http.Error(w, "No pass has run yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
