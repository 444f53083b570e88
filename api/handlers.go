package api

import (
	"sleepdx.com/sdp/advice"
	"sleepdx.com/sdp/pipeline"
	"sleepdx.com/sdp/types"
	"encoding/json"
	"errors"
	"net/http"
)

type PredictRequest struct {
	Features map[string]interface{} `json:"features"`
}

type PredictResponse struct {
	RequestID     string             `json:"request_id"`
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
	Importances   map[string]float64 `json:"importances"`
	Advice        advice.Assessment  `json:"advice"`
}

type ErrorResponse struct {
	RequestID string   `json:"request_id"`
	Error     string   `json:"error"`
	Missing   []string `json:"missing,omitempty"`
	Unknown   []string `json:"unknown,omitempty"`
	Invalid   []string `json:"invalid,omitempty"`
}

type ReloadResponse struct {
	RequestID   string `json:"request_id"`
	Changed     bool   `json:"changed"`
	DatasetHash string `json:"dataset_hash"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if _, err := h.service.Pipeline(); err != nil {
		status = "training"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)
	requestID := requestIDFromContext(r.Context())

	var req PredictRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not decode request body")
		writeError(w, http.StatusBadRequest, requestID, err)
		return
	}
	p, err := h.service.Pipeline()
	if err != nil {
		logger.Err(err).Int("status", http.StatusServiceUnavailable).Msg("Pipeline is not ready")
		writeError(w, http.StatusServiceUnavailable, requestID, err)
		return
	}
	rec, err := p.ResolveInput(req.Features)
	if err == nil {
		var pred pipeline.Prediction
		if pred, err = p.PredictOne(rec); err == nil {
			writeJSON(w, http.StatusOK, PredictResponse{
				RequestID:     requestID,
				Label:         pred.Label,
				Probabilities: pred.Probabilities,
				Importances:   pred.Importances,
				Advice:        advice.Assess(rec),
			})
			logger.Info().Int("status", http.StatusOK).Str("label", pred.Label).Msg("Finished processing request")
			return
		}
	}
	var schemaErr *types.SchemaError
	if errors.As(err, &schemaErr) {
		logger.Info().Err(err).Int("status", http.StatusUnprocessableEntity).Msg("Rejected prediction request")
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			RequestID: requestID,
			Error:     schemaErr.Error(),
			Missing:   schemaErr.Missing,
			Unknown:   schemaErr.Unknown,
			Invalid:   schemaErr.Invalid,
		})
		return
	}
	logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Prediction failed")
	writeError(w, http.StatusInternalServerError, requestID, err)
}

func (h *Handler) describe(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Pipeline()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, requestIDFromContext(r.Context()), err)
		return
	}
	writeJSON(w, http.StatusOK, p.Summary())
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)
	requestID := requestIDFromContext(r.Context())
	changed, err := h.service.Reload(r.Context())
	if err != nil {
		logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Reload failed")
		writeError(w, http.StatusInternalServerError, requestID, err)
		return
	}
	p, err := h.service.Pipeline()
	if err != nil {
		writeError(w, http.StatusInternalServerError, requestID, err)
		return
	}
	summary := p.Summary()
	logger.Info().Bool("changed", changed).Str("dataset_hash", summary.DatasetHash).Msg("Reloaded dataset")
	writeJSON(w, http.StatusOK, ReloadResponse{RequestID: requestID, Changed: changed, DatasetHash: summary.DatasetHash})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		defaultLogger.Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, ErrorResponse{RequestID: requestID, Error: err.Error()})
}
