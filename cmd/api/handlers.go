package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/ingest"
	"github.com/campaigngraph/campaigngraph/pkg/campaignmeta"
)

// server holds the HTTP handlers' collaborators: the C12 orchestrator and
// the campaign-existence boundary (§9).
type server struct {
	orchestrator *ingest.Orchestrator
	campaigns    campaignmeta.Checker
	logger       *slog.Logger
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleCreateNote implements `POST /api/campaigns/{campaignUuid}/notes` (§6).
func (s *server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	campaignUUID := r.PathValue("campaignUuid")

	exists, err := s.campaigns.CampaignExists(r.Context(), campaignUUID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !exists {
		s.writeError(w, r, domain.ErrCampaignNotFound)
		return
	}

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewValidationError("body", "", err))
		return
	}

	resp, err := s.orchestrator.IngestNote(r.Context(), campaignUUID, req.Title, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// handleConfirmDeduplication implements
// `POST /api/campaigns/{campaignUuid}/notes/{noteId}/confirm-deduplication` (§6).
func (s *server) handleConfirmDeduplication(w http.ResponseWriter, r *http.Request) {
	campaignUUID := r.PathValue("campaignUuid")
	noteID := r.PathValue("noteId")

	var req domain.ConfirmDeduplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewValidationError("body", "", err))
		return
	}

	resp, err := s.orchestrator.ConfirmDeduplication(r.Context(), campaignUUID, noteID, req.ApprovedMergeProposals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetNote implements `GET /api/campaigns/{campaignUuid}/notes/{noteId}` (§6).
func (s *server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	campaignUUID := r.PathValue("campaignUuid")
	noteID := r.PathValue("noteId")

	dto, ok, err := s.orchestrator.GetNote(r.Context(), campaignUUID, noteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, dto)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to the §7 taxonomy's HTTP status (§6
// per-endpoint error lists): input_invalid and a campaign/session mismatch
// are 400, a missing campaign or session is 404, everything else — a
// provider or store failure — is 500.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCampaignMismatch):
		status = http.StatusBadRequest
	case domain.KindOf(err) == domain.KindInputInvalid:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
