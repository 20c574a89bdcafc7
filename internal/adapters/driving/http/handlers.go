package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}

// CountResponse reports index entry counts
type CountResponse struct {
	TotalDocuments       int                       `json:"totalDocuments"`
	TotalDocumentsByType map[string]map[string]int `json:"totalDocumentsByType"`
}

// QueryRequest is the request body for POST /query
type QueryRequest struct {
	Messages []domain.Message `json:"messages"`
}

// StatsRequest is the request body for POST /stats
type StatsRequest struct {
	Question string `json:"question"`
}

// StatsResponse is the response body for POST /stats
type StatsResponse struct {
	ResponseText string `json:"response_text"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.index != nil {
		if err := s.index.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "index not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Index management endpoints

// scopeFromQuery reads the type and language query parameters.
// Both accept "all" (or absence) to mean unscoped.
func scopeFromQuery(r *http.Request) (domain.Filter, error) {
	filter := domain.Filter{}

	switch t := r.URL.Query().Get("type"); t {
	case "", "all":
	case domain.CategoryIDOS, domain.CategoryNonIDOS:
		filter.Category = t
	default:
		return filter, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidInput, t)
	}

	switch lang := r.URL.Query().Get("language"); lang {
	case "", "all":
	case domain.LanguageEnglish, domain.LanguageArabic:
		filter.Language = lang
	default:
		return filter, fmt.Errorf("%w: unknown language %q", domain.ErrInvalidInput, lang)
	}

	return filter, nil
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	filter, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.ingestService.Populate(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("%d Documents Embedded successfully", result.Embedded),
	})
}

func (s *Server) handleDeleteEmbed(w http.ResponseWriter, r *http.Request) {
	filter, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := s.ingestService.DeleteWhere(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("%d Documents Deleted successfully", deleted),
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	total, err := s.ingestService.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byType, err := s.ingestService.CountByType(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{
		TotalDocuments:       total,
		TotalDocumentsByType: byType,
	})
}

func (s *Server) handleFileChecker(w http.ResponseWriter, r *http.Request) {
	if s.freshness == nil {
		writeError(w, http.StatusServiceUnavailable, "freshness checking not configured")
		return
	}

	// Starting is idempotent; an already-running job is not an error.
	// The job outlives the request, so it gets a background context.
	s.freshness.Start(context.Background())

	result, err := s.freshness.TriggerNow(r.Context())
	switch {
	case errors.Is(err, domain.ErrRefreshInProgress):
		writeJSON(w, http.StatusOK, MessageResponse{Message: "refresh already in progress"})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case result == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: "sources unchanged"})
	default:
		writeJSON(w, http.StatusOK, MessageResponse{
			Message: fmt.Sprintf("%d Documents Embedded successfully", result.Embedded),
		})
	}
}

// Question answering endpoints

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := s.chatService.Query(r.Context(), req.Messages)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.analyticsService.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{ResponseText: answer})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
