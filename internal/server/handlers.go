package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/lanefield/brag/internal/clustering"
	"github.com/lanefield/brag/internal/metering"
	"github.com/lanefield/brag/pkg/models"
)

// generateRequest is the body of POST /workstreams/generate.
type generateRequest struct {
	Filters *filterPayload `json:"filters"`
}

type filterPayload struct {
	TimeRange  *timeRangePayload `json:"timeRange"`
	ProjectIDs []string          `json:"projectIds"`
}

type timeRangePayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// parseDate accepts calendar dates and full RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// toFilter validates the payload and converts it to a domain filter.
func (p *filterPayload) toFilter() (*models.Filter, error) {
	if p == nil {
		return nil, nil
	}
	f := &models.Filter{ProjectIDs: p.ProjectIDs}
	if p.TimeRange != nil {
		hasStart := p.TimeRange.StartDate != ""
		hasEnd := p.TimeRange.EndDate != ""
		if hasStart != hasEnd {
			return nil, fmt.Errorf("startDate and endDate must be provided together")
		}
		if hasStart {
			start, err := parseDate(p.TimeRange.StartDate)
			if err != nil {
				return nil, fmt.Errorf("invalid startDate: %w", err)
			}
			end, err := parseDate(p.TimeRange.EndDate)
			if err != nil {
				return nil, fmt.Errorf("invalid endDate: %w", err)
			}
			f.TimeRange = &models.TimeRange{StartDate: start, EndDate: end}
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// handleGenerateWorkstreams is POST /workstreams/generate. Validation, auth
// and the metering gate all fail synchronously; once the event stream opens,
// every later failure becomes a terminal error event.
func (s *Service) handleGenerateWorkstreams(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	filter, err := req.Filters.toFilter()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if filter != nil && len(filter.ProjectIDs) > 0 {
		if err := s.validateProjectOwnership(r.Context(), userID, filter.ProjectIDs); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.gate.Reserve(r.Context(), userID); err != nil {
		var insufficient *metering.InsufficientBudgetError
		if errors.As(err, &insufficient) {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":     "insufficient budget",
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
			return
		}
		log.Error().Err(err).Str("userId", userID).Msg("Metering gate failed")
		writeJSONError(w, http.StatusInternalServerError, "metering unavailable")
		return
	}

	stream, err := OpenEventStream(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.engine.Generate(r.Context(), userID, filter, stream); err != nil {
		s.emitStreamError(r.Context(), stream, userID, err)
	}
}

// emitStreamError converts an engine failure into the terminal error event.
// Expected domain failures keep their message; everything else is reported
// generically and logged with detail.
func (s *Service) emitStreamError(ctx context.Context, stream *EventStream, userID string, err error) {
	var tooFew *clustering.InsufficientAchievementsError
	ev := clustering.Event{Type: clustering.EventError}
	switch {
	case errors.As(err, &tooFew):
		ev.Message = tooFew.Error()
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is listening anymore.
		log.Debug().Str("userId", userID).Msg("Generation canceled by client disconnect")
		return
	default:
		log.Error().Err(err).Str("userId", userID).Msg("Workstream generation failed")
		ev.Message = "workstream generation failed"
	}
	if emitErr := stream.Emit(ctx, ev); emitErr != nil {
		log.Debug().Err(emitErr).Str("userId", userID).Msg("Failed to emit terminal error event")
	}
}

func (s *Service) validateProjectOwnership(ctx context.Context, userID string, projectIDs []string) error {
	unique := make(map[string]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		unique[id] = struct{}{}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}
	owned, err := s.users.CountOwnedProjects(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("verify project ownership: %w", err)
	}
	if owned != int64(len(ids)) {
		return fmt.Errorf("one or more project ids do not exist or are not yours")
	}
	return nil
}

// handleHealth is GET /health. Returns 200 as soon as the process is up.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReady is GET /ready. Returns 200 only when the database answers.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
