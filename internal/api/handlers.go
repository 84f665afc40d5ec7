// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/controller"
	"github.com/pagetap/pagetap/internal/export"
)

type recordRequest struct {
	TargetID string                   `json:"targetId"`
	URL      string                   `json:"url"`
	Quality  *capture.QualitySettings `json:"quality,omitempty"`
}

type cancelRequest struct {
	TargetID string `json:"targetId"`
}

// artifactView is the list representation of an artifact. Payload bytes are
// only served through the download endpoint.
type artifactView struct {
	ID        string        `json:"id"`
	MIME      string        `json:"mime"`
	Size      int           `json:"size"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"duration"`
	Quality   string        `json:"quality"`
	Filename  string        `json:"filename"`
}

// handleRecord toggles capture for a target: start when idle, stop when a
// session is active. The outcome arrives asynchronously via status.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.TargetID == "" {
		writeError(w, fmt.Errorf("targetId is required"))
		return
	}

	quality := s.cfg.Quality
	if req.Quality != nil {
		quality = *req.Quality
	}

	target := controller.Target{ID: req.TargetID, URL: req.URL}
	if err := s.ctrl.StartOrStop(r.Context(), target, quality); err != nil {
		writeError(w, err)
		return
	}

	status, _ := s.ctrl.TargetState(req.TargetID)
	writeJSON(w, http.StatusAccepted, status)
}

// handleCancel aborts a target's session without producing an artifact.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.TargetID == "" {
		writeError(w, fmt.Errorf("targetId is required"))
		return
	}

	if err := s.ctrl.Cancel(r.Context(), controller.Target{ID: req.TargetID}); err != nil {
		writeError(w, err)
		return
	}

	status, _ := s.ctrl.TargetState(req.TargetID)
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.ctrl.TargetState(chi.URLParam(r, "targetID"))
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleArtifacts(w http.ResponseWriter, _ *http.Request) {
	artifacts := s.ctrl.Artifacts()
	views := make([]artifactView, 0, len(artifacts))
	for _, a := range artifacts {
		views = append(views, artifactView{
			ID:        a.ID,
			MIME:      a.MIME,
			Size:      a.Size(),
			CreatedAt: a.CreatedAt,
			Duration:  a.Duration,
			Quality:   a.Quality.Label(),
			Filename:  export.Filename(a, ""),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ctrl.Artifact(chi.URLParam(r, "artifactID"))
	if !ok {
		writeNotFound(w)
		return
	}

	setDownloadHeaders(w, export.Filename(a, ""), a.MIME, a.Size(), a.CreatedAt)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}
