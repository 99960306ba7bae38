package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/ranking"
	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
)

type suggestRequest struct {
	Text string `json:"text"`
}

type suggestResponse struct {
	Suggestions []ranking.Suggestion `json:"suggestions"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("suggest request", zap.String("text", req.Text))
	suggestions, err := s.orch.Suggest(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("suggest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if suggestions == nil {
		suggestions = []ranking.Suggestion{}
	}
	s.respondJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

type imagesRequest struct {
	Prompt string `json:"prompt"`
}

type imagesResponse struct {
	Images      []string  `json:"images"`
	Scores      []float64 `json:"scores"`
	Hit         bool      `json:"hit"`
	CommitStage string    `json:"commit_stage,omitempty"`
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	var req imagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.logger.Debug("images request", zap.String("prompt", req.Prompt))
	res, err := s.orch.FetchOrCreate(r.Context(), req.Prompt)
	if err != nil {
		s.logger.Error("fetch or create failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	encoded := make([]string, len(res.Images))
	for i, img := range res.Images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	resp := imagesResponse{
		Images: encoded,
		Scores: res.Scores,
		Hit:    res.Hit,
	}
	if resp.Scores == nil {
		resp.Scores = []float64{}
	}
	if res.Commit != nil {
		resp.CommitStage = res.Commit.Stage.String()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePromptSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	hits, err := s.orch.SearchPrompts(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("prompt search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	if counter, ok := s.contents.(store.Counter); ok {
		n, err := counter.Count(r.Context())
		if err != nil {
			s.logger.Error("status: artifact count failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["artifacts"] = n
	}
	if sizer, ok := s.index.(vector.Sizer); ok {
		resp["vector_index_size"] = sizer.Size()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
