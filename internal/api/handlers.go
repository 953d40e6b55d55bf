// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/cite"
	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type handler struct {
	svc    Service
	logger *zap.Logger
}

type resolveRequest struct {
	Query  string `json:"query"`
	Refine bool   `json:"refine"`
}

type refineRequest struct {
	Paper types.Paper `json:"paper"`
}

type refineResponse struct {
	Paper  types.Paper   `json:"paper"`
	Events []types.Event `json:"events,omitempty"`
}

type citeRequest struct {
	Papers []types.Paper `json:"papers"`
	Format string        `json:"format"`
}

type citeResponse struct {
	Citations []cite.Citation `json:"citations"`
}

type errorResponse struct {
	Error     string        `json:"error"`
	RequestID string        `json:"request_id,omitempty"`
	Events    []types.Event `json:"events,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Resolve(r.Context(), req.Query)
	switch {
	case errors.Is(err, route.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, resolver.ErrNoResults):
		writeError(w, http.StatusNotFound, errorResponse{Error: err.Error(), RequestID: res.RequestID, Events: res.Events})
		return
	case err != nil:
		h.logger.Error("resolve failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "resolution failed"})
		return
	}

	if req.Refine {
		refined, events := h.svc.RefineAll(r.Context(), res.Candidates)
		for i := range events {
			events[i].RequestID = res.RequestID
		}
		res.Candidates = refined
		res.Events = append(res.Events, events...)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Paper.Title == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "paper.title is required"})
		return
	}
	p, events := h.svc.Refine(r.Context(), req.Paper)
	writeJSON(w, http.StatusOK, refineResponse{Paper: p, Events: events})
}

func (h *handler) cite(w http.ResponseWriter, r *http.Request) {
	var req citeRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Papers) == 0 {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "papers is required"})
		return
	}

	cites := cite.NewSynthesizer().Cite(req.Papers...)
	switch req.Format {
	case "", "json":
		writeJSON(w, http.StatusOK, citeResponse{Citations: cites})
	case "bibtex":
		entries := make([]types.Entry, len(cites))
		for i, c := range cites {
			entries[i] = c.Entry
		}
		w.Header().Set("Content-Type", "application/x-bibtex; charset=utf-8")
		if err := cite.WriteBibTeX(w, entries); err != nil {
			h.logger.Warn("writing bibtex", zap.Error(err))
		}
	case "csl":
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		if err := cite.WriteCSL(w, cites); err != nil {
			h.logger.Warn("writing csl", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, errorResponse{Error: "format must be json, bibtex, or csl"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
