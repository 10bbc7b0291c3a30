// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dealhound/dealhound/internal/analytics"
	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/content"
	"github.com/dealhound/dealhound/internal/events"
	"github.com/dealhound/dealhound/internal/governor"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/ranking"
	"github.com/dealhound/dealhound/internal/stream"

	json "github.com/goccy/go-json"
)

// maxRankLimit caps the ?limit= parameter on ranked listings.
const maxRankLimit = 100

// Handler implements the HTTP endpoints over the engine components.
type Handler struct {
	library   *catalog.Library
	actor     *ledger.Actor
	gov       *governor.Governor
	ranker    *ranking.Engine
	generator *content.Engine
	scheduler *analytics.Scheduler
	clicks    *events.ClickPublisher
	hub       *stream.Hub
	validate  *validator.Validate

	// contentCache holds generated batches per category and ISO week.
	// Generation is idempotent within a week, so the TTL only bounds how
	// long click-driven stage changes take to surface.
	contentCache *cache.TTL[ContentResponse]
}

// NewHandler wires the endpoint handlers.
func NewHandler(
	library *catalog.Library,
	actor *ledger.Actor,
	gov *governor.Governor,
	ranker *ranking.Engine,
	generator *content.Engine,
	scheduler *analytics.Scheduler,
	clicks *events.ClickPublisher,
	hub *stream.Hub,
) *Handler {
	return &Handler{
		library:      library,
		actor:        actor,
		gov:          gov,
		ranker:       ranker,
		generator:    generator,
		scheduler:    scheduler,
		clicks:       clicks,
		hub:          hub,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		contentCache: cache.New[ContentResponse](cache.DefaultTTL),
	}
}

// ClickRequest is the click ingestion payload.
type ClickRequest struct {
	Deal     string `json:"deal" validate:"required,max=256"`
	Category string `json:"category" validate:"required,max=128"`

	// Pattern optionally names the content pattern that earned the click,
	// feeding the learning counters.
	Pattern string `json:"pattern,omitempty" validate:"max=128"`
}

// RecordClick accepts one click and publishes it to the bus. The ledger
// applies it asynchronously; the endpoint answers 202 as soon as the
// event is on the bus.
func (h *Handler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidation, "malformed JSON body", err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidation, "deal and category are required", err)
		return
	}

	e := events.NewClickRecorded(req.Deal, req.Category, req.Pattern, time.Now().UTC())
	if err := h.clicks.Publish(r.Context(), e); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, codeInternal, "click ingestion unavailable", err)
		return
	}

	respondJSON(w, r, http.StatusAccepted, map[string]string{"eventId": e.EventID})
}

// Rank returns the ranked items for one category.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snap, ok := h.library.Get(category)
	if !ok {
		respondError(w, r, http.StatusNotFound, codeNotFound, "unknown category", nil)
		return
	}

	result := h.ranker.Rank(snap, h.actor.View(), h.scheduler.Current(), time.Now().UTC())

	if limit := queryInt(r, "limit", 0); limit > 0 {
		if limit > maxRankLimit {
			limit = maxRankLimit
		}
		if limit < len(result.Items) {
			result.Items = result.Items[:limit]
		}
	}

	respondJSON(w, r, http.StatusOK, result)
}

// ContentResponse is the generated copy for one category.
type ContentResponse struct {
	Category    string                        `json:"category"`
	Assignments map[string]content.Assignment `json:"assignments"`
	GeneratedAt time.Time                     `json:"generatedAt"`
}

// Content returns deterministic CTA/subtitle assignments for a category.
// Output is stable within an ISO week for unchanged engagement state.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snap, ok := h.library.Get(category)
	if !ok {
		respondError(w, r, http.StatusNotFound, codeNotFound, "unknown category", nil)
		return
	}

	now := time.Now().UTC()
	year, week := now.ISOWeek()
	key := fmt.Sprintf("%s@%d-W%02d", category, year, week)
	if resp, ok := h.contentCache.Get(key); ok {
		respondJSON(w, r, http.StatusOK, resp)
		return
	}

	resp := ContentResponse{
		Category:    category,
		Assignments: h.generator.GenerateBatch(snap.Items, h.actor.View(), now),
		GeneratedAt: now,
	}
	h.contentCache.Set(key, resp)
	respondJSON(w, r, http.StatusOK, resp)
}

// Analytics returns the latest pulse snapshot.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.scheduler.Current())
}

// Bias returns the learning-governor output for one category: the hottest
// category, the full normalized momentum map, and this category's weight.
// The map is computed fresh from the current ledger view on every call.
func (h *Handler) Bias(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if _, ok := h.library.Get(category); !ok {
		respondError(w, r, http.StatusNotFound, codeNotFound, "unknown category", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, h.gov.LearningBias(h.actor.View(), category))
}

// Stream upgrades to a websocket fed by the hub.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	stream.ServeWS(h.hub, w, r)
}

// Health reports liveness plus coarse component state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.actor.View()
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"categories":    len(h.library.All()),
		"totalClicks":   snap.TotalClicks,
		"streamClients": h.hub.ClientCount(),
	})
}

// AdminPulse forces an analytics rebuild and returns the fresh snapshot.
func (h *Handler) AdminPulse(w http.ResponseWriter, r *http.Request) {
	snap, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, codeInternal, "pulse unavailable", err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// AdminLedger dumps the raw ledger snapshot after forcing a flush, so the
// response matches what is persisted.
func (h *Handler) AdminLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.actor.Flush(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, codeInternal, "ledger flush failed", err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.actor.View())
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// instrument wraps a handler with request metrics.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		metrics.RecordAPIRequest(r.Method, endpoint, sw.status, time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
