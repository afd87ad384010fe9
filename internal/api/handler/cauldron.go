package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/api/models"
	"github.com/cauldronwatch/cauldronwatch/internal/api/response"
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// CauldronHandler handles cauldron endpoints.
type CauldronHandler struct {
	repo cauldron.Repository
	log  zerolog.Logger
}

// NewCauldronHandler creates a new CauldronHandler.
func NewCauldronHandler(repo cauldron.Repository, log zerolog.Logger) *CauldronHandler {
	return &CauldronHandler{repo: repo, log: log}
}

// ListCauldrons handles GET /v1/cauldrons - list monitored cauldrons.
func (h *CauldronHandler) ListCauldrons(w http.ResponseWriter, r *http.Request) {
	cauldrons, err := h.repo.ListCauldrons(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("listing cauldrons failed")
		response.InternalError(w, r, "listing cauldrons failed")
		return
	}

	items := make([]*models.CauldronResponse, 0, len(cauldrons))
	for _, c := range cauldrons {
		items = append(items, models.FromCauldron(c))
	}
	response.JSON(w, r, http.StatusOK, items)
}

// GetCauldron handles GET /v1/cauldrons/{cauldronId} - get one cauldron.
func (h *CauldronHandler) GetCauldron(w http.ResponseWriter, r *http.Request) {
	cauldronID := chi.URLParam(r, "cauldronId")
	if cauldronID == "" {
		response.BadRequest(w, r, "cauldronId is required", nil)
		return
	}

	c, err := h.repo.GetCauldron(r.Context(), cauldronID)
	if err != nil {
		if errors.Is(err, cauldron.ErrCauldronNotFound) {
			response.NotFound(w, r, "cauldron not found")
			return
		}
		h.log.Error().Err(err).Str("cauldron_id", cauldronID).Msg("fetching cauldron failed")
		response.InternalError(w, r, "fetching cauldron failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromCauldron(c))
}

// ListReadings handles GET /v1/cauldrons/{cauldronId}/readings - list level
// readings for one cauldron, oldest first. The optional "since" query
// parameter (RFC3339) bounds the window.
func (h *CauldronHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	cauldronID := chi.URLParam(r, "cauldronId")
	if cauldronID == "" {
		response.BadRequest(w, r, "cauldronId is required", nil)
		return
	}

	var q cauldron.ReadingQuery
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, r, "since must be an RFC3339 timestamp", nil)
			return
		}
		q.Since = since
	}

	readings, err := h.repo.ListReadings(r.Context(), cauldronID, q)
	if err != nil {
		h.log.Error().Err(err).Str("cauldron_id", cauldronID).Msg("listing readings failed")
		response.InternalError(w, r, "listing readings failed")
		return
	}

	items := make([]models.ReadingResponse, 0, len(readings))
	for _, reading := range readings {
		items = append(items, models.FromReading(reading))
	}
	response.JSON(w, r, http.StatusOK, items)
}

// IngestReadings handles POST /v1/readings - record a batch of level
// readings.
func (h *CauldronHandler) IngestReadings(w http.ResponseWriter, r *http.Request) {
	var input models.IngestReadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(input.Readings) == 0 {
		response.BadRequest(w, r, "readings must not be empty", nil)
		return
	}

	readings := make([]cauldron.Reading, 0, len(input.Readings))
	for i, in := range input.Readings {
		if in.CauldronID == "" {
			response.BadRequest(w, r, "readings["+strconv.Itoa(i)+"].cauldronId is required", nil)
			return
		}
		readings = append(readings, cauldron.Reading{
			CauldronID: in.CauldronID,
			Timestamp:  in.Timestamp.Time(),
			Volume:     in.Volume,
		})
	}

	if err := h.repo.InsertReadings(r.Context(), readings); err != nil {
		h.log.Error().Err(err).Int("count", len(readings)).Msg("inserting readings failed")
		response.InternalError(w, r, "inserting readings failed")
		return
	}

	response.JSON(w, r, http.StatusAccepted, map[string]int{"accepted": len(readings)})
}
