package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/malnajdi/fatoora/pkg/middleware"
	"github.com/malnajdi/fatoora/pkg/response"
)

// Handler handles HTTP requests for ledger operations
type Handler struct {
	service *Service
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for ledger endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/entries/{entryId}", h.GetEntry)
	r.Post("/entries/{entryId}/settle", h.SettleEntry)

	return r
}

// GetEntry handles GET /ledger/entries/{entryId}
// @Summary      Get a ledger entry
// @Tags         ledger
// @Produce      json
// @Param        entryId path int true "Entry ID"
// @Success      200 {object} response.APIResponse{data=EntryResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /ledger/entries/{entryId} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid entry ID")
		return
	}

	entry, err := h.service.GetEntry(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrEntryDeleted) {
			response.NotFound(w, ErrEntryNotFound.Error())
			return
		}
		if response.IsCancellation(err) {
			response.Cancelled(w)
			return
		}
		response.InternalError(w, "Failed to get ledger entry")
		return
	}

	response.JSON(w, http.StatusOK, entry.ToResponse())
}

// SettleEntry handles POST /ledger/entries/{entryId}/settle
// @Summary      Settle a ledger entry
// @Description  Debtor records a partial or full payment against an entry
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        entryId path int true "Entry ID"
// @Param        request body SettleEntryRequest true "Settlement amount in cents"
// @Success      200 {object} response.APIResponse{data=EntryResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /ledger/entries/{entryId}/settle [post]
func (h *Handler) SettleEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid entry ID")
		return
	}

	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req SettleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	entry, err := h.service.Settle(r.Context(), callerID, entryID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrEntryDeleted):
			response.NotFound(w, ErrEntryNotFound.Error())
		case errors.Is(err, ErrNotDebtor):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrInvalidSettlementAmount):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrSettleContention):
			response.Conflict(w, err.Error())
		case response.IsCancellation(err):
			response.Cancelled(w)
		default:
			response.InternalError(w, "Failed to settle entry")
		}
		return
	}

	response.JSON(w, http.StatusOK, entry.ToResponse())
}
