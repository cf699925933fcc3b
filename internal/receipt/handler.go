package receipt

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/malnajdi/fatoora/internal/ledger"
	"github.com/malnajdi/fatoora/pkg/middleware"
	"github.com/malnajdi/fatoora/pkg/response"
)

// Handler handles HTTP requests for receipt operations
type Handler struct {
	service *Service
}

// NewHandler creates a new receipt handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for receipt endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	// Membership
	r.Post("/{id}/members", h.AddMember)
	r.Delete("/{id}/members/{userId}", h.RemoveMember)

	// Lifecycle
	r.Post("/{id}/finalize", h.Finalize)
	r.Post("/{id}/unfinalize", h.Unfinalize)

	// Derived ledger
	r.Get("/{id}/entries", h.ListEntries)

	return r
}

// writeServiceError maps receipt service errors onto HTTP responses
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError

	switch {
	case errors.Is(err, ErrReceiptNotFound), errors.Is(err, ErrUnknownEmail):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrNotDraft),
		errors.Is(err, ErrNotFinalized),
		errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrMemberHasObligations),
		errors.Is(err, ErrAlreadySettled):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrCannotRemoveOwner),
		errors.Is(err, ErrEmptyReceipt),
		errors.Is(err, ErrPaymentMismatch),
		errors.Is(err, ErrUnassignedItems):
		response.BadRequest(w, err.Error())
	case errors.As(err, &validationErr):
		response.BadRequest(w, err.Error())
	case response.IsCancellation(err):
		response.Cancelled(w)
	default:
		response.InternalError(w, "Internal error")
	}
}

func callerID(r *http.Request, w http.ResponseWriter) (int64, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return 0, false
	}
	return id, true
}

func receiptID(r *http.Request, w http.ResponseWriter) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid receipt ID")
		return 0, false
	}
	return id, true
}

// Create handles POST /receipts
// @Summary      Create a receipt
// @Description  Create a draft receipt; the caller becomes the owner and first participant
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        request body CreateReceiptRequest true "Receipt creation request"
// @Success      201 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /receipts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}

	var req CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Title == "" {
		response.BadRequest(w, "title is required")
		return
	}

	rcpt, err := h.service.Create(r.Context(), caller, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, rcpt.ToResponse())
}

// List handles GET /receipts
// @Summary      List the caller's receipts
// @Description  All non-deleted receipts where the caller is a participant, newest first
// @Tags         receipts
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ReceiptResponse}
// @Router       /receipts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	receipts, total, err := h.service.List(r.Context(), caller, page, perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	receiptResponses := make([]*ReceiptResponse, len(receipts))
	for i, rcpt := range receipts {
		receiptResponses[i] = rcpt.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, receiptResponses, meta)
}

// GetByID handles GET /receipts/{id}
// @Summary      Get a receipt
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /receipts/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	rcpt, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rcpt.ToResponse())
}

// Update handles PATCH /receipts/{id}
// @Summary      Update a draft receipt
// @Description  Apply a partial patch under the optimistic lock; the patch version must match the stored version
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Param        request body UpdateReceiptRequest true "Partial patch with version"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /receipts/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	var req UpdateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Version < 1 {
		response.BadRequest(w, "version is required")
		return
	}

	rcpt, err := h.service.Update(r.Context(), caller, id, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rcpt.ToResponse())
}

// Delete handles DELETE /receipts/{id}
// @Summary      Soft-delete a receipt
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /receipts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	if err := h.service.SoftDelete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Receipt deleted successfully"})
}

// AddMember handles POST /receipts/{id}/members
// @Summary      Add a participant
// @Description  Owner adds a participant to a draft receipt by email
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Param        request body AddMemberRequest true "Member email"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /receipts/{id}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Email == "" {
		response.BadRequest(w, "email is required")
		return
	}

	rcpt, err := h.service.AddMember(r.Context(), caller, id, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rcpt.ToResponse())
}

// RemoveMember handles DELETE /receipts/{id}/members/{userId}
// @Summary      Remove a participant
// @Description  Owner removes a participant who has no splits or payments on the receipt
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Param        userId path int true "User ID"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /receipts/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	rcpt, err := h.service.RemoveMember(r.Context(), caller, id, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rcpt.ToResponse())
}

// finalizeResponse pairs the finalized receipt with its ledger entries
type finalizeResponse struct {
	Receipt *ReceiptResponse        `json:"receipt"`
	Entries []*ledger.EntryResponse `json:"entries"`
}

// Finalize handles POST /receipts/{id}/finalize
// @Summary      Finalize a receipt
// @Description  Lock the draft and derive pairwise ledger obligations; payments must cover the total exactly
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Success      200 {object} response.APIResponse
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /receipts/{id}/finalize [post]
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	rcpt, entries, err := h.service.Finalize(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entryResponses := make([]*ledger.EntryResponse, len(entries))
	for i, e := range entries {
		entryResponses[i] = e.ToResponse()
	}

	response.JSON(w, http.StatusOK, &finalizeResponse{
		Receipt: rcpt.ToResponse(),
		Entries: entryResponses,
	})
}

// Unfinalize handles POST /receipts/{id}/unfinalize
// @Summary      Unfinalize a receipt
// @Description  Return a finalized receipt to draft; blocked once any entry has settlement progress
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Success      200 {object} response.APIResponse{data=ReceiptResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /receipts/{id}/unfinalize [post]
func (h *Handler) Unfinalize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	rcpt, err := h.service.Unfinalize(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rcpt.ToResponse())
}

// ListEntries handles GET /receipts/{id}/entries
// @Summary      List a receipt's ledger entries
// @Tags         receipts
// @Produce      json
// @Param        id path int true "Receipt ID"
// @Success      200 {object} response.APIResponse{data=[]ledger.EntryResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /receipts/{id}/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r, w)
	if !ok {
		return
	}
	id, ok := receiptID(r, w)
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entryResponses := make([]*ledger.EntryResponse, len(entries))
	for i, e := range entries {
		entryResponses[i] = e.ToResponse()
	}

	response.JSON(w, http.StatusOK, entryResponses)
}
