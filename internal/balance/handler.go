package balance

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/malnajdi/fatoora/pkg/middleware"
	"github.com/malnajdi/fatoora/pkg/response"
)

// Handler handles HTTP requests for balance queries
type Handler struct {
	service *Service
}

// NewHandler creates a new balance handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.GetOwn)
	r.Get("/{userId}", h.GetByUserID)

	return r
}

// GetOwn handles GET /balances/me
// @Summary      Get the caller's balance
// @Tags         balances
// @Produce      json
// @Success      200 {object} response.APIResponse{data=Balance}
// @Router       /balances/me [get]
func (h *Handler) GetOwn(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	h.respond(w, r, caller)
}

// GetByUserID handles GET /balances/{userId}
// @Summary      Get a user's balance
// @Description  Sum of open ledger amounts where the user is debtor or creditor
// @Tags         balances
// @Produce      json
// @Param        userId path int true "User ID"
// @Success      200 {object} response.APIResponse{data=Balance}
// @Router       /balances/{userId} [get]
func (h *Handler) GetByUserID(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	h.respond(w, r, userID)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, userID int64) {
	bal, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		if response.IsCancellation(err) {
			response.Cancelled(w)
			return
		}
		response.InternalError(w, "Failed to get balance")
		return
	}

	response.JSON(w, http.StatusOK, bal)
}
