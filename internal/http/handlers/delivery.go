package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/auth"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DeliveryHandler handles HTTP requests for delivery resources.
type DeliveryHandler struct {
	usecase deliveryUsecase
	logger  logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase) *DeliveryHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DeliveryHandler{usecase: uc, logger: logger}
}

// Create handles POST /deliveries.
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	d, err := h.usecase.Create(r.Context(), actor, req.toDomain())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/deliveries/"+d.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, createDeliveryResponse{
		ID:     d.ID,
		Status: string(d.Status),
		Fee:    d.Fee,
	})
}

// UpdateStatus handles PUT /deliveries/{id}/status.
func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())

	d, err := h.usecase.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), to)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Get handles GET /deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())

	d, err := h.usecase.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// List handles GET /deliveries?status=&limit=&offset=.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeServiceError(h.logger, w, r, fmt.Errorf("%w: invalid limit", apperr.ErrInvalid))
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		writeServiceError(h.logger, w, r, fmt.Errorf("%w: invalid offset", apperr.ErrInvalid))
		return
	}
	f := domain.DeliveryFilter{Limit: limit, Offset: offset}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			writeServiceError(h.logger, w, r, err)
			return
		}
		f.Status = st
	}
	actor, _ := auth.UserFromContext(r.Context())

	list, err := h.usecase.List(r.Context(), actor, f)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveriesToResponse(list))
}
