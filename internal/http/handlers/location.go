package handlers

import (
	"fmt"
	"net/http"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/auth"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// LocationHandler accepts courier position reports.
type LocationHandler struct {
	store       locationStore
	broadcaster broadcaster
	logger      logx.Logger
	now         func() time.Time
}

// NewLocationHandler creates a LocationHandler. A nil broadcaster disables
// courier_location_updated broadcasts.
func NewLocationHandler(logger logx.Logger, store locationStore, b broadcaster) *LocationHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &LocationHandler{store: store, broadcaster: b, logger: logger, now: time.Now}
}

// SetClock overrides the observation clock.
func (h *LocationHandler) SetClock(now func() time.Time) { h.now = now }

// PutMine handles PUT /couriers/me/location.
func (h *LocationHandler) PutMine(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	courierID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeServiceError(h.logger, w, r, apperr.ErrUnauthorized)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeServiceError(h.logger, w, r, fmt.Errorf("%w: lat and lng are required", apperr.ErrInvalid))
		return
	}
	point := domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	if err := point.Validate(); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	loc := domain.CourierLocation{CourierID: courierID, Point: point, ObservedAt: h.now().UTC()}
	if err := h.store.Upsert(r.Context(), loc); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	if h.broadcaster != nil {
		if _, err := h.broadcaster.BroadcastNotification(r.Context(), domain.CourierLocationUpdated(loc)); err != nil {
			h.logger.Warn("location broadcast failed",
				logx.String("courier_id", courierID),
				logx.Err(err),
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
