package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/service"
)

// createBookingRequest бронь по slot_id или по исполнителю и времени
type createBookingRequest struct {
	SlotID         *int64     `json:"slot_id" validate:"required_without=ProviderID,omitempty,gt=0"`
	ProviderID     *int64     `json:"provider_id" validate:"required_without=SlotID,omitempty,gt=0"`
	ServiceDate    *time.Time `json:"service_date" validate:"required_with=ProviderID"`
	ServiceAddress *string    `json:"service_address" validate:"omitempty,max=500"`
}

type createReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// CreateBooking POST /api/bookings
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)

	var req createBookingRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.SlotID != nil && req.ProviderID != nil {
		h.respondError(w, r, service.NewValidationError("slot_id", "use either slot_id or provider_id with service_date"))
		return
	}

	var (
		booking *model.Booking
		err     error
	)
	if req.SlotID != nil {
		booking, err = h.bookings.CreateBooking(r.Context(), actor, *req.SlotID, req.ServiceAddress)
	} else {
		booking, err = h.bookings.CreateBookingAt(r.Context(), actor, *req.ProviderID, *req.ServiceDate, req.ServiceAddress)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, booking)
}

// ListMyBookings GET /api/bookings
func (h *Handlers) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListBookingsForCustomer(r.Context(), mustActor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(bookings))
}

// CancelBooking POST /api/bookings/{id}/cancel
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.bookings.CancelBooking, model.BookingStatusCancelled)
}

// ConfirmBooking POST /api/provider/bookings/{id}/confirm
func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.bookings.ConfirmBooking, model.BookingStatusConfirmed)
}

// CompleteBooking POST /api/provider/bookings/{id}/complete
func (h *Handlers) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.bookings.CompleteBooking, model.BookingStatusCompleted)
}

type statusResponse struct {
	ID     int64               `json:"id"`
	Status model.BookingStatus `json:"status"`
}

func (h *Handlers) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor model.Actor, bookingID int64) error,
	status model.BookingStatus,
) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := op(r.Context(), mustActor(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, statusResponse{ID: id, Status: status})
}

// ListProviderBookings GET /api/provider/bookings
func (h *Handlers) ListProviderBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListBookingsForProvider(r.Context(), mustActor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(bookings))
}

// CreateReview POST /api/bookings/{id}/review
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req createReviewRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), mustActor(r), id, req.Rating, req.Comment)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, review)
}
