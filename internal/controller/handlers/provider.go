package handlers

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
)

type createSlotRequest struct {
	Start time.Time `json:"slot_start" validate:"required"`
	End   time.Time `json:"slot_end" validate:"required,gtfield=Start"`
}

type updateProfileRequest struct {
	FullName     string  `json:"full_name" validate:"required,max=200"`
	Phone        string  `json:"phone" validate:"omitempty,max=32"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Address      string  `json:"address" validate:"omitempty,max=500"`
	ServiceType  string  `json:"service_type" validate:"required,max=100"`
	Experience   int     `json:"experience" validate:"gte=0,lte=80"`
	Description  string  `json:"description" validate:"max=2000"`
	CertFilePath *string `json:"cert_file_path" validate:"omitempty,max=500"`
	City         string  `json:"city" validate:"omitempty,max=100"`
}

// GetProfile GET /api/provider/profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.GetProfile(r.Context(), mustActor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, provider)
}

// UpdateProfile PUT /api/provider/profile
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	provider, err := h.providers.UpdateProfile(r.Context(), mustActor(r), model.ProfileUpdate{
		FullName:     req.FullName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		ServiceType:  req.ServiceType,
		Experience:   req.Experience,
		Description:  req.Description,
		CertFilePath: req.CertFilePath,
		City:         req.City,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, provider)
}

// AddSlot POST /api/provider/slots
func (h *Handlers) AddSlot(w http.ResponseWriter, r *http.Request) {
	var req createSlotRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	slot, err := h.availability.AddSlot(r.Context(), mustActor(r), req.Start, req.End)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, slot)
}

// ListOwnReviews GET /api/provider/reviews
func (h *Handlers) ListOwnReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.providers.ListReviews(r.Context(), mustActor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(reviews))
}
