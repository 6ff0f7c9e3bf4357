package handlers

import (
	"net/http"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/service"
)

type registerRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"omitempty,email"`
	Address  string `json:"address" validate:"omitempty,max=500"`
}

func (req registerRequest) registration() service.Registration {
	return service.Registration{
		FullName: req.FullName,
		Username: req.Username,
		Password: req.Password,
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
	}
}

type registerProviderRequest struct {
	registerRequest
	ServiceType  string  `json:"service_type" validate:"required,max=100"`
	Experience   int     `json:"experience" validate:"gte=0,lte=80"`
	Description  string  `json:"description" validate:"max=2000"`
	CertFilePath *string `json:"cert_file_path" validate:"omitempty,max=500"`
	City         string  `json:"city" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Username string     `json:"username" validate:"required"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=customer provider"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterCustomer POST /api/auth/register/customer
func (h *Handlers) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.auth.RegisterCustomer(r.Context(), req.registration())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, user)
}

// RegisterProvider POST /api/auth/register/provider
func (h *Handlers) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	var req registerProviderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	_, provider, err := h.auth.RegisterProvider(r.Context(), req.registration(), service.ProviderRegistration{
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

	h.respond(w, http.StatusCreated, provider)
}

// Login POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, loginResponse{Token: token, User: user})
}
