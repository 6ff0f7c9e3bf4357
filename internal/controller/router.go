package controller

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/controller/handlers"
	"github.com/Freeeeeet/homeconnect/internal/metrics"
	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// RouterConfig параметры маршрутизатора
type RouterConfig struct {
	// LoginRateLimit попыток входа с одного IP за LoginRateWindow. 0 выключает ограничение
	LoginRateLimit  int
	LoginRateWindow time.Duration
	RequestTimeout  time.Duration
}

// NewRouter регистрирует все HTTP маршруты
func NewRouter(h *handlers.Handlers, m *metrics.Metrics, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Общие middleware для всех маршрутов
	r.Use(handlers.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handlers.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		// Регистрация и вход
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register/customer", h.RegisterCustomer)
			r.Post("/register/provider", h.RegisterProvider)
			r.With(loginLimiter(cfg)).Post("/login", h.Login)
		})

		// Поиск доступен без входа
		r.Get("/providers", h.FindProviders)
		r.Get("/timeslots", h.FindTimeSlots)
		r.Get("/providers/{id}", h.GetProvider)
		r.Get("/providers/{id}/slots", h.ListProviderSlots)

		// Кабинет исполнителя
		r.Route("/provider", func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Use(h.RequireRole(model.RoleProvider))

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Post("/slots", h.AddSlot)
			r.Get("/bookings", h.ListProviderBookings)
			r.Post("/bookings/{id}/confirm", h.ConfirmBooking)
			r.Post("/bookings/{id}/complete", h.CompleteBooking)
			r.Get("/reviews", h.ListOwnReviews)
		})

		// Брони клиента
		r.Route("/bookings", func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Use(h.RequireRole(model.RoleCustomer))

			r.Post("/", h.CreateBooking)
			r.Get("/", h.ListMyBookings)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/review", h.CreateReview)
		})
	})

	return r
}

func loginLimiter(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := cfg.LoginRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(cfg.LoginRateLimit, window)
}
