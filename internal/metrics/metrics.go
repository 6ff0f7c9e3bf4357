package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики бронирований и HTTP запросов
type Metrics struct {
	registry *prometheus.Registry

	bookingsCreated     prometheus.Counter
	bookingsRejected    *prometheus.CounterVec
	bookingTransitions  *prometheus.CounterVec
	slotsAdded          prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New регистрирует метрики в собственном реестре вместе с метриками процесса и Go runtime
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		bookingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "homeconnect_bookings_created_total",
			Help: "Total number of bookings created",
		}),
		bookingsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homeconnect_bookings_rejected_total",
			Help: "Total number of rejected booking attempts",
		}, []string{"reason"}),
		bookingTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homeconnect_booking_transitions_total",
			Help: "Total number of booking status changes",
		}, []string{"status"}),
		slotsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "homeconnect_slots_added_total",
			Help: "Total number of availability slots added",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homeconnect_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homeconnect_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) BookingCreated() {
	m.bookingsCreated.Inc()
}

func (m *Metrics) BookingRejected(reason string) {
	m.bookingsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) BookingTransition(status model.BookingStatus) {
	m.bookingTransitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) SlotAdded() {
	m.slotsAdded.Inc()
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware считает запросы по шаблону маршрута chi, а не по сырому пути,
// чтобы id в URL не раздували число серий
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
