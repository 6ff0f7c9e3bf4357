package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// orEmpty заменяет nil срез пустым, чтобы в JSON был [] вместо null
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respond пишет v как JSON со статусом status
func (h *Handlers) respond(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Debug("Failed to write response", zap.Error(err))
	}
}

// respondError переводит доменную ошибку в HTTP статус. Детали ошибок
// хранилища в ответ не попадают
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.respond(w, status, body)
}

func errorStatus(err error) (int, errorResponse) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: service.ErrUnauthorized.Error()}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, service.ErrDuplicateBooking),
		errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

// decode читает JSON тело запроса в dst и проверяет теги validate
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return service.NewValidationError("body", "request body is required")
		}
		return service.NewValidationError("body", "malformed JSON: "+err.Error())
	}

	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В ошибках поля называются так же, как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError переводит ошибки validator в ValidationError
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return service.NewValidationError("body", err.Error())
	}

	out := &service.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtfield":
		return "must be after " + fe.Param()
	default:
		return "is invalid"
	}
}

// pathID читает положительный числовой параметр маршрута
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// parseInstant принимает RFC3339 или время без смещения в часовом поясе сервиса
func (h *Handlers) parseInstant(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, service.NewValidationError(field, "is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localTimeLayout, value, h.location); err == nil {
		return t, nil
	}
	return time.Time{}, service.NewValidationError(field, "must be RFC3339 or "+localTimeLayout)
}

// parseDate читает календарную дату в часовом поясе сервиса
func (h *Handlers) parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, service.NewValidationError(field, "is required")
	}
	t, err := time.ParseInLocation(dateLayout, value, h.location)
	if err != nil {
		return time.Time{}, service.NewValidationError(field, "must be a date in format "+dateLayout)
	}
	return t, nil
}
