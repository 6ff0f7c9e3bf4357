package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Freeeeeet/homeconnect/internal/model"
)

// Доменные ошибки. Сравниваются через errors.Is
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrSlotNotFound     = fmt.Errorf("slot %w", ErrNotFound)
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrDuplicateBooking = errors.New("booking already exists for this provider and time")
	ErrInvalidState     = errors.New("invalid booking state")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("invalid credentials")
	ErrStore            = errors.New("store failure")
)

// ValidationError описывает некорректный ввод по полям
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add добавляет ошибку поля
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil возвращает nil, если ошибок нет
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError ошибка хранилища. Детали логируются, наружу уходит общий ответ
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

var domainErrors = []error{
	ErrValidation, ErrNotFound, ErrSlotUnavailable, ErrDuplicateBooking,
	ErrInvalidState, ErrForbidden, ErrUnauthorized, ErrStore,
}

// storeErr оборачивает ошибку хранилища в StoreError. Доменные ошибки,
// пришедшие изнутри транзакции, возвращаются как есть
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}

// invalidState формирует ErrInvalidState с текущим статусом
func invalidState(action string, current model.BookingStatus) error {
	return fmt.Errorf("%w: cannot %s booking in status %s", ErrInvalidState, action, current)
}
