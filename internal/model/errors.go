package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Error типизированная доменная ошибка с кодом и HTTP-статусом
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is сравнивает по коду, чтобы обёрнутые копии совпадали с эталонными ошибками
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func NewError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap прикрепляет причину к копии эталонной ошибки
func Wrap(base *Error, err error) *Error {
	clone := *base
	clone.Err = err
	return &clone
}

// WithMessage копия эталонной ошибки с уточнённым сообщением
func WithMessage(base *Error, message string) *Error {
	clone := *base
	clone.Message = message
	return &clone
}

var (
	// Проиграли гонку или слот уже забронирован: клиент перезапрашивает доступность
	ErrSlotUnavailable = NewError("SLOT_UNAVAILABLE", http.StatusConflict, "slot is not available")
	// Холд чужой или его не было: клиент начинает заново
	ErrHoldInvalid = NewError("HOLD_INVALID", http.StatusConflict, "hold is not owned by requester")
	// TTL холда истёк, слот уже освобождён движком
	ErrHoldExpired = NewError("HOLD_EXPIRED", http.StatusGone, "hold has expired")
	// Сессия в прошлом, уже отменена или завершена
	ErrSessionNotCancellable = NewError("SESSION_NOT_CANCELLABLE", http.StatusConflict, "session cannot be cancelled")
	// CAS не прошёл неожиданно, можно повторить со свежим чтением
	ErrStoreConflict = NewError("STORE_CONFLICT", http.StatusConflict, "concurrent modification, retry")

	ErrSlotNotFound    = NewError("SLOT_NOT_FOUND", http.StatusNotFound, "slot not found")
	ErrSessionNotFound = NewError("SESSION_NOT_FOUND", http.StatusNotFound, "session not found")
	ErrValidation      = NewError("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal        = NewError("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError приводит любую ошибку к *Error; неизвестные становятся ErrInternal
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(ErrInternal, err)
}
