package response

import (
	"encoding/json"
	"net/http"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON пишет конверт ответа с указанным статусом
func JSON(w http.ResponseWriter, code int, status bool, message string, data, errors any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{
		Status:  status,
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}

func Success(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, true, message, data, nil)
}

func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, true, message, data, nil)
}

func BadRequest(w http.ResponseWriter, message string, errors any) {
	JSON(w, http.StatusBadRequest, false, message, nil, errors)
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, false, message, nil, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	JSON(w, http.StatusForbidden, false, message, nil, nil)
}

func InternalError(w http.ResponseWriter, message string) {
	JSON(w, http.StatusInternalServerError, false, message, nil, nil)
}

// Error переводит доменную ошибку в статус и конверт; код ошибки уходит в errors.code
func Error(w http.ResponseWriter, err error) {
	e := model.FromError(err)
	message := e.Message
	if e.Status >= http.StatusInternalServerError {
		message = model.ErrInternal.Message
	}
	JSON(w, e.Status, false, message, nil, map[string]string{"code": e.Code})
}
