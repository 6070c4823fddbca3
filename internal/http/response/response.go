// Package response contains the JSON envelope returned by every HTTP handler and the
// mapping from service errors to HTTP status codes.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/makerspace/makeradmin/internal/models"
)

// Response is the standard JSON body.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	What   string `json:"what,omitempty"`
	Fields string `json:"fields,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse documents error bodies for swagger.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	What   string `json:"what,omitempty" example:"not_unique"`
	Fields string `json:"fields,omitempty" example:"email"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// OKWithData returns a successful Response carrying data.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error returns an error Response with msg.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError turns validator errors into a single human readable message.
func ValidationError(errs validator.ValidationErrors) Response {
	var msgs []string
	var fields []string

	for _, err := range errs {
		fields = append(fields, err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be an email address", err.Field()))
		case "alphanum":
			msgs = append(msgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of %s", err.Field(), err.Param()))
		case "gt", "gte", "min":
			msgs = append(msgs, fmt.Sprintf("field %s is too small", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
		What:   models.Invalid,
		Fields: strings.Join(fields, ","),
	}
}

// Fail writes the status and body matching err. Errors the client cannot act on become a
// bare 500.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unprocessable *models.UnprocessableEntity
		badRequest    *models.BadRequest
		invalid       validator.ValidationErrors
	)
	switch {
	case errors.As(err, &unprocessable):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, Response{
			Status: StatusError,
			Error:  unprocessable.Message,
			What:   unprocessable.What,
			Fields: unprocessable.Fields,
		})
	case errors.As(err, &invalid):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ValidationError(invalid))
	case errors.As(err, &badRequest):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error(badRequest.Message))
	case errors.Is(err, models.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("not found"))
	case errors.Is(err, models.ErrUnauthorized):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, Error("unauthorized"))
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, Error("internal error"))
	}
}
