package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/models"
)

func TestFail(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}
	validationErr := validator.New().Struct(payload{})
	require.Error(t, validationErr)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   Response
	}{
		{
			name:       "not unique",
			err:        fmt.Errorf("storage.CreateMember: %w", models.NewNotUnique("email")),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   Response{Status: StatusError, Error: "Duplicate entry.", What: "not_unique", Fields: "email"},
		},
		{
			name:       "validation",
			err:        validationErr,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   Response{Status: StatusError, Error: "field Email is a required field", What: "invalid", Fields: "Email"},
		},
		{
			name:       "bad request",
			err:        &models.BadRequest{Message: "Empty cart."},
			wantStatus: http.StatusBadRequest,
			wantBody:   Response{Status: StatusError, Error: "Empty cart."},
		},
		{
			name:       "not found",
			err:        fmt.Errorf("storage.GetMember: %w", models.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   Response{Status: StatusError, Error: "not found"},
		},
		{
			name:       "unauthorized",
			err:        models.ErrUnauthorized,
			wantStatus: http.StatusUnauthorized,
			wantBody:   Response{Status: StatusError, Error: "unauthorized"},
		},
		{
			name:       "internal",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   Response{Status: StatusError, Error: "internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			Fail(rr, req, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var got Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}
