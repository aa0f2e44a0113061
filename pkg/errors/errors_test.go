package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
	}{
		{NotFound("profile", nil), http.StatusNotFound},
		{Validation("bad input", nil), http.StatusBadRequest},
		{Unauthenticated(nil), http.StatusUnauthorized},
		{Forbidden("", nil), http.StatusForbidden},
		{Conflict("already exists", nil), http.StatusConflict},
		{Persistence(errors.New("boom")), http.StatusInternalServerError},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), tc.err.Message)
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := Conflict("invite already pending", nil)
	wrapped := fmt.Errorf("creating invite: %w", inner)

	assert.True(t, IsCode(wrapped, ErrConflict))
	assert.False(t, IsCode(wrapped, ErrNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrConflict))
}

func TestAsAppErrorDefaultsToInternal(t *testing.T) {
	appErr := AsAppError(errors.New("plain"))
	assert.Equal(t, ErrInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())

	conflict := Conflict("dup", nil)
	assert.Same(t, conflict, AsAppError(fmt.Errorf("wrap: %w", conflict)))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("row not found")
	appErr := NotFound("invite", cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "invite not found")
}
